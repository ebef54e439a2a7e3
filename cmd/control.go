// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/Thermoquad/shadestat/pkg/am43"
	"github.com/Thermoquad/shadestat/pkg/shade"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var positionOpenness bool

var actionCmd = &cobra.Command{
	Use:   "action <open|close|stop>",
	Short: "Send an open, close or stop action",
	Long: `Send a single control action to the motor and exit.

Accepted actions (case-insensitive):
  OPEN, ON, UP
  CLOSE, OFF, DOWN
  STOP`,
	Args: cobra.ExactArgs(1),
	RunE: runAction,
}

var positionCmd = &cobra.Command{
	Use:   "position <0-100>",
	Short: "Move the cover to a position",
	Long: `Move the cover to a position and exit.

The position is percent closed: 0 is fully open, 100 fully closed. Values
outside the range are clamped. With --openness the argument is instead an
openness between 0.0 (closed) and 1.0 (open).`,
	Args: cobra.ExactArgs(1),
	RunE: runPosition,
}

func init() {
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(positionCmd)
	positionCmd.Flags().BoolVar(&positionOpenness, "openness", false, "Interpret the argument as openness (0.0-1.0)")
}

func runAction(cmd *cobra.Command, args []string) error {
	action, err := shade.ParseAction(args[0])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.driver.SendAction(action); err != nil {
		return err
	}

	s.logger.Info("Action sent", zap.String("action", am43.FormatAction(action)))
	return nil
}

func runPosition(cmd *cobra.Command, args []string) error {
	var send func(d *shade.Driver) error

	if positionOpenness {
		openness, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid openness %q: %w", args[0], err)
		}
		send = func(d *shade.Driver) error { return d.SetOpenness(openness) }
	} else {
		percent, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[0], err)
		}
		send = func(d *shade.Driver) error { return d.SetPosition(percent) }
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := send(s.driver); err != nil {
		return err
	}

	s.logger.Info("Position sent", zap.Uint8("position", s.driver.Position()))
	return nil
}
