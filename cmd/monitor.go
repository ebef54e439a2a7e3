// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/shadestat/pkg/shade"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and controlling the motor",
	Long: `Monitor and control the AM43 motor via an interactive terminal UI.

Features:
  - Live device state (position, battery, light level, settings, seasons)
  - Discovery cycle and watchdog status
  - Frame statistics
  - Event log
  - Open, close and stop keys, position input

Keys: o=open c=close s=stop Tab=position input Enter=send position q=quit

Driver logs are suppressed while the TUI owns the terminal.
Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	s, err := openQuietSession()
	if err != nil {
		return err
	}
	defer s.Close()

	m := initialMonitorModel(s.driver, s.connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())

	s.driver.SetObserver(func(ev shade.Event) {
		p.Send(driverEventMsg(ev))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := s.driver.Run(ctx); err != nil {
			p.Send(driverStoppedMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
