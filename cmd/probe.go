// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
	"github.com/Thermoquad/shadestat/pkg/shade"
	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by waiting for a valid AM43 frame",
	Long: `Query the motor settings and wait for any valid frame until timeout.

Invalid bytes and frames failing the checksum are ignored; only a complete,
valid frame counts.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking the UART wiring or the WebSocket bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Shadestat - Probe\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for valid AM43 frame...\n\n")

	frameChan := make(chan am43.Command, 1)
	s.driver.SetObserver(func(ev shade.Event) {
		if ev.Kind != shade.EventFrame {
			return
		}
		select {
		case frameChan <- ev.Command:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(probeTimeout)*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.driver.Run(ctx)
	}()

	select {
	case command := <-frameChan:
		cancel()
		stats := s.driver.Stats()
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s\n", am43.FormatCommand(command))
		if stats.DiscardedBytes > 0 || stats.ChecksumErrors > 0 {
			fmt.Printf("  (skipped %d invalid bytes, %d checksum errors)\n", stats.DiscardedBytes, stats.ChecksumErrors)
		}
		s.Close()
		os.Exit(0)

	case err := <-errChan:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			s.Close()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", probeTimeout)
		s.Close()
		os.Exit(1)
	}

	return nil
}
