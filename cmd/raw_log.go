// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rawLogBuffer bounds the bytes held while waiting for a frame to complete
const rawLogBuffer = 512

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Passively decode and display AM43 frames as they arrive.

Nothing is sent to the motor. Each frame is printed with a timestamp, its
command and decoded payload, followed by any anomalies found in it.
Checksum mismatches are reported inline.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, connInfo, err := OpenConnection(loadConnectionSettings(settings), logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Shadestat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return logFrames(conn, cmd.OutOrStdout(), logger)
}

// logFrames prints every frame read from r until the stream ends
func logFrames(r io.Reader, w io.Writer, logger *zap.Logger) error {
	var rx []byte
	buf := make([]byte, 128)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			rx = append(rx, buf[:n]...)
			rx = printFrames(rx, w)
		}
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				logger.Info("Connection closed")
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
	}
}

// printFrames prints each complete frame in rx and returns the bytes left
// for the next read
func printFrames(rx []byte, w io.Writer) []byte {
	for {
		res := am43.Scan(rx)
		if res.Consumed == 0 {
			rx = rx[res.Skippable:]
			if len(rx) >= rawLogBuffer {
				// Stuck candidate, resynchronise past it
				rx = rx[1:]
				continue
			}
			return rx
		}

		now := time.Now()
		switch res.Status {
		case am43.ScanChecksumMismatch:
			fmt.Fprintf(w, "[%s] [ERROR] checksum mismatch: received 0x%02X, computed 0x%02X\n",
				now.Format("15:04:05.000"), res.Checksum, res.Computed)
		case am43.ScanOK:
			fmt.Fprint(w, am43.FormatFrame(*res.Frame, now))
			for _, anomaly := range am43.ValidateFrame(*res.Frame) {
				fmt.Fprintf(w, "  [ANOMALY] %s\n", anomaly.Message)
			}
		}
		rx = rx[res.Consumed:]
	}
}
