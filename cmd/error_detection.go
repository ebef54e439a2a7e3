// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupt frames and anomalies",
	Long: `Track checksum errors, short payloads and out-of-range values with statistics.

This command listens passively and validates each frame, detecting:
  - Checksum mismatches
  - Payloads shorter than their report needs
  - Unknown commands
  - Anomalous values (position or battery above 100%, invalid season times)

By default, only errors are displayed. Use --show-all to display valid frames too.

Errors are highlighted as they arrive, with periodic statistics summaries
at a configurable interval and a final summary on exit.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Shadestat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return detectErrors(ctx, conn, cmd.OutOrStdout(), time.Duration(statsInterval)*time.Second, logger)
}

// errorDetector accumulates frames and statistics across reads
type errorDetector struct {
	out   io.Writer
	stats *am43.Statistics
	rx    []byte

	// Mismatches before the first valid frame are line noise, not errors
	synchronized bool
	skipped      int
}

func newErrorDetector(out io.Writer) *errorDetector {
	return &errorDetector{out: out, stats: am43.NewStatistics()}
}

// detectErrors reads conn until ctx is done or the stream ends
func detectErrors(ctx context.Context, r io.Reader, out io.Writer, interval time.Duration, logger *zap.Logger) error {
	det := newErrorDetector(out)

	chunks := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				chunks <- data
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	statsTicker := time.NewTicker(interval)
	defer statsTicker.Stop()

	for {
		select {
		case data := <-chunks:
			det.process(data)

		case <-statsTicker.C:
			det.printStats()

		case err := <-readErr:
			// Frames already queued still count
			for len(chunks) > 0 {
				det.process(<-chunks)
			}
			det.printStats()
			logger.Info("Connection closed", zap.Error(err))
			return nil

		case <-ctx.Done():
			det.printStats()
			return nil
		}
	}
}

// process scans one chunk of inbound bytes
func (d *errorDetector) process(data []byte) {
	d.rx = append(d.rx, data...)

	for {
		res := am43.Scan(d.rx)
		if res.Consumed == 0 {
			d.discard(res.Skippable)
			if len(d.rx) >= rawLogBuffer {
				d.discard(1)
				continue
			}
			return
		}

		switch res.Status {
		case am43.ScanChecksumMismatch:
			if d.synchronized {
				d.stats.Update(res, nil)
				d.printMismatch(res)
			} else {
				d.skipped += res.Consumed
			}

		case am43.ScanOK:
			if !d.synchronized {
				d.synchronized = true
				d.skipped += res.Skippable
				if d.skipped > 0 {
					fmt.Fprintf(d.out, "[SYNC] Synchronized after skipping %d invalid bytes\n\n", d.skipped)
				} else {
					fmt.Fprintf(d.out, "[SYNC] Synchronized\n\n")
				}
			}

			validationErrors := am43.ValidateFrame(*res.Frame)
			d.stats.Update(res, validationErrors)

			if len(validationErrors) > 0 {
				d.printValidationErrors(*res.Frame, validationErrors)
			} else if showAll {
				fmt.Fprint(d.out, am43.FormatFrame(*res.Frame, time.Now()))
			}
		}

		d.rx = d.rx[res.Consumed:]
	}
}

func (d *errorDetector) discard(n int) {
	if n <= 0 {
		return
	}
	if d.synchronized {
		d.stats.DiscardedBytes += uint64(n)
	} else {
		d.skipped += n
	}
	d.rx = d.rx[n:]
}

// printMismatch prints a checksum error in highlighted format
func (d *errorDetector) printMismatch(res am43.ScanResult) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(d.out, "[%s] \033[1;31mCHECKSUM ERROR:\033[0m received 0x%02X, computed 0x%02X\n", timestamp, res.Checksum, res.Computed)
	fmt.Fprintf(d.out, "  >>> FRAME DISCARDED <<<\n\n")
}

// printValidationErrors prints the anomalies of a checksum-valid frame
func (d *errorDetector) printValidationErrors(f am43.Frame, errors []am43.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Fprintf(d.out, "[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, am43.FormatCommand(f.Command), uint8(f.Command))
	fmt.Fprintf(d.out, "  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case am43.AnomalyPayloadTooShort, am43.AnomalyUnknownCommand:
			fmt.Fprintf(d.out, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		case am43.AnomalyInvalidValue:
			fmt.Fprintf(d.out, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Fprintf(d.out, "  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Fprint(d.out, am43.FormatHex(f.Payload))
	fmt.Fprintf(d.out, "  >>> FRAME REJECTED <<<\n\n")
}

func (d *errorDetector) printStats() {
	fmt.Fprintln(d.out)
	fmt.Fprint(d.out, d.stats.String())
	fmt.Fprintln(d.out)
}
