// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/shadestat/pkg/shade"
	"github.com/spf13/cobra"
)

var (
	statusTimeout int
	statusFormat  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run one discovery cycle and print the motor state",
	Long: `Run the driver until a full discovery cycle completes, then print the
motor state and exit.

Formats:
  text - human-readable dump
  yaml - snapshot as YAML
  cbor - snapshot as CBOR, printed as hex

If the cycle does not complete before --timeout, the partial state is
printed and the command fails.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusTimeout, "timeout", 30, "Timeout in seconds to wait for discovery")
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "Output format: text, yaml or cbor")
}

func runStatus(cmd *cobra.Command, args []string) error {
	switch statusFormat {
	case "text", "yaml", "cbor":
	default:
		return fmt.Errorf("unknown format %q", statusFormat)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(statusTimeout)*time.Second)
	defer cancel()

	done := make(chan struct{})
	s.driver.SetObserver(func(ev shade.Event) {
		if ev.Kind == shade.EventCycleComplete {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.driver.Run(ctx)
	}()

	timedOut := false
	select {
	case <-done:
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil {
			return err
		}
		timedOut = true
	}

	if err := printStatus(cmd.OutOrStdout(), s.driver, statusFormat); err != nil {
		return err
	}
	if timedOut {
		return fmt.Errorf("discovery did not complete within %d seconds", statusTimeout)
	}
	return nil
}

// printStatus writes the driver state in the requested format
func printStatus(w io.Writer, d *shade.Driver, format string) error {
	snap := d.Snapshot()

	switch format {
	case "yaml":
		data, err := snap.EncodeYAML()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	case "cbor":
		data, err := snap.EncodeCBOR()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, hex.EncodeToString(data))
		return err

	default:
		fmt.Fprint(w, shade.FormatState(d.State()))
		fmt.Fprintf(w, "PollState: %s\n", snap.Poll)
		fmt.Fprintf(w, "Watchdog: %d\n", snap.WatchdogCounter)
		stats := d.Stats()
		_, err := fmt.Fprint(w, stats.String())
		return err
	}
}
