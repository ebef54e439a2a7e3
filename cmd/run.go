// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/shadestat/pkg/shade"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the driver until interrupted",
	Long: `Run the AM43 driver as a long-lived process.

The driver polls the motor for its settings, light level and battery level,
restarts the cycle every slow interval, and pulses the reset line when the
motor stays silent. Position, battery and light level changes are logged.

Supports both serial and WebSocket connections.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.logger.Info("Shadestat started", zap.String("connection", s.connInfo))

	var last shade.State
	s.driver.SetObserver(func(ev shade.Event) {
		if ev.Kind != shade.EventCycleComplete {
			return
		}
		cur := s.driver.State()
		if cur.Position != last.Position || cur.Battery != last.Battery || cur.LightLevel != last.LightLevel {
			s.logger.Info("State changed",
				zap.Uint8("position", cur.Position),
				zap.Float64("openness", cur.Openness),
				zap.Uint8("battery", cur.Battery),
				zap.Uint8("light", cur.LightLevel))
		}
		last = cur
	})

	if err := s.driver.Run(ctx); err != nil {
		s.logger.Error("Driver stopped", zap.Error(err))
		return err
	}

	stats := s.driver.Stats()
	s.logger.Info("Shadestat stopped",
		zap.Uint64("frames", stats.TotalFrames),
		zap.Uint64("checksum_errors", stats.ChecksumErrors),
		zap.Uint64("watchdog_resets", stats.WatchdogResets))
	return nil
}
