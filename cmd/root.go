// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configFile string
	verbose    bool

	// settings holds flags, environment and config file values
	settings = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "shadestat",
	Short: "AM43 Blind Motor Driver",
	Long: `Shadestat - drive and monitor an AM43 blind/shade motor over its UART.

The driver discovers the motor state with a polling cycle (settings, light
level, battery level), keeps a local model of the device, and pulses the
motor's reset line when it stops answering.

Connection modes:
  Serial:    --port /dev/ttyAMA0 [--baud 19200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the SHADESTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Every flag can also be set in a YAML config file (--config) or through an
environment variable with the SHADESTAT_ prefix (poll.fast_interval becomes
SHADESTAT_POLL_FAST_INTERVAL).`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Development logging (debug level, console format)")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 19200, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Driver timing
	flags.Duration("fast-interval", defaultFastInterval, "Poll interval during discovery")
	flags.Duration("slow-interval", defaultSlowInterval, "Pause after a completed discovery cycle")
	flags.Int("stall-ticks", defaultStallTicks, "Ticks a discovery step may wait before restarting")
	flags.Int("watchdog-threshold", defaultWatchdogThreshold, "Silent ticks before the reset line is pulsed")
	flags.Duration("reset-settle", defaultResetSettle, "Reset pulse low time (and release time)")
	flags.Int("reset-pin", defaultResetPin, "BCM GPIO pin wired to the motor reset line (0 disables)")
	flags.Duration("loop-period", defaultLoopPeriod, "Driver loop period")

	setDefaults(settings)
	bindFlags(flags)
}

// bindFlags maps each flag onto its config key
func bindFlags(flags *pflag.FlagSet) {
	for key, flag := range flagKeys {
		if f := flags.Lookup(flag); f != nil {
			_ = settings.BindPFlag(key, f)
		}
	}
}

func initConfig() error {
	settings.SetEnvPrefix("SHADESTAT")
	settings.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	settings.AutomaticEnv()

	if configFile != "" {
		settings.SetConfigFile(configFile)
		settings.SetConfigType("yaml")
		if err := settings.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// newLogger builds the process logger
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
