// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/shadestat/pkg/shade"
	"github.com/spf13/viper"
)

const (
	defaultFastInterval      = 1000 * time.Millisecond
	defaultSlowInterval      = 15000 * time.Millisecond
	defaultStallTicks        = 10
	defaultWatchdogThreshold = 32
	defaultResetSettle       = 100 * time.Millisecond
	defaultResetPin          = 5
	defaultLoopPeriod        = 20 * time.Millisecond
)

// flagKeys maps config keys to persistent flag names
var flagKeys = map[string]string{
	"port":               "port",
	"baud":               "baud",
	"url":                "url",
	"username":           "username",
	"no_ssl_verify":      "no-ssl-verify",
	"poll.fast_interval": "fast-interval",
	"poll.slow_interval": "slow-interval",
	"poll.stall_ticks":   "stall-ticks",
	"watchdog.threshold": "watchdog-threshold",
	"watchdog.settle":    "reset-settle",
	"reset.pin":          "reset-pin",
	"loop.period":        "loop-period",
}

// setDefaults registers the default of every key. Flags bound to a key
// override these only when set explicitly.
func setDefaults(v *viper.Viper) {
	v.SetDefault("baud", 19200)
	v.SetDefault("poll.fast_interval", defaultFastInterval)
	v.SetDefault("poll.slow_interval", defaultSlowInterval)
	v.SetDefault("poll.stall_ticks", defaultStallTicks)
	v.SetDefault("watchdog.threshold", defaultWatchdogThreshold)
	v.SetDefault("watchdog.settle", defaultResetSettle)
	v.SetDefault("reset.pin", defaultResetPin)
	v.SetDefault("loop.period", defaultLoopPeriod)
}

// connectionSettings selects the link to the motor
type connectionSettings struct {
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool
}

func loadConnectionSettings(v *viper.Viper) connectionSettings {
	return connectionSettings{
		Port:        v.GetString("port"),
		Baud:        v.GetInt("baud"),
		URL:         v.GetString("url"),
		Username:    v.GetString("username"),
		NoSSLVerify: v.GetBool("no_ssl_verify"),
	}
}

// loadDriverConfig builds the driver timing from v and validates it
func loadDriverConfig(v *viper.Viper) (shade.Config, error) {
	cfg := shade.DefaultConfig()
	cfg.FastInterval = v.GetDuration("poll.fast_interval")
	cfg.SlowInterval = v.GetDuration("poll.slow_interval")
	cfg.StallTicks = v.GetInt("poll.stall_ticks")
	cfg.WatchdogThreshold = v.GetInt("watchdog.threshold")
	cfg.ResetSettle = v.GetDuration("watchdog.settle")
	cfg.LoopPeriod = v.GetDuration("loop.period")

	if err := cfg.Validate(); err != nil {
		return shade.Config{}, err
	}
	return cfg, nil
}
