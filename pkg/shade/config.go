// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"errors"
	"time"
)

// Config holds the driver timing parameters
type Config struct {
	FastInterval      time.Duration // tick interval during discovery
	SlowInterval      time.Duration // pause after a completed cycle
	StallTicks        int           // ticks a step may wait before discovery restarts
	WatchdogThreshold int           // silent ticks before a hardware reset
	ResetSettle       time.Duration // low time, then release time, of the reset pulse
	LoopPeriod        time.Duration // Run loop granularity
	ReceiveBuffer     int           // receive buffer capacity in bytes
}

// DefaultConfig returns the timing the motor firmware is known to work with
func DefaultConfig() Config {
	return Config{
		FastInterval:      1000 * time.Millisecond,
		SlowInterval:      15000 * time.Millisecond,
		StallTicks:        10,
		WatchdogThreshold: 32,
		ResetSettle:       100 * time.Millisecond,
		LoopPeriod:        20 * time.Millisecond,
		ReceiveBuffer:     512,
	}
}

// Validate checks that every value is usable
func (c Config) Validate() error {
	if c.FastInterval <= 0 || c.SlowInterval <= 0 {
		return errors.New("shade: poll intervals must be > 0")
	}
	if c.StallTicks <= 0 {
		return errors.New("shade: stall ticks must be > 0")
	}
	if c.WatchdogThreshold <= 0 {
		return errors.New("shade: watchdog threshold must be > 0")
	}
	if c.ResetSettle < 0 {
		return errors.New("shade: reset settle must be >= 0")
	}
	if c.LoopPeriod <= 0 {
		return errors.New("shade: loop period must be > 0")
	}
	if c.ReceiveBuffer < 8 {
		return errors.New("shade: receive buffer must hold at least one frame header")
	}
	return nil
}
