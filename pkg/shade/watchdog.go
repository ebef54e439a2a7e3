// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"fmt"
	"time"
)

// ResetLine controls the device's active-low reset input
type ResetLine interface {
	// SetOutputLow drives the line low
	SetOutputLow() error
	// SetInputFloating releases the line to high impedance
	SetInputFloating() error
}

// Watchdog counts ticks without a valid inbound frame
type Watchdog struct {
	threshold int
	counter   int
}

// NewWatchdog creates a watchdog that fires once the counter exceeds threshold
func NewWatchdog(threshold int) *Watchdog {
	return &Watchdog{threshold: threshold}
}

// Counter returns the number of ticks since the last valid frame
func (w *Watchdog) Counter() int {
	return w.counter
}

// Answer records a valid inbound frame
func (w *Watchdog) Answer() {
	w.counter = 0
}

// Tick counts one timer tick. It returns true when the device has been
// silent for too long; the counter is zeroed at the same time.
func (w *Watchdog) Tick() bool {
	w.counter++
	if w.counter > w.threshold {
		w.counter = 0
		return true
	}
	return false
}

// PulseReset pulls the reset line low for settle, then releases it and waits
// another settle period. It blocks for 2*settle and always runs to the end;
// a failure to pull the line low still attempts the release.
func PulseReset(line ResetLine, clock Clock, settle time.Duration) error {
	lowErr := line.SetOutputLow()
	clock.Sleep(settle)
	releaseErr := line.SetInputFloating()
	clock.Sleep(settle)

	if lowErr != nil {
		return fmt.Errorf("failed to pull reset line low: %w", lowErr)
	}
	if releaseErr != nil {
		return fmt.Errorf("failed to release reset line: %w", releaseErr)
	}
	return nil
}
