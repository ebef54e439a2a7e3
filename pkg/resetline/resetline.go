// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package resetline drives the motor controller's active-low reset input.
package resetline

import (
	"fmt"
	"sync"

	rpio "github.com/stianeikeland/go-rpio/v4"
	"go.uber.org/zap"
)

// GPIO is a reset line on a Raspberry Pi header pin
type GPIO struct {
	pin    rpio.Pin
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// OpenGPIO maps the GPIO registers and releases the pin. pin is the BCM
// number. The line starts floating so the device runs.
func OpenGPIO(pin int, logger *zap.Logger) (*GPIO, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("invalid reset pin %d", pin)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}

	g := &GPIO{pin: rpio.Pin(pin), logger: logger}
	if err := g.SetInputFloating(); err != nil {
		rpio.Close()
		return nil, err
	}
	logger.Info("Reset line ready", zap.Int("pin", pin))
	return g, nil
}

// SetOutputLow drives the line low, holding the device in reset
func (g *GPIO) SetOutputLow() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("reset line closed")
	}
	g.pin.Mode(rpio.Output)
	g.pin.Low()
	g.logger.Debug("Reset line low")
	return nil
}

// SetInputFloating releases the line
func (g *GPIO) SetInputFloating() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("reset line closed")
	}
	g.pin.Mode(rpio.Input)
	g.pin.PullOff()
	g.logger.Debug("Reset line released")
	return nil
}

// Close releases the pin and unmaps the GPIO registers
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.pin.Mode(rpio.Input)
	g.pin.PullOff()
	g.closed = true
	return rpio.Close()
}

// Log is a reset line for hosts without GPIO access. It only records
// the pulses it was asked for.
type Log struct {
	logger *zap.Logger
	mu     sync.Mutex
	pulses int
	low    bool
}

// NewLog creates a logging reset line
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// SetOutputLow records the start of a pulse
func (l *Log) SetOutputLow() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.low = true
	l.pulses++
	l.logger.Warn("Reset requested but no GPIO line is wired", zap.Int("pulse", l.pulses))
	return nil
}

// SetInputFloating records the end of a pulse
func (l *Log) SetInputFloating() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.low = false
	return nil
}

// Pulses returns the number of pulses requested
func (l *Log) Pulses() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pulses
}

// Low reports whether the line is currently held low
func (l *Log) Low() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.low
}
