// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
)

// ============================================================
// Test Fakes
// ============================================================

// fakeTransport queues inbound bytes and records every write
type fakeTransport struct {
	mu       sync.Mutex
	in       []byte
	written  [][]byte
	readErr  error
	writeErr error
}

func (f *fakeTransport) push(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in = append(f.in, p...)
}

func (f *fakeTransport) Available() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.in)
}

func (f *fakeTransport) ReadInto(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.in) == 0 {
		return 0, f.readErr
	}
	n := copy(p, f.in)
	f.in = f.in[n:]
	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeTransport) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// fakeClock only moves when told to, or when slept on
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeResetLine records the order of line operations
type fakeResetLine struct {
	ops     []string
	lowErr  error
	highErr error
}

func (l *fakeResetLine) SetOutputLow() error {
	l.ops = append(l.ops, "low")
	return l.lowErr
}

func (l *fakeResetLine) SetInputFloating() error {
	l.ops = append(l.ops, "float")
	return l.highErr
}

var errLinkDown = errors.New("link down")

// ============================================================
// Frame Builders
// ============================================================

// response builds a device report as it appears on the wire
func response(cmd am43.Command, payload []byte) []byte {
	frame := []byte{am43.HeaderPrefix[0], byte(cmd), byte(len(payload))}
	frame = append(frame, payload...)
	return append(frame, am43.Checksum(frame))
}

func settingsReport(flags, speed, position byte, length uint16, diameter, typeCode byte) []byte {
	return response(am43.CmdGetSettings, []byte{flags, speed, position, byte(length >> 8), byte(length), diameter, typeCode << 4})
}

func lightReport(level byte) []byte {
	return response(am43.CmdGetLightLevel, []byte{0x01, level})
}

func batteryReport(level byte) []byte {
	return response(am43.CmdGetBatteryLevel, []byte{0x00, 0x00, 0x00, 0x00, level})
}

func seasonPayload(summer, winter [7]byte) []byte {
	p := []byte{0x00}
	p = append(p, summer[:]...)
	p = append(p, 0x00)
	p = append(p, winter[:]...)
	return p
}

func seasonReport(summer, winter [7]byte) []byte {
	return response(am43.CmdGetSeason, seasonPayload(summer, winter))
}

// newTestDriver creates a driver wired to fakes
func newTestDriver(t *testing.T) (*Driver, *fakeTransport, *fakeClock, *fakeResetLine) {
	t.Helper()
	tr := &fakeTransport{}
	clock := newFakeClock()
	line := &fakeResetLine{}

	d, err := NewDriver(DefaultConfig(), tr, line, nil)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	d.SetClock(clock)
	return d, tr, clock, line
}
