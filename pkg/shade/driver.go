// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
	"go.uber.org/zap"
)

// Driver owns the device state and runs the receive/poll loop.
//
// Step, Run, Feed and Tick must be called from a single goroutine. Control
// operations and getters may be called from any goroutine.
type Driver struct {
	cfg       Config
	transport Transport
	reset     ResetLine
	clock     Clock
	logger    *zap.Logger
	observer  func(Event)

	mu       sync.RWMutex
	state    State
	poller   *Poller
	watchdog *Watchdog
	stats    *am43.Statistics
	rx       []byte
	lastTick time.Time

	readBuf []byte

	// txMu serialises writes from the loop and from control callers
	txMu sync.Mutex
}

// NewDriver creates a driver. reset may be nil when no reset line is wired;
// the watchdog then only logs. logger may be nil.
func NewDriver(cfg Config, transport Transport, reset ResetLine, logger *zap.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("shade: transport required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Driver{
		cfg:       cfg,
		transport: transport,
		reset:     reset,
		clock:     SystemClock(),
		logger:    logger,
		state:     NewState(),
		poller:    NewPoller(cfg.FastInterval, cfg.SlowInterval, cfg.StallTicks),
		watchdog:  NewWatchdog(cfg.WatchdogThreshold),
		stats:     am43.NewStatistics(),
		rx:        make([]byte, 0, cfg.ReceiveBuffer),
		readBuf:   make([]byte, cfg.ReceiveBuffer),
	}, nil
}

// SetClock replaces the clock. Call before Run.
func (d *Driver) SetClock(c Clock) {
	d.clock = c
}

// SetObserver registers a callback for driver events. Call before Run.
// The callback runs without locks held, on the driver goroutine or on the
// goroutine of a control operation.
func (d *Driver) SetObserver(fn func(Event)) {
	d.observer = fn
}

// Run steps the driver every loop period until ctx is done or the
// transport fails.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.LoopPeriod)
	defer ticker.Stop()

	d.logger.Info("Driver started",
		zap.Duration("fast_interval", d.cfg.FastInterval),
		zap.Duration("slow_interval", d.cfg.SlowInterval))

	for {
		if err := d.Step(); err != nil {
			return fmt.Errorf("transport failed: %w", err)
		}

		select {
		case <-ctx.Done():
			d.logger.Info("Driver stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs one loop iteration: drain the transport, dispatch every complete
// frame, then tick the poller and watchdog if the interval has elapsed.
func (d *Driver) Step() error {
	for d.transport.Available() > 0 {
		n, err := d.transport.ReadInto(d.readBuf)
		if n > 0 {
			d.Feed(d.readBuf[:n])
		}
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}
	// Surface a failed stream once it is drained
	if _, err := d.transport.ReadInto(d.readBuf[:0]); err != nil {
		return err
	}

	d.mu.RLock()
	due := d.lastTick.IsZero() || d.clock.Now().Sub(d.lastTick) >= d.poller.Interval()
	d.mu.RUnlock()

	if due {
		d.Tick()
	}
	return nil
}

// Feed appends inbound bytes to the receive buffer and dispatches every
// complete frame. Bytes of an incomplete frame are kept for the next call.
// Returns the number of valid frames dispatched.
func (d *Driver) Feed(p []byte) int {
	var events []Event
	frames := 0

	d.mu.Lock()
	for len(p) > 0 {
		space := cap(d.rx) - len(d.rx)
		n := len(p)
		if n > space {
			n = space
		}
		d.rx = append(d.rx, p[:n]...)
		p = p[n:]

		var f int
		f, events = d.processLocked(events)
		frames += f
	}
	d.mu.Unlock()

	d.emit(events...)
	return frames
}

// processLocked scans the receive buffer until no more frames can be taken
func (d *Driver) processLocked(events []Event) (int, []Event) {
	frames := 0
	for {
		res := am43.Scan(d.rx)
		if res.Consumed == 0 {
			d.discardLocked(res.Skippable)
			if len(d.rx) < cap(d.rx) {
				return frames, events
			}
			// Full with a candidate that can never complete
			d.discardLocked(1)
			continue
		}

		switch res.Status {
		case am43.ScanChecksumMismatch:
			d.stats.Update(res, nil)
			d.logger.Warn("Checksum mismatch",
				zap.Uint8("received", res.Checksum),
				zap.Uint8("computed", res.Computed))
			events = append(events, Event{Time: d.clock.Now(), Kind: EventChecksumMismatch, Poll: d.poller.State()})

		case am43.ScanOK:
			frames++
			events = d.handleFrameLocked(*res.Frame, res, events)
		}

		d.rx = d.rx[:copy(d.rx, d.rx[res.Consumed:])]
	}
}

func (d *Driver) handleFrameLocked(f am43.Frame, res am43.ScanResult, events []Event) []Event {
	now := d.clock.Now()

	// Any valid frame proves the device is alive
	d.watchdog.Answer()
	d.stats.Update(res, am43.ValidateFrame(f))

	dr := Dispatch(&d.state, f)
	d.logger.Debug("Frame received",
		zap.String("command", am43.FormatCommand(f.Command)),
		zap.Int("length", len(f.Payload)),
		zap.Bool("updated", dr.Updated),
		zap.Bool("short", dr.Short))
	events = append(events, Event{Time: now, Kind: EventFrame, Command: f.Command, Poll: d.poller.State()})

	if dr.Signal != NoPollEvent && d.poller.Advance(dr.Signal) {
		d.logger.Debug("Discovery advanced",
			zap.String("signal", dr.Signal.String()),
			zap.String("state", d.poller.State().String()))
		events = append(events, Event{Time: now, Kind: EventAdvance, Command: f.Command, Poll: d.poller.State()})
	}
	return events
}

func (d *Driver) discardLocked(n int) {
	if n <= 0 {
		return
	}
	if n > len(d.rx) {
		n = len(d.rx)
	}
	d.rx = d.rx[:copy(d.rx, d.rx[n:])]
	d.stats.DiscardedBytes += uint64(n)
}

// Tick runs one poller and watchdog tick. When the watchdog fires, Tick
// blocks for the reset pulse (twice the configured settle time).
func (d *Driver) Tick() {
	var events []Event

	d.mu.Lock()
	now := d.clock.Now()
	d.lastTick = now

	fire := d.watchdog.Tick()
	if fire {
		d.stats.WatchdogResets++
	}

	tr := d.poller.Tick()
	if tr.Restarted {
		d.stats.StallRestarts++
		d.logger.Info("Discovery stalled, restarting")
		events = append(events, Event{Time: now, Kind: EventStallRestart, Poll: d.poller.State()})
	}
	if tr.Completed {
		first := !d.state.Initialized
		d.state.Initialized = true
		d.logger.Info("Discovery complete",
			zap.Bool("first", first),
			zap.Uint8("position", d.state.Position),
			zap.Uint8("battery", d.state.Battery),
			zap.Uint8("light", d.state.LightLevel))
		events = append(events, Event{Time: now, Kind: EventCycleComplete, Poll: d.poller.State()})
	}
	poll := d.poller.State()
	d.mu.Unlock()

	if fire {
		events = append(events, d.pulseReset(now, poll))
	}
	d.emit(events...)

	if tr.Send {
		d.send(tr.Query, []byte{am43.QueryArgument})
	}
}

func (d *Driver) pulseReset(now time.Time, poll PollState) Event {
	ev := Event{Time: now, Kind: EventWatchdogReset, Poll: poll}
	if d.reset == nil {
		d.logger.Warn("Device unresponsive, no reset line configured",
			zap.Int("threshold", d.cfg.WatchdogThreshold))
		return ev
	}

	d.logger.Warn("Device unresponsive, pulsing reset line",
		zap.Int("threshold", d.cfg.WatchdogThreshold),
		zap.Duration("settle", d.cfg.ResetSettle))
	if err := PulseReset(d.reset, d.clock, d.cfg.ResetSettle); err != nil {
		d.logger.Error("Reset pulse failed", zap.Error(err))
		ev.Err = err
	}
	return ev
}

// send encodes and transmits a request. Nothing is written if the frame
// does not fit.
func (d *Driver) send(cmd am43.Command, payload []byte) error {
	ev := Event{Time: d.clock.Now(), Kind: EventSent, Command: cmd}

	frame, err := am43.BuildRequest(cmd, payload)
	if err == nil {
		d.txMu.Lock()
		_, err = d.transport.Write(frame)
		d.txMu.Unlock()
	}

	d.mu.Lock()
	ev.Poll = d.poller.State()
	if err != nil {
		d.stats.SendErrors++
	} else {
		d.stats.SentFrames++
	}
	d.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("failed to send %s: %w", am43.FormatCommand(cmd), err)
		d.logger.Error("Send failed", zap.Error(err))
		ev.Kind = EventSendFailed
		ev.Err = err
	} else {
		d.logger.Debug("Request sent",
			zap.String("command", am43.FormatCommand(cmd)),
			zap.Binary("frame", frame))
	}

	d.emit(ev)
	return err
}

func (d *Driver) emit(events ...Event) {
	if d.observer == nil {
		return
	}
	for _, ev := range events {
		d.observer(ev)
	}
}

// SendAction transmits a control action. Open and Close nudge the local
// position by one step before the device confirms anything, so automation
// layers that refuse to close an already-closed cover are not blocked by a
// stale position. The local update happens even if the write fails.
func (d *Driver) SendAction(action am43.Action) error {
	switch action {
	case am43.ActionOpen, am43.ActionClose, am43.ActionStop:
	default:
		return fmt.Errorf("unknown action 0x%02X", uint8(action))
	}

	err := d.send(am43.CmdSendAction, []byte{byte(action)})

	d.mu.Lock()
	switch action {
	case am43.ActionClose:
		d.state.SetPosition(int(d.state.Position) + 1)
	case am43.ActionOpen:
		d.state.SetPosition(int(d.state.Position) - 1)
	}
	d.mu.Unlock()

	return err
}

// SetPosition clamps percent to 0-100 (percent closed), updates the local
// position, then transmits the request.
func (d *Driver) SetPosition(percent int) error {
	d.mu.Lock()
	d.state.SetPosition(percent)
	target := d.state.Position
	d.mu.Unlock()

	return d.send(am43.CmdSetPosition, []byte{target})
}

// SetOpenness moves the cover to a UI openness between 0.0 (closed) and
// 1.0 (open)
func (d *Driver) SetOpenness(openness float64) error {
	return d.SetPosition(OpennessToPosition(openness))
}

// WriteSettings transmits a settings block. The local state is left alone;
// the next discovery cycle reads the result back.
func (d *Driver) WriteSettings(s am43.Settings) error {
	return d.send(am43.CmdSetSettings, am43.SettingsPayload(s))
}

// State returns a copy of the device state
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Position returns the last known position, percent closed
func (d *Driver) Position() uint8 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Position
}

// Battery returns the last reported battery level
func (d *Driver) Battery() uint8 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Battery
}

// LightLevel returns the last reported light level
func (d *Driver) LightLevel() uint8 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.LightLevel
}

// Initialized reports whether a full discovery cycle has completed
func (d *Driver) Initialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Initialized
}

// PollState returns the current discovery step
func (d *Driver) PollState() PollState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.poller.State()
}

// WatchdogCounter returns the number of ticks since the last valid frame
func (d *Driver) WatchdogCounter() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.watchdog.Counter()
}

// Stats returns a copy of the frame statistics
func (d *Driver) Stats() am43.Statistics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := *d.stats
	s.CalculateRates()
	return s
}

// Buffered returns the number of received bytes waiting for a complete frame
func (d *Driver) Buffered() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rx)
}
