// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
)

func assertWrites(t *testing.T, tr *fakeTransport, want ...[]byte) {
	t.Helper()
	got := tr.writes()
	if len(got) != len(want) {
		t.Fatalf("got %d writes, want %d: % X", len(got), len(want), got)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("write %d = % X, want % X", i, got[i], want[i])
		}
	}
}

// ============================================================
// Construction
// ============================================================

func TestNewDriver_RejectsBadInput(t *testing.T) {
	if _, err := NewDriver(DefaultConfig(), nil, nil, nil); err == nil {
		t.Errorf("nil transport accepted")
	}
	cfg := DefaultConfig()
	cfg.StallTicks = 0
	if _, err := NewDriver(cfg, &fakeTransport{}, nil, nil); err == nil {
		t.Errorf("invalid config accepted")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero fast interval", func(c *Config) { c.FastInterval = 0 }, false},
		{"negative slow interval", func(c *Config) { c.SlowInterval = -time.Second }, false},
		{"zero stall ticks", func(c *Config) { c.StallTicks = 0 }, false},
		{"zero watchdog", func(c *Config) { c.WatchdogThreshold = 0 }, false},
		{"negative settle", func(c *Config) { c.ResetSettle = -1 }, false},
		{"zero settle", func(c *Config) { c.ResetSettle = 0 }, true},
		{"zero loop period", func(c *Config) { c.LoopPeriod = 0 }, false},
		{"tiny buffer", func(c *Config) { c.ReceiveBuffer = 4 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

// ============================================================
// Discovery
// ============================================================

func TestDriver_FullDiscovery(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)

	var kinds []EventKind
	d.SetObserver(func(ev Event) { kinds = append(kinds, ev.Kind) })

	d.Tick()
	if d.PollState() != PollWaitForSettings {
		t.Fatalf("state = %s", d.PollState())
	}

	d.Feed(settingsReport(0x1F, 30, 40, 2000, 28, 3))
	if d.PollState() != PollWaitForSettings {
		t.Errorf("settings report must not advance discovery, state %s", d.PollState())
	}

	d.Feed(seasonReport([7]byte{1, 0, 40, 7, 30, 20, 0}, [7]byte{}))
	if d.PollState() != PollGetLightLevel {
		t.Fatalf("season report should advance, state %s", d.PollState())
	}

	d.Tick()
	d.Feed(lightReport(12))
	d.Tick()
	d.Feed(batteryReport(91))
	if d.PollState() != PollFinish {
		t.Fatalf("state = %s, want Finish", d.PollState())
	}
	if d.Initialized() {
		t.Errorf("initialized before the finish tick")
	}

	d.Tick()
	if !d.Initialized() || d.PollState() != PollStart {
		t.Errorf("after finish tick: initialized=%v state=%s", d.Initialized(), d.PollState())
	}

	assertWrites(t, tr,
		am43.NewQueryRequest(am43.CmdGetSettings),
		am43.NewQueryRequest(am43.CmdGetLightLevel),
		am43.NewQueryRequest(am43.CmdGetBatteryLevel))

	s := d.State()
	if d.Position() != 40 || d.LightLevel() != 12 || d.Battery() != 91 {
		t.Errorf("position=%d light=%d battery=%d", d.Position(), d.LightLevel(), d.Battery())
	}
	if s.Length != 2000 || s.DeviceType != DeviceTypeJuanlian || s.Summer.StartHour != 7 {
		t.Errorf("state = %+v", s)
	}

	counts := map[EventKind]int{}
	for _, k := range kinds {
		counts[k]++
	}
	if counts[EventSent] != 3 || counts[EventAdvance] != 3 || counts[EventCycleComplete] != 1 || counts[EventFrame] != 4 {
		t.Errorf("event counts = %v", counts)
	}
}

func TestDriver_StepTicksOnInterval(t *testing.T) {
	d, tr, clock, _ := newTestDriver(t)

	// First step ticks immediately
	if err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	assertWrites(t, tr, am43.NewQueryRequest(am43.CmdGetSettings))
	if d.watchdog.Counter() != 1 {
		t.Errorf("watchdog = %d, want 1", d.WatchdogCounter())
	}

	clock.Advance(999 * time.Millisecond)
	d.Step()
	if d.WatchdogCounter() != 1 {
		t.Errorf("ticked before the fast interval elapsed")
	}

	clock.Advance(time.Millisecond)
	d.Step()
	if d.WatchdogCounter() != 2 || d.poller.Ticks() != 1 {
		t.Errorf("watchdog=%d ticks=%d, want one more tick", d.WatchdogCounter(), d.poller.Ticks())
	}
}

func TestDriver_StepDrainsTransport(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)
	d.Tick()

	tr.push(append(settingsReport(0x1F, 30, 55, 0, 0, 1), seasonReport([7]byte{}, [7]byte{})...))
	if err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if d.Position() != 55 || d.PollState() != PollGetLightLevel {
		t.Errorf("position=%d state=%s", d.Position(), d.PollState())
	}
	if tr.Available() != 0 {
		t.Errorf("%d bytes left in transport", tr.Available())
	}
}

func TestDriver_SlowIntervalAfterCycle(t *testing.T) {
	d, tr, clock, _ := newTestDriver(t)

	d.Step()
	tr.push(seasonReport([7]byte{}, [7]byte{}))
	clock.Advance(time.Second)
	d.Step()
	tr.push(lightReport(1))
	clock.Advance(time.Second)
	d.Step()
	tr.push(batteryReport(50))
	clock.Advance(time.Second)
	d.Step()
	if !d.Initialized() {
		t.Fatalf("cycle did not complete, state %s", d.PollState())
	}
	writes := len(tr.writes())

	// Nothing happens for the slow interval
	clock.Advance(14 * time.Second)
	d.Step()
	if len(tr.writes()) != writes {
		t.Errorf("query sent during the slow interval")
	}

	clock.Advance(time.Second)
	d.Step()
	got := tr.writes()
	if len(got) != writes+1 || !bytes.Equal(got[writes], am43.NewQueryRequest(am43.CmdGetSettings)) {
		t.Errorf("new cycle did not start with a settings query")
	}
}

// ============================================================
// Receive Path
// ============================================================

func TestDriver_FragmentationInvariance(t *testing.T) {
	stream := bytes.Join([][]byte{
		{0x00, 0x13, 0x37},
		settingsReport(0x1F, 30, 40, 1000, 28, 2),
		{0xFF},
		lightReport(42),
		batteryReport(66),
		response(am43.CmdGetPosition, []byte{0x01, 20}),
	}, nil)

	reference, _, _, _ := newTestDriver(t)
	if n := reference.Feed(stream); n != 4 {
		t.Fatalf("whole stream dispatched %d frames, want 4", n)
	}
	want := reference.State()

	for split := 1; split < len(stream); split++ {
		d, _, _, _ := newTestDriver(t)
		n := d.Feed(stream[:split])
		n += d.Feed(stream[split:])
		if n != 4 || d.State() != want {
			t.Errorf("split at %d: %d frames, state %+v", split, n, d.State())
		}
	}

	d, _, _, _ := newTestDriver(t)
	n := 0
	for _, b := range stream {
		n += d.Feed([]byte{b})
	}
	if n != 4 || d.State() != want {
		t.Errorf("byte at a time: %d frames, state %+v", n, d.State())
	}
	if d.Buffered() != 0 {
		t.Errorf("%d bytes left buffered", d.Buffered())
	}
}

func TestDriver_ChecksumMismatch(t *testing.T) {
	d, _, _, _ := newTestDriver(t)

	var mismatches int
	d.SetObserver(func(ev Event) {
		if ev.Kind == EventChecksumMismatch {
			mismatches++
		}
	})

	for i := 0; i < 5; i++ {
		d.Tick()
	}

	bad := batteryReport(10)
	bad[len(bad)-1] ^= 0x40
	d.Feed(bad)

	if d.Battery() != 0 {
		t.Errorf("corrupt frame applied, battery %d", d.Battery())
	}
	if d.WatchdogCounter() != 5 {
		t.Errorf("corrupt frame reset the watchdog, counter %d", d.WatchdogCounter())
	}
	if stats := d.Stats(); stats.ChecksumErrors != 1 {
		t.Errorf("ChecksumErrors = %d, want 1", stats.ChecksumErrors)
	}
	if mismatches != 1 {
		t.Errorf("mismatch events = %d, want 1", mismatches)
	}

	// The next valid frame is still found
	d.Feed(batteryReport(10))
	if d.Battery() != 10 || d.WatchdogCounter() != 0 {
		t.Errorf("battery=%d watchdog=%d after a valid frame", d.Battery(), d.WatchdogCounter())
	}
}

func TestDriver_NoiseIsDiscarded(t *testing.T) {
	d, _, _, _ := newTestDriver(t)

	noise := make([]byte, 2000)
	for i := range noise {
		noise[i] = byte(i%7) + 1
	}
	d.Feed(noise)

	if d.Buffered() != 0 {
		t.Errorf("%d noise bytes retained", d.Buffered())
	}
	if stats := d.Stats(); stats.DiscardedBytes != 2000 {
		t.Errorf("DiscardedBytes = %d, want 2000", stats.DiscardedBytes)
	}
}

func TestDriver_BogusLengthRecovers(t *testing.T) {
	d, _, _, _ := newTestDriver(t)

	// A header byte whose length claims the maximum payload
	d.Feed([]byte{0x9A, 0xA7, 0xFF})
	d.Feed(make([]byte, 600))
	d.Feed(lightReport(33))

	if d.LightLevel() != 33 {
		t.Errorf("frame after bogus candidate lost, light %d", d.LightLevel())
	}
	if stats := d.Stats(); stats.ChecksumErrors != 1 {
		t.Errorf("ChecksumErrors = %d, want 1", stats.ChecksumErrors)
	}
}

// ============================================================
// Watchdog
// ============================================================

func TestDriver_WatchdogPulsesResetLine(t *testing.T) {
	d, _, clock, line := newTestDriver(t)

	var resets int
	d.SetObserver(func(ev Event) {
		if ev.Kind == EventWatchdogReset {
			resets++
		}
	})

	for i := 1; i <= 32; i++ {
		d.Tick()
	}
	if len(line.ops) != 0 {
		t.Fatalf("reset line touched after 32 silent ticks")
	}

	d.Tick()
	if len(line.ops) != 2 || line.ops[0] != "low" || line.ops[1] != "float" {
		t.Errorf("ops = %v, want one pulse", line.ops)
	}
	if len(clock.sleeps) != 2 {
		t.Errorf("sleeps = %v, want two settle periods", clock.sleeps)
	}
	if d.WatchdogCounter() != 0 || resets != 1 || d.Stats().WatchdogResets != 1 {
		t.Errorf("counter=%d events=%d stats=%d", d.WatchdogCounter(), resets, d.Stats().WatchdogResets)
	}
}

func TestDriver_WatchdogWithoutResetLine(t *testing.T) {
	d, err := NewDriver(DefaultConfig(), &fakeTransport{}, nil, nil)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	d.SetClock(newFakeClock())

	for i := 0; i < 33; i++ {
		d.Tick()
	}
	if d.Stats().WatchdogResets != 1 || d.WatchdogCounter() != 0 {
		t.Errorf("watchdog did not fire without a reset line")
	}
}

func TestDriver_AnswersKeepWatchdogQuiet(t *testing.T) {
	d, _, _, line := newTestDriver(t)

	for i := 0; i < 200; i++ {
		d.Tick()
		if i%10 == 0 {
			d.Feed(response(am43.CmdVerification, []byte{0x5A}))
		}
	}
	if len(line.ops) != 0 {
		t.Errorf("reset pulsed despite regular answers")
	}
}

func TestDriver_StallRestartCounted(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)

	for i := 0; i < 12; i++ {
		d.Tick()
	}
	assertWrites(t, tr,
		am43.NewQueryRequest(am43.CmdGetSettings),
		am43.NewQueryRequest(am43.CmdGetSettings))
	if d.Stats().StallRestarts != 1 {
		t.Errorf("StallRestarts = %d, want 1", d.Stats().StallRestarts)
	}
}

// ============================================================
// Control
// ============================================================

func TestDriver_OptimisticPosition(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		action   am43.Action
		position uint8
	}{
		{"close from 99", 99, am43.ActionClose, 100},
		{"close at 100 clamps", 100, am43.ActionClose, 100},
		{"open from 1", 1, am43.ActionOpen, 0},
		{"open at 0 clamps", 0, am43.ActionOpen, 0},
		{"stop leaves position", 50, am43.ActionStop, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, tr, _, _ := newTestDriver(t)
			d.mu.Lock()
			d.state.SetPosition(tt.start)
			d.mu.Unlock()

			if err := d.SendAction(tt.action); err != nil {
				t.Fatalf("SendAction: %v", err)
			}
			if d.Position() != tt.position {
				t.Errorf("position = %d, want %d", d.Position(), tt.position)
			}
			wantOpenness := float64(100-int(tt.position)) / 100
			if math.Abs(d.State().Openness-wantOpenness) > 1e-9 {
				t.Errorf("openness = %.2f, want %.2f", d.State().Openness, wantOpenness)
			}
			assertWrites(t, tr, am43.NewActionRequest(tt.action))
		})
	}
}

func TestDriver_SendActionRejectsUnknown(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)
	if err := d.SendAction(am43.Action(0x42)); err == nil {
		t.Errorf("unknown action accepted")
	}
	assertWrites(t, tr)
}

func TestDriver_SendFailureStillMovesPosition(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)
	tr.writeErr = errLinkDown

	var failed int
	d.SetObserver(func(ev Event) {
		if ev.Kind == EventSendFailed && ev.IsError() {
			failed++
		}
	})

	err := d.SendAction(am43.ActionClose)
	if !errors.Is(err, errLinkDown) {
		t.Errorf("err = %v, want wrapped errLinkDown", err)
	}
	if d.Position() != 1 {
		t.Errorf("position = %d, want 1", d.Position())
	}
	if d.Stats().SendErrors != 1 || failed != 1 {
		t.Errorf("SendErrors=%d events=%d", d.Stats().SendErrors, failed)
	}
}

func TestDriver_SetPosition(t *testing.T) {
	tests := []struct {
		in   int
		want uint8
	}{
		{30, 30},
		{150, 100},
		{-1, 0},
	}

	for _, tt := range tests {
		d, tr, _, _ := newTestDriver(t)
		if err := d.SetPosition(tt.in); err != nil {
			t.Fatalf("SetPosition(%d): %v", tt.in, err)
		}
		if d.Position() != tt.want {
			t.Errorf("SetPosition(%d): position %d, want %d", tt.in, d.Position(), tt.want)
		}
		assertWrites(t, tr, am43.NewSetPositionRequest(int(tt.want)))
	}
}

func TestDriver_SetOpenness(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)
	if err := d.SetOpenness(0.25); err != nil {
		t.Fatalf("SetOpenness: %v", err)
	}
	if d.Position() != 75 {
		t.Errorf("position = %d, want 75", d.Position())
	}
	assertWrites(t, tr, am43.NewSetPositionRequest(75))
}

func TestDriver_WriteSettings(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)
	s := am43.Settings{DeviceType: 3, Speed: 30, Length: 1500, Diameter: 28}

	if err := d.WriteSettings(s); err != nil {
		t.Fatalf("WriteSettings: %v", err)
	}
	assertWrites(t, tr, am43.NewSettingsRequest(s))
	if d.State().Speed != 0 {
		t.Errorf("local state must wait for the next report")
	}
}

// ============================================================
// Run
// ============================================================

func TestDriver_RunStopsOnCancel(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Run(ctx); err != nil {
		t.Errorf("Run() = %v, want nil on cancel", err)
	}
	if len(tr.writes()) != 1 {
		t.Errorf("expected the first tick before stopping, got %d writes", len(tr.writes()))
	}
}

func TestDriver_RunReturnsTransportError(t *testing.T) {
	d, tr, _, _ := newTestDriver(t)
	tr.push(lightReport(5))
	tr.readErr = errLinkDown

	err := d.Run(context.Background())
	if !errors.Is(err, errLinkDown) {
		t.Errorf("Run() = %v, want wrapped errLinkDown", err)
	}
	if d.LightLevel() != 5 {
		t.Errorf("buffered bytes not processed before the error")
	}
}

// ============================================================
// Snapshot
// ============================================================

func TestSnapshot_Encoding(t *testing.T) {
	d, _, _, _ := newTestDriver(t)
	d.Tick()
	d.Feed(settingsReport(0x1F, 30, 40, 2000, 28, 8))
	d.Feed(seasonReport([7]byte{1, 1, 40, 7, 30, 20, 15}, [7]byte{0, 0, 10, 9, 0, 17, 0}))
	d.Feed(batteryReport(64))

	snap := d.Snapshot()
	if snap.Poll != "GetLightLevel" || snap.DeviceType != "Xianggelila" || snap.Battery != 64 {
		t.Errorf("snapshot = %+v", snap)
	}

	data, err := snap.EncodeCBOR()
	if err != nil {
		t.Fatalf("EncodeCBOR: %v", err)
	}
	decoded, err := DecodeSnapshotCBOR(data)
	if err != nil {
		t.Fatalf("DecodeSnapshotCBOR: %v", err)
	}
	if !decoded.Time.Equal(snap.Time) {
		t.Errorf("time = %v, want %v", decoded.Time, snap.Time)
	}
	decoded.Time = snap.Time
	if decoded != snap {
		t.Errorf("CBOR round trip:\n got %+v\nwant %+v", decoded, snap)
	}

	if _, err := DecodeSnapshotCBOR([]byte{0xFF}); err == nil {
		t.Errorf("garbage decoded without error")
	}

	yamlData, err := snap.EncodeYAML()
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	for _, want := range []string{"position: 40", "battery: 64", "device_type: Xianggelila", "start_hour: 7"} {
		if !bytes.Contains(yamlData, []byte(want)) {
			t.Errorf("yaml missing %q:\n%s", want, yamlData)
		}
	}
}
