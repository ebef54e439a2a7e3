// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
)

// PollState is a step of the discovery cycle
type PollState int

const (
	PollStart PollState = iota
	PollGetSettings
	PollWaitForSettings
	PollGetLightLevel
	PollWaitForLightLevel
	PollGetBatteryLevel
	PollWaitForBatteryLevel
	PollFinish
)

// String returns the state name
func (p PollState) String() string {
	switch p {
	case PollStart:
		return "Start"
	case PollGetSettings:
		return "GetSettings"
	case PollWaitForSettings:
		return "WaitForSettings"
	case PollGetLightLevel:
		return "GetLightLevel"
	case PollWaitForLightLevel:
		return "WaitForLightLevel"
	case PollGetBatteryLevel:
		return "GetBatteryLevel"
	case PollWaitForBatteryLevel:
		return "WaitForBatteryLevel"
	case PollFinish:
		return "Finish"
	default:
		return "Unknown"
	}
}

// TickResult describes what one Poller.Tick did
type TickResult struct {
	// Query is the request to transmit, valid when Send is true
	Query am43.Command
	Send  bool
	// Restarted is true when the stall timeout forced a new cycle
	Restarted bool
	// Completed is true when a full discovery cycle just finished
	Completed bool
}

// Poller is the discovery state machine. It never terminates: after Finish
// it waits one slow interval and starts over.
type Poller struct {
	state      PollState
	ticks      int
	interval   time.Duration
	fast       time.Duration
	slow       time.Duration
	stallTicks int
}

// NewPoller creates a poller in the Start state using the fast interval
func NewPoller(fast, slow time.Duration, stallTicks int) *Poller {
	return &Poller{
		state:      PollStart,
		interval:   fast,
		fast:       fast,
		slow:       slow,
		stallTicks: stallTicks,
	}
}

// State returns the current step
func (p *Poller) State() PollState {
	return p.state
}

// Interval returns the time to wait before the next tick
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Ticks returns the number of ticks spent in the current step
func (p *Poller) Ticks() int {
	return p.ticks
}

// Tick advances the machine by one timer tick
func (p *Poller) Tick() TickResult {
	var res TickResult

	p.ticks++
	if p.ticks > p.stallTicks || p.state == PollStart {
		// Stall override, also the normal entry from Start
		res.Restarted = p.state != PollStart
		p.interval = p.fast
		p.state = PollGetSettings
		p.ticks = 0
	} else if p.state == PollFinish {
		p.interval = p.slow
		p.state = PollStart
		p.ticks = 0
		res.Completed = true
	}

	switch p.state {
	case PollGetSettings:
		p.state = PollWaitForSettings
		p.ticks = 0
		res.Query, res.Send = am43.CmdGetSettings, true
	case PollGetLightLevel:
		p.state = PollWaitForLightLevel
		p.ticks = 0
		res.Query, res.Send = am43.CmdGetLightLevel, true
	case PollGetBatteryLevel:
		p.state = PollWaitForBatteryLevel
		p.ticks = 0
		res.Query, res.Send = am43.CmdGetBatteryLevel, true
	}

	return res
}

// Advance reacts to a dispatcher event. Events that do not match the step
// being waited on are ignored. Returns true if the state changed.
//
// Leaving WaitForSettings is keyed to the season report, not the settings
// report. This follows observed device traces; re-check it against new
// firmware before changing it.
func (p *Poller) Advance(ev PollEvent) bool {
	switch {
	case ev == SeasonReady && p.state == PollWaitForSettings:
		p.state = PollGetLightLevel
	case ev == LightLevelReady && p.state == PollWaitForLightLevel:
		p.state = PollGetBatteryLevel
	case ev == BatteryLevelReady && p.state == PollWaitForBatteryLevel:
		p.state = PollFinish
	default:
		return false
	}
	return true
}
