// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
)

// EventKind identifies what the driver is reporting
type EventKind int

const (
	EventFrame EventKind = iota
	EventChecksumMismatch
	EventAdvance
	EventStallRestart
	EventCycleComplete
	EventWatchdogReset
	EventSent
	EventSendFailed
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventFrame:
		return "frame"
	case EventChecksumMismatch:
		return "checksum_mismatch"
	case EventAdvance:
		return "advance"
	case EventStallRestart:
		return "stall_restart"
	case EventCycleComplete:
		return "cycle_complete"
	case EventWatchdogReset:
		return "watchdog_reset"
	case EventSent:
		return "sent"
	case EventSendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

// Event is reported to the driver's observer. Command is set for frame,
// mismatch and send events; Err for failures.
type Event struct {
	Time    time.Time
	Kind    EventKind
	Command am43.Command
	Poll    PollState
	Err     error
}

// IsError reports whether the event describes a failure
func (e Event) IsError() bool {
	switch e.Kind {
	case EventChecksumMismatch, EventWatchdogReset, EventSendFailed:
		return true
	default:
		return false
	}
}
