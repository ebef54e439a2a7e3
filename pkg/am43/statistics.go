// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package am43

import (
	"fmt"
	"time"
)

// Statistics tracks frame counters and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Receive counters
	TotalFrames     uint64
	ValidFrames     uint64
	ChecksumErrors  uint64
	ShortPayloads   uint64
	InvalidValues   uint64
	UnknownCommands uint64
	DiscardedBytes  uint64

	// Transmit counters
	SentFrames uint64
	SendErrors uint64

	// Recovery counters
	StallRestarts  uint64
	WatchdogResets uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one scan result and the validation errors of its frame
func (s *Statistics) Update(res ScanResult, validationErrors []ValidationError) {
	switch res.Status {
	case ScanChecksumMismatch:
		s.TotalFrames++
		s.ChecksumErrors++
	case ScanOK:
		s.TotalFrames++
		if len(validationErrors) == 0 {
			s.ValidFrames++
		}
		for _, err := range validationErrors {
			switch err.Type {
			case AnomalyPayloadTooShort:
				s.ShortPayloads++
			case AnomalyInvalidValue:
				s.InvalidValues++
			case AnomalyUnknownCommand:
				s.UnknownCommands++
			}
		}
	default:
		return
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// Errors returns the number of received frames that were rejected or
// carried anomalies
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.ShortPayloads + s.InvalidValues + s.UnknownCommands
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, checksumPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.ShortPayloads > 0 {
		result += fmt.Sprintf("Short Payloads:  %8d\n", s.ShortPayloads)
	}
	if s.InvalidValues > 0 {
		result += fmt.Sprintf("Invalid Values:  %8d\n", s.InvalidValues)
	}
	if s.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Cmds:    %8d\n", s.UnknownCommands)
	}
	if s.DiscardedBytes > 0 {
		result += fmt.Sprintf("Discarded Bytes: %8d\n", s.DiscardedBytes)
	}

	result += fmt.Sprintf("Sent Frames:     %8d\n", s.SentFrames)
	if s.SendErrors > 0 {
		result += fmt.Sprintf("Send Errors:     %8d\n", s.SendErrors)
	}
	if s.StallRestarts > 0 {
		result += fmt.Sprintf("Stall Restarts:  %8d\n", s.StallRestarts)
	}
	if s.WatchdogResets > 0 {
		result += fmt.Sprintf("Watchdog Resets: %8d\n", s.WatchdogResets)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
