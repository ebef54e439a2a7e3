// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package am43

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyPayloadTooShort AnomalyType = iota
	AnomalyInvalidValue
	AnomalyUnknownCommand
)

// ValidationError represents a frame validation failure.
// A frame carrying validation errors still passed its checksum.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// MinPayloadLength returns the minimum payload length the host needs to
// decode a report, and false for commands the host does not decode.
func MinPayloadLength(cmd Command) (int, bool) {
	switch cmd {
	case CmdGetSettings:
		return MinSettingsPayload, true
	case CmdGetLightLevel:
		return MinLightPayload, true
	case CmdGetPosition:
		return MinPositionPayload, true
	case CmdGetBatteryLevel:
		return MinBatteryPayload, true
	case CmdGetSpeed:
		return MinSpeedPayload, true
	case CmdGetSeason:
		return MinSeasonPayload, true
	default:
		return 0, false
	}
}

// ValidateFrame checks a checksum-valid frame for short payloads and
// out-of-range values. Returns an empty slice if the frame is fine.
func ValidateFrame(f Frame) []ValidationError {
	errors := []ValidationError{}

	minLen, known := MinPayloadLength(f.Command)
	if !known {
		switch f.Command {
		case CmdVerification, CmdGetTiming, CmdSendAction, CmdSetPosition, CmdSetSettings:
			// Acknowledged but not decoded
			return errors
		}
		return append(errors, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command 0x%02X", uint8(f.Command)),
			Details: map[string]interface{}{"command": uint8(f.Command)},
		})
	}

	if len(f.Payload) < minLen {
		return append(errors, ValidationError{
			Type:    AnomalyPayloadTooShort,
			Message: fmt.Sprintf("%s payload too short (%d bytes, expected %d)", FormatCommand(f.Command), len(f.Payload), minLen),
			Details: map[string]interface{}{"length": len(f.Payload), "expected": minLen},
		})
	}

	switch f.Command {
	case CmdGetSettings:
		errors = append(errors, checkPercent("position", f.Payload[2])...)
	case CmdGetPosition:
		errors = append(errors, checkPercent("position", f.Payload[1])...)
	case CmdGetBatteryLevel:
		errors = append(errors, checkPercent("battery", f.Payload[4])...)
	case CmdGetSeason:
		errors = append(errors, validateSeason("summer", f.Payload[1:1+SeasonRecordSize])...)
		errors = append(errors, validateSeason("winter", f.Payload[9:9+SeasonRecordSize])...)
	}

	return errors
}

func checkPercent(name string, v byte) []ValidationError {
	if v <= 100 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidValue,
		Message: fmt.Sprintf("Invalid %s=%d (max 100)", name, v),
		Details: map[string]interface{}{name: v, "max": 100},
	}}
}

// validateSeason checks the time of day fields of a season record
func validateSeason(name string, rec []byte) []ValidationError {
	var errors []ValidationError
	startHour, startMinute := rec[3], rec[4]
	endHour, endMinute := rec[5], rec[6]

	if startHour > 23 || endHour > 23 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid %s season hour (start=%d, end=%d)", name, startHour, endHour),
			Details: map[string]interface{}{"start_hour": startHour, "end_hour": endHour},
		})
	}
	if startMinute > 59 || endMinute > 59 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid %s season minute (start=%d, end=%d)", name, startMinute, endMinute),
			Details: map[string]interface{}{"start_minute": startMinute, "end_minute": endMinute},
		})
	}
	return errors
}
