// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package am43

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f Frame, ts time.Time) string {
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n",
		ts.Format("15:04:05.000"), FormatCommand(f.Command), uint8(f.Command), len(f.Payload))
	if len(f.Payload) > 0 {
		result += FormatPayload(f.Command, f.Payload)
	}
	return result
}

// FormatCommand returns the human-readable name for a command code
func FormatCommand(cmd Command) string {
	switch cmd {
	case CmdSendAction:
		return "SEND_ACTION"
	case CmdSetPosition:
		return "SET_POSITION"
	case CmdSetSettings:
		return "SET_SETTINGS"
	case CmdGetSettings:
		return "SETTINGS"
	case CmdGetLightLevel:
		return "LIGHT_LEVEL"
	case CmdGetBatteryLevel:
		return "BATTERY_LEVEL"
	case CmdVerification:
		return "VERIFICATION"
	case CmdGetPosition:
		return "POSITION"
	case CmdGetSpeed:
		return "SPEED"
	case CmdGetTiming:
		return "TIMING"
	case CmdGetSeason:
		return "SEASON"
	default:
		return "UNKNOWN"
	}
}

// FormatAction returns the human-readable name for a control action
func FormatAction(a Action) string {
	switch a {
	case ActionOpen:
		return "OPEN"
	case ActionClose:
		return "CLOSE"
	case ActionStop:
		return "STOP"
	default:
		return fmt.Sprintf("ACTION(0x%02X)", uint8(a))
	}
}

// FormatPayload decodes known report payloads, falling back to a hex dump
func FormatPayload(cmd Command, payload []byte) string {
	switch cmd {
	case CmdSendAction:
		if len(payload) >= 1 {
			return fmt.Sprintf("  Action: %s\n", FormatAction(Action(payload[0])))
		}

	case CmdSetPosition:
		if len(payload) >= 1 {
			return fmt.Sprintf("  Target: %d%% closed\n", payload[0])
		}

	case CmdGetSettings:
		if len(payload) >= MinSettingsPayload {
			flags := payload[0]
			return fmt.Sprintf("  Flags: 0x%02X (dir=%d mode=%d top=%d bottom=%d light=%d)\n"+
				"  Speed: %d RPM, Position: %d%%, Length: %d mm, Diameter: %d mm, Type: %d\n",
				flags, flags&1, (flags>>1)&1, (flags>>2)&1, (flags>>3)&1, (flags>>4)&1,
				payload[1], payload[2], uint16(payload[3])<<8|uint16(payload[4]), payload[5], payload[6]>>4)
		}

	case CmdGetLightLevel:
		if len(payload) >= MinLightPayload {
			return fmt.Sprintf("  Light: %d\n", payload[1])
		}

	case CmdGetPosition:
		if len(payload) >= MinPositionPayload {
			return fmt.Sprintf("  Position: %d%%\n", payload[1])
		}

	case CmdGetBatteryLevel:
		if len(payload) >= MinBatteryPayload {
			return fmt.Sprintf("  Battery: %d%%\n", payload[4])
		}

	case CmdGetSpeed:
		if len(payload) >= MinSpeedPayload {
			flags := payload[0]
			return fmt.Sprintf("  Speed: %d RPM (dir=%d mode=%d light=%d)\n",
				payload[1], (flags>>1)&1, (flags>>2)&1, (flags>>3)&1)
		}

	case CmdGetSeason:
		if len(payload) >= MinSeasonPayload {
			return "  Summer: " + formatSeasonRecord(payload[1:1+SeasonRecordSize]) + "\n" +
				"  Winter: " + formatSeasonRecord(payload[9:9+SeasonRecordSize]) + "\n"
		}
	}

	return FormatHex(payload)
}

func formatSeasonRecord(rec []byte) string {
	state := "Off"
	if rec[0] != 0 {
		state = "On"
	}
	return fmt.Sprintf("%s, light=%d, threshold=%d, %02d:%02d-%02d:%02d",
		state, rec[1], rec[2], rec[3], rec[4], rec[5], rec[6])
}

// FormatHex returns an indented hex dump, 16 bytes per line
func FormatHex(data []byte) string {
	var s strings.Builder
	s.WriteString("  Payload: ")
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			s.WriteString("\n           ")
		}
		fmt.Fprintf(&s, "%02X ", b)
	}
	s.WriteString("\n")
	return s.String()
}
