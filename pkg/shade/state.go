// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package shade drives an AM43-class blind motor over a byte stream.
//
// The Driver owns a single device State and keeps it current by scanning
// inbound bytes for frames, dispatching them, and running a timer-driven
// discovery cycle (settings, light level, battery level). A per-step stall
// timeout restarts discovery and a no-answer watchdog pulses the device's
// hardware reset line when it stops talking entirely.
package shade

import (
	"fmt"
	"strings"
)

// Direction is the motor direction setting
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionForward
	DirectionReverse
)

// directionFromBit maps a raw direction bit to a Direction
func directionFromBit(bit byte) Direction {
	switch bit {
	case 1:
		return DirectionForward
	case 0:
		return DirectionReverse
	default:
		return DirectionUnknown
	}
}

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "Forward"
	case DirectionReverse:
		return "Reverse"
	default:
		return "Unknown"
	}
}

// OperationMode is the motor operation mode setting
type OperationMode int

const (
	OperationModeUnknown OperationMode = iota
	OperationModeInching
	OperationModeContinuous
)

// operationModeFromBit maps a raw mode bit to an OperationMode
func operationModeFromBit(bit byte) OperationMode {
	switch bit {
	case 1:
		return OperationModeInching
	case 0:
		return OperationModeContinuous
	default:
		return OperationModeUnknown
	}
}

// String returns the operation mode name
func (m OperationMode) String() string {
	switch m {
	case OperationModeInching:
		return "Inching"
	case OperationModeContinuous:
		return "Continuous"
	default:
		return "Unknown"
	}
}

// DeviceType is the model code reported in the settings report
type DeviceType uint8

// Known model codes
const (
	DeviceTypeUnknown     DeviceType = 0
	DeviceTypeBaiye       DeviceType = 1
	DeviceTypeChuizhi     DeviceType = 2
	DeviceTypeJuanlian    DeviceType = 3
	DeviceTypeFengchao    DeviceType = 4
	DeviceTypeRousha      DeviceType = 5
	DeviceTypeXianggelila DeviceType = 8
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeBaiye:       "Baiye",
	DeviceTypeChuizhi:     "Chuizhi",
	DeviceTypeJuanlian:    "Juanlian",
	DeviceTypeFengchao:    "Fengchao",
	DeviceTypeRousha:      "Rousha",
	DeviceTypeXianggelila: "Xianggelila",
}

// deviceTypeFromCode maps a 4-bit model code to a DeviceType.
// Codes outside the known table decode as DeviceTypeUnknown.
func deviceTypeFromCode(code byte) DeviceType {
	t := DeviceType(code)
	if _, ok := deviceTypeNames[t]; ok {
		return t
	}
	return DeviceTypeUnknown
}

// String returns the model name
func (t DeviceType) String() string {
	if name, ok := deviceTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// SeasonInfo is one automatic open/close schedule as reported by the device
type SeasonInfo struct {
	SeasonEnabled       uint8 `yaml:"season_enabled" cbor:"0,keyasint"`
	LightSeasonEnabled  uint8 `yaml:"light_season_enabled" cbor:"1,keyasint"`
	LightLevelThreshold uint8 `yaml:"light_level_threshold" cbor:"2,keyasint"`
	StartHour           uint8 `yaml:"start_hour" cbor:"3,keyasint"`
	StartMinute         uint8 `yaml:"start_minute" cbor:"4,keyasint"`
	EndHour             uint8 `yaml:"end_hour" cbor:"5,keyasint"`
	EndMinute           uint8 `yaml:"end_minute" cbor:"6,keyasint"`
}

// seasonFromRecord decodes a 7-byte season record
func seasonFromRecord(rec []byte) SeasonInfo {
	return SeasonInfo{
		SeasonEnabled:       rec[0],
		LightSeasonEnabled:  rec[1],
		LightLevelThreshold: rec[2],
		StartHour:           rec[3],
		StartMinute:         rec[4],
		EndHour:             rec[5],
		EndMinute:           rec[6],
	}
}

// String formats the season like "On, 1, 40, 7:30, 20:0"
func (s SeasonInfo) String() string {
	state := "Off"
	if s.SeasonEnabled != 0 {
		state = "On"
	}
	return fmt.Sprintf("%s, %d, %d, %d:%02d, %d:%02d",
		state, s.LightSeasonEnabled, s.LightLevelThreshold,
		s.StartHour, s.StartMinute, s.EndHour, s.EndMinute)
}

// State is the host-side model of the device.
// Position is "closedness": 0 is fully open, 100 fully closed.
type State struct {
	Direction      Direction
	OperationMode  OperationMode
	Speed          uint8  // RPM
	Length         uint16 // mm
	Diameter       uint8  // mm
	DeviceType     DeviceType
	TopLimitSet    bool
	BottomLimitSet bool
	HasLightSensor bool

	Position   uint8
	Openness   float64
	LightLevel uint8
	Battery    uint8

	Summer SeasonInfo
	Winter SeasonInfo

	Initialized bool
}

// NewState returns the state assumed before the device has answered anything
func NewState() State {
	s := State{
		Direction:      DirectionForward,
		OperationMode:  OperationModeInching,
		DeviceType:     DeviceTypeUnknown,
		TopLimitSet:    true,
		BottomLimitSet: true,
		HasLightSensor: true,
	}
	s.SetPosition(0)
	return s
}

// SetPosition clamps p to 0-100 and recomputes Openness
func (s *State) SetPosition(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	s.Position = uint8(p)
	s.Openness = float64(100-p) / 100.0
}

// FormatState returns a multi-line dump of every field
func FormatState(s State) string {
	var b strings.Builder
	b.WriteString("============================================\n")
	fmt.Fprintf(&b, "Direction: %s\n", s.Direction)
	fmt.Fprintf(&b, "OperationMode: %s\n", s.OperationMode)
	fmt.Fprintf(&b, "Speed: %d RPM\n", s.Speed)
	fmt.Fprintf(&b, "Length: %d mm\n", s.Length)
	fmt.Fprintf(&b, "Diameter: %d mm\n", s.Diameter)
	if s.DeviceType == DeviceTypeUnknown {
		fmt.Fprintf(&b, "Type: Unknown\n")
	} else {
		fmt.Fprintf(&b, "Type: %s (%d)\n", s.DeviceType, uint8(s.DeviceType))
	}
	fmt.Fprintf(&b, "TopLimit: %s\n", setOrNot(s.TopLimitSet))
	fmt.Fprintf(&b, "BottomLimit: %s\n", setOrNot(s.BottomLimitSet))
	fmt.Fprintf(&b, "HasLightSensor: %s\n", yesNo(s.HasLightSensor))
	fmt.Fprintf(&b, "Position: %d%% (openness %.2f)\n", s.Position, s.Openness)
	fmt.Fprintf(&b, "LightLevel: %d\n", s.LightLevel)
	fmt.Fprintf(&b, "BatteryLevel: %d%%\n", s.Battery)
	fmt.Fprintf(&b, "Summer: %s\n", s.Summer)
	fmt.Fprintf(&b, "Winter: %s\n", s.Winter)
	fmt.Fprintf(&b, "Initialized: %s\n", yesNo(s.Initialized))
	return b.String()
}

func setOrNot(v bool) string {
	if v {
		return "Set"
	}
	return "Not Set"
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
