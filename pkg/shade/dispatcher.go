// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import "github.com/Thermoquad/shadestat/pkg/am43"

// PollEvent is a discovery signal produced by Dispatch
type PollEvent int

const (
	NoPollEvent PollEvent = iota
	SeasonReady
	LightLevelReady
	BatteryLevelReady
)

// String returns the event name
func (e PollEvent) String() string {
	switch e {
	case NoPollEvent:
		return "None"
	case SeasonReady:
		return "SeasonReady"
	case LightLevelReady:
		return "LightLevelReady"
	case BatteryLevelReady:
		return "BatteryLevelReady"
	default:
		return "Unknown"
	}
}

// DispatchResult describes what Dispatch did with a frame
type DispatchResult struct {
	// Updated is true when the state was mutated
	Updated bool
	// Short is true when a known report was ignored because its payload
	// was below the minimum length
	Short bool
	// Signal is the discovery signal carried by the report, if any
	Signal PollEvent
}

// Dispatch applies a checksum-valid frame to the state.
//
// Reports shorter than their minimum length leave the state untouched.
// The light, battery and season reports still carry their discovery signal
// in that case: the device did answer the query.
func Dispatch(s *State, f am43.Frame) DispatchResult {
	var res DispatchResult

	minLen, known := am43.MinPayloadLength(f.Command)
	if !known {
		return res
	}
	short := len(f.Payload) < minLen
	res.Short = short
	data := f.Payload

	switch f.Command {
	case am43.CmdGetSettings:
		if short {
			break
		}
		flags := data[0]
		s.Direction = directionFromBit(flags & am43.SettingsFlagDirection)
		s.OperationMode = operationModeFromBit((flags & am43.SettingsFlagOperationMode) >> 1)
		s.TopLimitSet = flags&am43.SettingsFlagTopLimit != 0
		s.BottomLimitSet = flags&am43.SettingsFlagBottomLimit != 0
		s.HasLightSensor = flags&am43.SettingsFlagLightSensor != 0
		s.Speed = data[1]
		s.SetPosition(int(data[2]))
		s.Length = uint16(data[3])<<8 | uint16(data[4])
		s.Diameter = data[5]
		s.DeviceType = deviceTypeFromCode(data[6] >> 4)
		res.Updated = true

	case am43.CmdGetLightLevel:
		if !short {
			s.LightLevel = data[1]
			res.Updated = true
		}
		res.Signal = LightLevelReady

	case am43.CmdGetPosition:
		if !short {
			s.SetPosition(int(data[1]))
			res.Updated = true
		}

	case am43.CmdGetBatteryLevel:
		if !short {
			s.Battery = data[4]
			res.Updated = true
		}
		res.Signal = BatteryLevelReady

	case am43.CmdGetSpeed:
		if short {
			break
		}
		flags := data[0]
		s.Speed = data[1]
		s.Direction = directionFromBit((flags & am43.SpeedFlagDirection) >> 1)
		s.OperationMode = operationModeFromBit((flags & am43.SpeedFlagOperationMode) >> 2)
		s.HasLightSensor = flags&am43.SpeedFlagLightSensor != 0
		res.Updated = true

	case am43.CmdGetSeason:
		if !short {
			s.Summer = seasonFromRecord(data[1 : 1+am43.SeasonRecordSize])
			s.Winter = seasonFromRecord(data[9 : 9+am43.SeasonRecordSize])
			res.Updated = true
		}
		res.Signal = SeasonReady
	}

	return res
}
