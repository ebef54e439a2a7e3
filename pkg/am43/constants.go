// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package am43 implements the UART framing protocol spoken by AM43-class
// blind and shade motors.
//
// A frame on the wire looks like this:
//
//	00 FF 00 00   sync prefix (requests only, never checksummed)
//	9A            header prefix
//	CC            command code
//	NN            payload length
//	...           NN payload bytes
//	XX            XOR of header prefix through payload
//
// This package provides request encoding, stream scanning with checksum
// validation, payload validation and formatting. It keeps no device state;
// see package shade for the driver built on top of it.
package am43

// SyncPrefix is written in front of every request.
var SyncPrefix = []byte{0x00, 0xFF, 0x00, 0x00}

// HeaderPrefix marks the start of the checksummed part of a frame.
var HeaderPrefix = []byte{0x9A}

// Frame size limits
const (
	// MaxFrameSize is the capacity of the transmit buffer on the device side.
	MaxFrameSize = 128
	// MaxPayloadSize is the largest value the length byte can carry.
	MaxPayloadSize = 255
	// frameOverhead counts command, length and checksum bytes.
	frameOverhead = 3
)

// Command is a one-byte command code.
type Command uint8

// Request commands (host → device)
const (
	CmdSendAction      Command = 0x0A // 1 byte Action
	CmdSetPosition     Command = 0x0D // 1 byte percent closed
	CmdSetSettings     Command = 0x35 // 6 byte settings block (name slot reuse)
	CmdGetSettings     Command = 0xA7 // 1 byte, always 0x01
	CmdGetLightLevel   Command = 0xAA // 1 byte, always 0x01
	CmdGetBatteryLevel Command = 0xA2 // 1 byte, always 0x01
)

// Response-only commands (device → host)
const (
	CmdVerification Command = 0x00
	CmdGetPosition  Command = 0xA1
	CmdGetSpeed     Command = 0xA3
	CmdGetTiming    Command = 0xA8
	CmdGetSeason    Command = 0xA9
)

// QueryArgument is the single payload byte sent with every Get* request.
const QueryArgument = 0x01

// Action is the payload of a SendAction request.
type Action uint8

// Control actions
const (
	ActionClose Action = 0xEE
	ActionOpen  Action = 0xDD
	ActionStop  Action = 0xCC
)

// Minimum payload lengths for reports the host understands.
const (
	MinSettingsPayload = 7
	MinLightPayload    = 2
	MinPositionPayload = 2
	MinBatteryPayload  = 5
	MinSpeedPayload    = 2
	SeasonRecordSize   = 7
	MinSeasonPayload   = 2*SeasonRecordSize + 2
)

// Settings flag bits in byte 0 of a settings report
const (
	SettingsFlagDirection     = 1 << 0
	SettingsFlagOperationMode = 1 << 1
	SettingsFlagTopLimit      = 1 << 2
	SettingsFlagBottomLimit   = 1 << 3
	SettingsFlagLightSensor   = 1 << 4
)

// Speed report flag bits in byte 0 of a speed report
const (
	SpeedFlagDirection     = 1 << 1
	SpeedFlagOperationMode = 1 << 2
	SpeedFlagLightSensor   = 1 << 3
)

// SettingsPayloadSize is the length of the block sent with CmdSetSettings.
const SettingsPayloadSize = 6
