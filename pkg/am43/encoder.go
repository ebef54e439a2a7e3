// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package am43

import (
	"errors"
	"fmt"
)

// ErrFrameTooLarge is returned when a request does not fit the frame limits.
// Nothing must be transmitted when it is returned.
var ErrFrameTooLarge = errors.New("frame too large")

// BuildRequest encodes a complete request frame ready for transmission:
// sync prefix, header prefix, command, length, payload and checksum.
func BuildRequest(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload %d bytes (max %d)", ErrFrameTooLarge, len(payload), MaxPayloadSize)
	}

	size := RequestSize(len(payload))
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, size, MaxFrameSize)
	}

	frame := make([]byte, 0, size)
	frame = append(frame, SyncPrefix...)
	frame = append(frame, HeaderPrefix...)
	frame = append(frame, byte(cmd), byte(len(payload)))
	frame = append(frame, payload...)

	// Sync prefix is excluded from the checksum
	frame = append(frame, Checksum(frame[len(SyncPrefix):]))

	return frame, nil
}

// MustBuildRequest is like BuildRequest but panics on error.
// Only use it with payloads whose size is fixed at compile time.
func MustBuildRequest(cmd Command, payload []byte) []byte {
	frame, err := BuildRequest(cmd, payload)
	if err != nil {
		panic(fmt.Sprintf("am43: encode error: %v", err))
	}
	return frame
}

// RequestSize returns the wire size of a request carrying n payload bytes.
func RequestSize(n int) int {
	return len(SyncPrefix) + len(HeaderPrefix) + frameOverhead + n
}

// NewActionRequest builds a SendAction request.
func NewActionRequest(action Action) []byte {
	return MustBuildRequest(CmdSendAction, []byte{byte(action)})
}

// NewSetPositionRequest builds a SetPosition request. The percentage is
// clamped to 0-100 (0 = fully open, 100 = fully closed).
func NewSetPositionRequest(percent int) []byte {
	return MustBuildRequest(CmdSetPosition, []byte{byte(ClampPercent(percent))})
}

// NewQueryRequest builds one of the Get* requests.
func NewQueryRequest(cmd Command) []byte {
	return MustBuildRequest(cmd, []byte{QueryArgument})
}

// Settings is the writable part of the motor configuration.
type Settings struct {
	Reverse    bool  // direction bit clear means reverse
	Continuous bool  // operation mode bit clear means continuous
	DeviceType uint8 // model code, low nibble only
	Speed      uint8 // RPM
	Length     uint16
	Diameter   uint8
}

// SettingsPayload encodes the 6-byte block sent with CmdSetSettings.
func SettingsPayload(s Settings) []byte {
	var head byte
	if !s.Reverse {
		head |= 1 << 1
	}
	if !s.Continuous {
		head |= 1 << 2
	}
	head |= (s.DeviceType & 0x0F) << 4

	return []byte{
		head,
		s.Speed,
		0,
		byte(s.Length >> 8),
		byte(s.Length),
		s.Diameter,
	}
}

// NewSettingsRequest builds a SetSettings request.
func NewSettingsRequest(s Settings) []byte {
	return MustBuildRequest(CmdSetSettings, SettingsPayload(s))
}

// ClampPercent limits v to 0-100.
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
