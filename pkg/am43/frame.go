// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package am43

// Frame is a validated command/payload pair taken off the wire.
// The payload slice is owned by the frame and never aliases a receive buffer.
type Frame struct {
	Command Command
	Payload []byte
}

// Length returns the payload length
func (f Frame) Length() int {
	return len(f.Payload)
}

// WireSize returns the size of the frame between header prefix and checksum,
// inclusive. The sync prefix is not counted.
func (f Frame) WireSize() int {
	return len(HeaderPrefix) + frameOverhead + len(f.Payload)
}

// Byte returns payload byte i, or false when the payload is too short.
func (f Frame) Byte(i int) (byte, bool) {
	if i < 0 || i >= len(f.Payload) {
		return 0, false
	}
	return f.Payload[i], true
}
