// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package am43

// Checksum computes the XOR checksum over data.
// Callers pass the bytes from the header prefix through the last payload byte.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}
