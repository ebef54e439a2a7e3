// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestErrorDetector_SkipsNoiseUntilSynchronized(t *testing.T) {
	bad := buildResponse(0xAA, []byte{0x01, 0x10})
	bad[len(bad)-1] ^= 0xFF
	good := buildResponse(0xAA, []byte{0x01, 0x10})

	var out bytes.Buffer
	det := newErrorDetector(&out)
	det.process(bytes.Join([][]byte{{0x11, 0x22}, bad, good}, nil))

	if !det.synchronized {
		t.Fatal("detector did not synchronize on a valid frame")
	}
	if det.stats.ChecksumErrors != 0 {
		t.Errorf("ChecksumErrors = %d, want 0 before sync", det.stats.ChecksumErrors)
	}
	if det.stats.ValidFrames != 1 {
		t.Errorf("ValidFrames = %d, want 1", det.stats.ValidFrames)
	}
	if !strings.Contains(out.String(), "skipping 8 invalid bytes") {
		t.Errorf("missing sync line:\n%s", out.String())
	}
}

func TestErrorDetector_ReportsErrorsAfterSync(t *testing.T) {
	good := buildResponse(0xAA, []byte{0x01, 0x10})
	bad := buildResponse(0xA2, []byte{0, 0, 0, 0, 50})
	bad[len(bad)-1] ^= 0x01
	anomalous := buildResponse(0xA2, []byte{0, 0, 0, 0, 150})
	short := buildResponse(0xA7, []byte{0x01, 0x02})
	unknown := buildResponse(0x55, nil)

	var out bytes.Buffer
	det := newErrorDetector(&out)

	// One byte at a time, as a slow link would deliver it
	for _, b := range bytes.Join([][]byte{good, bad, anomalous, short, unknown}, nil) {
		det.process([]byte{b})
	}

	s := det.stats
	if s.ChecksumErrors != 1 {
		t.Errorf("ChecksumErrors = %d, want 1", s.ChecksumErrors)
	}
	if s.InvalidValues != 1 {
		t.Errorf("InvalidValues = %d, want 1", s.InvalidValues)
	}
	if s.ShortPayloads != 1 {
		t.Errorf("ShortPayloads = %d, want 1", s.ShortPayloads)
	}
	if s.UnknownCommands != 1 {
		t.Errorf("UnknownCommands = %d, want 1", s.UnknownCommands)
	}
	if len(det.rx) != 0 {
		t.Errorf("%d bytes left buffered, want 0", len(det.rx))
	}

	text := out.String()
	for _, want := range []string{"CHECKSUM ERROR", "received 0x", "Invalid battery=150", "payload too short", "Unknown command 0x55", "FRAME REJECTED"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestErrorDetector_BoundsBuffer(t *testing.T) {
	var out bytes.Buffer
	det := newErrorDetector(&out)

	// A header claiming 255 payload bytes followed by header bytes only
	data := append([]byte{0x9A, 0xAA, 0xFF}, bytes.Repeat([]byte{0x9A}, rawLogBuffer)...)
	det.process(data)

	if len(det.rx) >= rawLogBuffer {
		t.Errorf("buffer holds %d bytes, want fewer than %d", len(det.rx), rawLogBuffer)
	}
}

func TestDetectErrors_EndsOnEOF(t *testing.T) {
	var out bytes.Buffer
	stream := bytes.NewReader(buildResponse(0xA2, []byte{0, 0, 0, 0, 200}))

	err := detectErrors(context.Background(), stream, &out, time.Hour, nopLogger())
	if err != nil {
		t.Fatalf("detectErrors() = %v, want nil at EOF", err)
	}
	if !strings.Contains(out.String(), "Invalid battery=200") {
		t.Errorf("anomaly not reported:\n%s", out.String())
	}
}
