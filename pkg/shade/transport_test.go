// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

// readWriter joins a reader and a writer
type readWriter struct {
	io.Reader
	io.Writer
}

func waitDone(t *testing.T, tr *StreamTransport) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not stop")
	}
}

func TestStreamTransport_ReadAndWrite(t *testing.T) {
	data := []byte{0x9A, 0xAA, 0x02, 0x01, 0x05, 0x34}
	var out bytes.Buffer
	tr := NewStreamTransport(readWriter{bytes.NewReader(data), &out})
	waitDone(t, tr)

	if tr.Available() != len(data) {
		t.Fatalf("Available() = %d, want %d", tr.Available(), len(data))
	}

	buf := make([]byte, 4)
	n, err := tr.ReadInto(buf)
	if err != nil || n != 4 || !bytes.Equal(buf, data[:4]) {
		t.Errorf("first read = %d, %v, % X", n, err, buf[:n])
	}
	n, err = tr.ReadInto(buf)
	if err != nil || n != 2 || !bytes.Equal(buf[:n], data[4:]) {
		t.Errorf("second read = %d, %v, % X", n, err, buf[:n])
	}

	// Drained, the stream error surfaces
	if _, err := tr.ReadInto(buf); !errors.Is(err, io.EOF) {
		t.Errorf("read after drain = %v, want EOF", err)
	}
	if !errors.Is(tr.Err(), io.EOF) {
		t.Errorf("Err() = %v, want EOF", tr.Err())
	}

	if _, err := tr.Write([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{0x01, 0x02}) {
		t.Errorf("written = % X", out.Bytes())
	}
}

func TestStreamTransport_DropsOldestOnOverflow(t *testing.T) {
	data := make([]byte, maxPending+904)
	for i := range data {
		data[i] = byte(i)
	}
	tr := NewStreamTransport(readWriter{bytes.NewReader(data), io.Discard})
	waitDone(t, tr)

	if tr.Available() != maxPending {
		t.Fatalf("Available() = %d, want %d", tr.Available(), maxPending)
	}
	if tr.Dropped() != 904 {
		t.Errorf("Dropped() = %d, want 904", tr.Dropped())
	}

	buf := make([]byte, maxPending)
	n, _ := tr.ReadInto(buf)
	if n != maxPending || !bytes.Equal(buf, data[904:]) {
		t.Errorf("kept bytes are not the newest ones")
	}
}

func TestStreamTransport_FeedsDriver(t *testing.T) {
	stream := append(lightReport(21), batteryReport(80)...)
	tr := NewStreamTransport(readWriter{bytes.NewReader(stream), io.Discard})
	waitDone(t, tr)

	d, err := NewDriver(DefaultConfig(), tr, nil, nil)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	d.SetClock(newFakeClock())

	if err := d.Step(); !errors.Is(err, io.EOF) {
		t.Errorf("Step() = %v, want EOF once drained", err)
	}
	if d.LightLevel() != 21 || d.Battery() != 80 {
		t.Errorf("light=%d battery=%d", d.LightLevel(), d.Battery())
	}
}
