// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"io"
	"sync"
)

// Transport is a non-blocking byte link to the device.
// Writes are fire-and-forget; nothing correlates a request with its answer.
type Transport interface {
	// Available returns the number of bytes that can be read without blocking
	Available() int
	// ReadInto copies up to len(p) buffered bytes into p without blocking
	ReadInto(p []byte) (int, error)
	// Write transmits p
	Write(p []byte) (int, error)
}

// maxPending caps the bytes StreamTransport buffers between drains
const maxPending = 4096

// StreamTransport adapts a blocking io.ReadWriter (a serial port or a
// WebSocket connection) to Transport. A background goroutine reads the
// stream into a pending buffer that the driver drains on every loop.
type StreamTransport struct {
	rw io.ReadWriter

	mu      sync.Mutex
	pending []byte
	dropped uint64
	err     error
	done    chan struct{}
}

// NewStreamTransport starts reading from rw in the background
func NewStreamTransport(rw io.ReadWriter) *StreamTransport {
	t := &StreamTransport{
		rw:      rw,
		pending: make([]byte, 0, 512),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *StreamTransport) readLoop() {
	defer close(t.done)
	buf := make([]byte, 256)
	for {
		n, err := t.rw.Read(buf)
		if n > 0 {
			t.mu.Lock()
			t.pending = append(t.pending, buf[:n]...)
			if over := len(t.pending) - maxPending; over > 0 {
				// Oldest bytes go first, the driver is not keeping up
				t.pending = append(t.pending[:0], t.pending[over:]...)
				t.dropped += uint64(over)
			}
			t.mu.Unlock()
		}
		if err != nil {
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			return
		}
	}
}

// Available implements Transport
func (t *StreamTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// ReadInto implements Transport. Once the underlying stream has failed and
// every buffered byte was handed out, the read error is returned.
func (t *StreamTransport) ReadInto(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return 0, t.err
	}
	n := copy(p, t.pending)
	t.pending = append(t.pending[:0], t.pending[n:]...)
	return n, nil
}

// Write implements Transport
func (t *StreamTransport) Write(p []byte) (int, error) {
	return t.rw.Write(p)
}

// Dropped returns the number of bytes lost to pending buffer overflow
func (t *StreamTransport) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Done is closed when the background reader stops
func (t *StreamTransport) Done() <-chan struct{} {
	return t.done
}

// Err returns the error that stopped the background reader, if any
func (t *StreamTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
