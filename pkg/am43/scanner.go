// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package am43

// ScanStatus describes the outcome of a single Scan call
type ScanStatus int

const (
	// ScanNoHeader means no header prefix was found in the buffer.
	ScanNoHeader ScanStatus = iota
	// ScanIncomplete means a header was found but the frame is not fully
	// buffered yet. Wait for more bytes.
	ScanIncomplete
	// ScanChecksumMismatch means a complete candidate failed validation and
	// was discarded.
	ScanChecksumMismatch
	// ScanOK means a valid frame was found.
	ScanOK
)

// String returns the status name
func (s ScanStatus) String() string {
	switch s {
	case ScanNoHeader:
		return "NO_HEADER"
	case ScanIncomplete:
		return "INCOMPLETE"
	case ScanChecksumMismatch:
		return "CHECKSUM_MISMATCH"
	case ScanOK:
		return "OK"
	default:
		return "UNKNOWN"
	}
}

// ScanResult is returned by Scan.
//
// Consumed is the number of leading buffer bytes the caller may drop. It is
// zero for ScanNoHeader and ScanIncomplete, and covers everything up to the
// end of the candidate frame otherwise. Frame is only set for ScanOK.
//
// Skippable is the number of leading bytes that can never be part of a frame
// (everything before the first header candidate). Callers may drop them
// when Consumed is zero to keep their receive buffer from filling with noise.
type ScanResult struct {
	Status    ScanStatus
	Consumed  int
	Skippable int
	Frame     *Frame
	Checksum  byte // received checksum, set for OK and mismatch results
	Computed  byte // calculated checksum, set for OK and mismatch results
}

// Scanner finds frames in a byte buffer.
// The zero value is not usable; use NewScanner or the package level Scan.
type Scanner struct {
	prefix []byte
}

// NewScanner creates a scanner matching the given header prefix.
// An empty prefix falls back to HeaderPrefix.
func NewScanner(prefix []byte) *Scanner {
	if len(prefix) == 0 {
		prefix = HeaderPrefix
	}
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &Scanner{prefix: p}
}

var defaultScanner = NewScanner(HeaderPrefix)

// Scan finds and validates the first frame in buf using HeaderPrefix.
func Scan(buf []byte) ScanResult {
	return defaultScanner.Scan(buf)
}

// Scan finds and validates the first frame in buf.
// It never reads outside buf regardless of what the length byte claims.
func (s *Scanner) Scan(buf []byte) ScanResult {
	begin := s.findPrefix(buf)
	if begin < 0 {
		// A partial prefix may sit at the tail, keep it
		skip := len(buf) - (len(s.prefix) - 1)
		if skip < 0 {
			skip = 0
		}
		return ScanResult{Status: ScanNoHeader, Skippable: skip}
	}

	// Command and length bytes
	offset := begin + len(s.prefix)
	if offset+2 > len(buf) {
		return ScanResult{Status: ScanIncomplete, Skippable: begin}
	}
	cmd := buf[offset]
	length := int(buf[offset+1])

	// Payload and checksum
	payloadStart := offset + 2
	end := payloadStart + length + 1
	if end > len(buf) {
		return ScanResult{Status: ScanIncomplete, Skippable: begin}
	}

	received := buf[end-1]
	computed := Checksum(buf[begin : end-1])
	if received != computed {
		return ScanResult{
			Status:    ScanChecksumMismatch,
			Consumed:  end,
			Skippable: begin,
			Checksum:  received,
			Computed:  computed,
		}
	}

	payload := make([]byte, length)
	copy(payload, buf[payloadStart:end-1])

	return ScanResult{
		Status:    ScanOK,
		Consumed:  end,
		Skippable: begin,
		Frame:     &Frame{Command: Command(cmd), Payload: payload},
		Checksum:  received,
		Computed:  computed,
	}
}

// findPrefix returns the index where the header prefix starts, or -1.
func (s *Scanner) findPrefix(buf []byte) int {
	matched := 0
	for i, b := range buf {
		if b != s.prefix[matched] {
			// Restart the run, the current byte may open a new one
			matched = 0
			if b != s.prefix[0] {
				continue
			}
		}
		matched++
		if matched == len(s.prefix) {
			return i - len(s.prefix) + 1
		}
	}
	return -1
}

// ScanAll repeatedly scans buf and returns every valid frame plus the number
// of bytes consumed. Bytes after the last consumed frame are left for the
// caller to retain.
func ScanAll(buf []byte) (frames []Frame, consumed int) {
	for consumed < len(buf) {
		res := Scan(buf[consumed:])
		if res.Consumed == 0 {
			break
		}
		consumed += res.Consumed
		if res.Frame != nil {
			frames = append(frames, *res.Frame)
		}
	}
	return frames, consumed
}
