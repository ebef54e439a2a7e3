// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package resetline

import "testing"

func TestLogRecordsPulses(t *testing.T) {
	l := NewLog(nil)
	if l.Low() {
		t.Fatal("line should start released")
	}

	for i := 1; i <= 3; i++ {
		if err := l.SetOutputLow(); err != nil {
			t.Fatalf("SetOutputLow: %v", err)
		}
		if !l.Low() {
			t.Errorf("pulse %d: line not low", i)
		}
		if err := l.SetInputFloating(); err != nil {
			t.Fatalf("SetInputFloating: %v", err)
		}
		if l.Low() {
			t.Errorf("pulse %d: line not released", i)
		}
	}

	if got := l.Pulses(); got != 3 {
		t.Errorf("Pulses() = %d, want 3", got)
	}
}

func TestOpenGPIORejectsInvalidPin(t *testing.T) {
	for _, pin := range []int{0, -1} {
		if _, err := OpenGPIO(pin, nil); err == nil {
			t.Errorf("OpenGPIO(%d) should fail", pin)
		}
	}
}
