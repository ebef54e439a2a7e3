// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import "time"

// Clock abstracts time so the driver can be stepped in tests
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the wall clock. time.Time carries a monotonic reading,
// so elapsed-time comparisons are not affected by clock steps.
func SystemClock() Clock {
	return systemClock{}
}
