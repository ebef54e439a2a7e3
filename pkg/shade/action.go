// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/shadestat/pkg/am43"
)

// ParseAction maps a text command to a control action. Matching is case
// insensitive: OPEN/ON/UP, CLOSE/OFF/DOWN and STOP are understood.
func ParseAction(s string) (am43.Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN", "ON", "UP":
		return am43.ActionOpen, nil
	case "CLOSE", "OFF", "DOWN":
		return am43.ActionClose, nil
	case "STOP":
		return am43.ActionStop, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// OpennessToPosition converts UI openness (1.0 open, 0.0 closed) to the
// device's percent-closed position
func OpennessToPosition(openness float64) int {
	if openness < 0 {
		openness = 0
	}
	if openness > 1 {
		openness = 1
	}
	return 100 - int(openness*100+0.5)
}
