// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Shadestat - AM43 Blind Motor Driver
//
// A CLI tool for driving, monitoring and decoding the UART protocol of
// AM43 blind and shade motors.

package main

import (
	"os"

	"github.com/Thermoquad/shadestat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
