// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package shade

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Snapshot is a point-in-time export of the driver state.
// CBOR uses integer keys to keep the encoding small.
type Snapshot struct {
	Time            time.Time  `yaml:"time" cbor:"0,keyasint"`
	Initialized     bool       `yaml:"initialized" cbor:"1,keyasint"`
	Poll            string     `yaml:"poll_state" cbor:"2,keyasint"`
	WatchdogCounter int        `yaml:"watchdog_counter" cbor:"3,keyasint"`
	Position        uint8      `yaml:"position" cbor:"4,keyasint"`
	Openness        float64    `yaml:"openness" cbor:"5,keyasint"`
	LightLevel      uint8      `yaml:"light_level" cbor:"6,keyasint"`
	Battery         uint8      `yaml:"battery" cbor:"7,keyasint"`
	Direction       string     `yaml:"direction" cbor:"8,keyasint"`
	OperationMode   string     `yaml:"operation_mode" cbor:"9,keyasint"`
	Speed           uint8      `yaml:"speed" cbor:"10,keyasint"`
	Length          uint16     `yaml:"length" cbor:"11,keyasint"`
	Diameter        uint8      `yaml:"diameter" cbor:"12,keyasint"`
	DeviceType      string     `yaml:"device_type" cbor:"13,keyasint"`
	TopLimitSet     bool       `yaml:"top_limit_set" cbor:"14,keyasint"`
	BottomLimitSet  bool       `yaml:"bottom_limit_set" cbor:"15,keyasint"`
	HasLightSensor  bool       `yaml:"has_light_sensor" cbor:"16,keyasint"`
	Summer          SeasonInfo `yaml:"summer" cbor:"17,keyasint"`
	Winter          SeasonInfo `yaml:"winter" cbor:"18,keyasint"`
}

// NewSnapshot builds a snapshot from a state copy
func NewSnapshot(s State, poll PollState, watchdog int, now time.Time) Snapshot {
	return Snapshot{
		Time:            now.UTC(),
		Initialized:     s.Initialized,
		Poll:            poll.String(),
		WatchdogCounter: watchdog,
		Position:        s.Position,
		Openness:        s.Openness,
		LightLevel:      s.LightLevel,
		Battery:         s.Battery,
		Direction:       s.Direction.String(),
		OperationMode:   s.OperationMode.String(),
		Speed:           s.Speed,
		Length:          s.Length,
		Diameter:        s.Diameter,
		DeviceType:      s.DeviceType.String(),
		TopLimitSet:     s.TopLimitSet,
		BottomLimitSet:  s.BottomLimitSet,
		HasLightSensor:  s.HasLightSensor,
		Summer:          s.Summer,
		Winter:          s.Winter,
	}
}

// Snapshot captures the current driver state
func (d *Driver) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return NewSnapshot(d.state, d.poller.State(), d.watchdog.Counter(), d.clock.Now())
}

// EncodeCBOR encodes the snapshot as CBOR
func (s Snapshot) EncodeCBOR() ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotCBOR decodes a snapshot produced by EncodeCBOR
func DecodeSnapshotCBOR(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}

// EncodeYAML encodes the snapshot as YAML
func (s Snapshot) EncodeYAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}
