// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package models

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Flag is a controller 0/1 field. 0 encodes as false and 1 as true; any other
// raw value is kept and encoded as the original integer, because controllers
// occasionally report vendor-specific states in these fields.
type Flag int

// MapFlag converts a raw controller value into a Flag.
func MapFlag(raw int) Flag {
	return Flag(raw)
}

// Bool returns the boolean meaning and whether the raw value was 0 or 1.
func (f Flag) Bool() (value, ok bool) {
	switch f {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return false, false
	}
}

// Raw returns the untouched controller value.
func (f Flag) Raw() int {
	return int(f)
}

// String renders the flag the way it is encoded.
func (f Flag) String() string {
	if b, ok := f.Bool(); ok {
		return strconv.FormatBool(b)
	}
	return strconv.Itoa(int(f))
}

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalJSON accepts true, false or an integer.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("true")):
		*f = 1
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*f = 0
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("flag: %w", err)
		}
		*f = Flag(n)
	}
	return nil
}
