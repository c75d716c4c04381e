// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

// Package codes resolves controller status, alarm and roller codes to
// human-readable names.
//
// Tables are loaded once at worker start and are immutable afterwards, so
// lookups need no locking. Lookups never fail: unknown codes resolve to
// placeholders, and a table that could not be loaded behaves as an empty one.
package codes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/tomtom215/agvmonitor/internal/logging"
)

// Tables bundles the lookups used by the decoder.
type Tables struct {
	Status *StatusTable
	Alarm  *AlarmTable
}

// Empty returns tables with no entries; every lookup yields a placeholder.
func Empty() *Tables {
	return &Tables{Status: &StatusTable{}, Alarm: &AlarmTable{}}
}

// Load reads both tables. A missing file is logged and replaced by an empty
// table. A malformed file is an error.
func Load(statusPath, alarmPath string) (*Tables, error) {
	log := logging.WithComponent("codes")
	tables := Empty()

	if statusPath != "" {
		st, err := LoadStatusTable(statusPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn().Str("path", statusPath).Msg("Status table not found, using placeholders")
		case err != nil:
			return nil, err
		default:
			tables.Status = st
		}
	}

	if alarmPath != "" {
		at, err := LoadAlarmTable(alarmPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn().Str("path", alarmPath).Msg("Alarm table not found, using placeholders")
		case err != nil:
			return nil, err
		default:
			tables.Alarm = at
		}
	}

	log.Info().
		Int("status_codes", tables.Status.Len()).
		Int("alarm_codes", tables.Alarm.Len()).
		Msg("Code tables loaded")
	return tables, nil
}

func readTable(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read code table %s: %w", path, err)
	}
	return data, nil
}

// rollerStatusNames maps roller status codes with a known meaning.
var rollerStatusNames = map[int]string{
	40000: "正常",
}

// RollerStatusText returns the roller status name, or the decimal code when
// the code has no name.
func RollerStatusText(code int) string {
	if name, ok := rollerStatusNames[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}
