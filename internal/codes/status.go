// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package codes

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// robotStatusType is the entry type used for robot status codes; the table
// also carries codes for other equipment which are ignored.
const robotStatusType = "1"

// StatusEntry is one resolved robot status.
type StatusEntry struct {
	Name     string
	Abnormal bool
}

// StatusTable maps robot status codes to names.
type StatusTable struct {
	entries map[string]StatusEntry
}

type statusFile struct {
	Data []struct {
		Code     string    `json:"code"`
		Type     string    `json:"type"`
		Name     string    `json:"name"`
		Abnormal looseUint `json:"abnormal"`
	} `json:"data"`
}

// LoadStatusTable reads a status table file.
func LoadStatusTable(path string) (*StatusTable, error) {
	data, err := readTable(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseStatusTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseStatusTable decodes a status table document of the form
// {"data":[{"code":"1","type":"1","name":"...","abnormal":"0"}]}.
// When a code appears twice the first entry wins.
func ParseStatusTable(data []byte) (*StatusTable, error) {
	var f statusFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse status table: %w", err)
	}

	t := &StatusTable{entries: make(map[string]StatusEntry, len(f.Data))}
	for _, e := range f.Data {
		if e.Type != robotStatusType {
			continue
		}
		if _, dup := t.entries[e.Code]; dup {
			continue
		}
		t.entries[e.Code] = StatusEntry{Name: e.Name, Abnormal: e.Abnormal != 0}
	}
	return t, nil
}

// Resolve returns the status name and abnormal marker for code. Unknown codes
// yield "未知状态(<code>)" and are never abnormal.
func (t *StatusTable) Resolve(code int) (name string, abnormal bool) {
	if t != nil {
		if e, ok := t.entries[strconv.Itoa(code)]; ok {
			return e.Name, e.Abnormal
		}
	}
	return fmt.Sprintf("未知状态(%d)", code), false
}

// Len returns the number of robot status codes in the table.
func (t *StatusTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// looseUint accepts a JSON number or a quoted number.
type looseUint uint64

func (u *looseUint) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = 0
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("abnormal flag %q: %w", data, err)
	}
	*u = looseUint(n)
	return nil
}
