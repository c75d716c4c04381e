// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package codes

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/agvmonitor/internal/models"
)

type alarmDetail struct {
	name     string
	subName  string
	solution string
}

// AlarmTable maps "main-sub" alarm code pairs to names and remediation text.
type AlarmTable struct {
	mains map[string]string
	pairs map[string]alarmDetail
}

type alarmFile []struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Subs []struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		Solution string `json:"solution"`
	} `json:"alarmTpeVO"`
}

// LoadAlarmTable reads an alarm table file.
func LoadAlarmTable(path string) (*AlarmTable, error) {
	data, err := readTable(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseAlarmTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseAlarmTable decodes an alarm table document of the form
// [{"code":"1","name":"...","alarmTpeVO":[{"code":"1","name":"...","solution":"..."}]}].
func ParseAlarmTable(data []byte) (*AlarmTable, error) {
	var f alarmFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse alarm table: %w", err)
	}

	t := &AlarmTable{
		mains: make(map[string]string, len(f)),
		pairs: make(map[string]alarmDetail),
	}
	for _, m := range f {
		if _, dup := t.mains[m.Code]; !dup {
			t.mains[m.Code] = m.Name
		}
		for _, s := range m.Subs {
			key := pairKey(m.Code, s.Code)
			if _, dup := t.pairs[key]; dup {
				continue
			}
			t.pairs[key] = alarmDetail{name: m.Name, subName: s.Name, solution: s.Solution}
		}
	}
	return t, nil
}

// Resolve looks up an alarm pair. An empty sub code resolves the main name
// only. A pair that is not in the table keeps its codes and has every name
// empty, including the main name when only the main code is known.
func (t *AlarmTable) Resolve(main, sub string) models.Alarm {
	alarm := models.Alarm{MainCode: main, SubCode: sub}
	if t == nil {
		return alarm
	}

	if sub == "" {
		alarm.MainName = t.mains[main]
		return alarm
	}

	if d, ok := t.pairs[pairKey(main, sub)]; ok {
		alarm.MainName = d.name
		alarm.SubName = d.subName
		alarm.Solution = d.solution
	}
	return alarm
}

// Len returns the number of main-sub pairs in the table.
func (t *AlarmTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.pairs)
}

func pairKey(main, sub string) string {
	return main + "-" + sub
}
