// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package models

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/agvmonitor/internal/validation"
)

// Message types broadcast by the fleet controller.
const (
	TypeRobotStatus   = "ROBOT_STATUS"
	TypeRobotPath     = "ROBOT_PATH"
	TypeTRPBlockCell  = "TRP_BLOCK_CELL"
	TypeTaskInfoReq   = "TASK_INFO_REQ"
	TypeChargeInfo    = "CHARGE_INFO"
	TypeBlockCell     = "BLOCK_CELL"
	TypeValidRobotNum = "VALID_ROBOT_NUM"
)

// KnownTypes lists every message type the worker tallies, in display order.
var KnownTypes = []string{
	TypeRobotStatus,
	TypeRobotPath,
	TypeTRPBlockCell,
	TypeTaskInfoReq,
	TypeChargeInfo,
	TypeBlockCell,
	TypeValidRobotNum,
}

// IsKnownType reports whether t is one of KnownTypes.
func IsKnownType(t string) bool {
	for _, k := range KnownTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Position is the robot pose on the map. H is the heading.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	H float64 `json:"h"`
}

// Forklift holds fork state for lifting robots.
type Forklift struct {
	ForkHeight int `json:"fork_height"`
	LoadStatus int `json:"load_status"`
}

// Pod is the shelf or rack bound to the robot, if any.
type Pod struct {
	ID   string `json:"id"`
	Bind int    `json:"bind"`
}

// Alarm is a resolved two-part alarm code. Unresolved names are empty.
type Alarm struct {
	MainCode string `json:"main_code"`
	MainName string `json:"main_name"`
	SubCode  string `json:"sub_code"`
	SubName  string `json:"sub_name"`
	Solution string `json:"solution"`
}

// Active reports whether the alarm carries a non-zero main code.
func (a Alarm) Active() bool {
	return a.MainCode != "" && a.MainCode != "0"
}

// RobotStatus is the latest decoded state of one robot.
type RobotStatus struct {
	Type             string   `json:"type"`
	MapCode          string   `json:"map_code"`
	RobotID          string   `json:"RobotId" validate:"robotid"`
	IP               string   `json:"ip"`
	Position         Position `json:"position"`
	LoadStatus       int      `json:"load_status"`
	Forklift         Forklift `json:"forklift"`
	Direction        int      `json:"direction"`
	Battery          int      `json:"battery" validate:"gte=0,lte=100"`
	Speed            int      `json:"speed"`
	Status           string   `json:"status"`
	StatusCode       int      `json:"status_code"`
	Abnormal         bool     `json:"abnormal"`
	Alarm            Alarm    `json:"alarm"`
	Stop             Flag     `json:"stop"`
	Stay             Flag     `json:"stay"`
	TgtDistance      int      `json:"tgt_distance"`
	Remove           Flag     `json:"remove"`
	Change           Flag     `json:"change"`
	Version          string   `json:"version"`
	RollerStatus     string   `json:"roller_status"`
	RollerStatusCode int      `json:"roller_status_code"`
	Pod              Pod      `json:"pod"`
	IngestTime       UnixTime `json:"time"`
}

// NewRobotStatus validates rs and returns it. It is the only way the decoder
// produces a status record, so every stored record has passed validation.
func NewRobotStatus(rs RobotStatus) (*RobotStatus, error) {
	if err := validation.ValidateStruct(&rs); err != nil {
		return nil, fmt.Errorf("invalid robot status: %w", err)
	}
	return &rs, nil
}

// Marshal encodes the record for the store.
func (rs *RobotStatus) Marshal() ([]byte, error) {
	return json.Marshal(rs)
}

// UnixTime is a wall-clock instant encoded as fractional unix seconds.
type UnixTime struct {
	time.Time
}

// Unix returns t wrapped as a UnixTime.
func Unix(t time.Time) UnixTime {
	return UnixTime{Time: t}
}

// Seconds returns the instant as fractional unix seconds.
func (u UnixTime) Seconds() float64 {
	return float64(u.UnixNano()) / float64(time.Second)
}

// MarshalJSON implements json.Marshaler.
func (u UnixTime) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("0"), nil
	}
	return strconv.AppendFloat(nil, u.Seconds(), 'f', 6, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UnixTime) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("unix time: %w", err)
	}
	if secs == 0 {
		u.Time = time.Time{}
		return nil
	}
	whole, frac := math.Modf(secs)
	u.Time = time.Unix(int64(whole), int64(frac*float64(time.Second)))
	return nil
}
