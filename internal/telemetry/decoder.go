// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package telemetry

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/agvmonitor/internal/codes"
	"github.com/tomtom215/agvmonitor/internal/models"
)

// Decoder turns raw broadcast frames into messages. It is safe for
// concurrent use once constructed.
type Decoder struct {
	tables *codes.Tables
	now    func() time.Time
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock sets the clock used to stamp ingest time.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

// NewDecoder creates a decoder that resolves codes with tables. A nil tables
// value resolves every code to its placeholder.
func NewDecoder(tables *codes.Tables, opts ...Option) *Decoder {
	if tables == nil {
		tables = codes.Empty()
	}
	d := &Decoder{tables: tables, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode strips the frame and decodes its payload. Every failure is a
// *DecodeError; Decode never panics on malformed input.
func (d *Decoder) Decode(frame []byte) (Message, error) {
	payload, err := StripFrame(frame)
	if err != nil {
		return nil, err
	}
	return d.DecodePayload(payload)
}

// DecodePayload decodes an XML payload without framing.
func (d *Decoder) DecodePayload(payload []byte) (Message, error) {
	var env xmlMessage
	if err := xml.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedXML, err)}
	}
	if env.XMLName.Local != "Message" {
		return nil, &DecodeError{Err: fmt.Errorf("%w: root element <%s>", ErrMalformedXML, env.XMLName.Local)}
	}

	msgType := firstNonEmpty(env.TypeAttr, env.TypeElem)
	if msgType == "" {
		return nil, &DecodeError{Err: ErrMissingType}
	}

	if msgType != models.TypeRobotStatus {
		return decodePassthrough(msgType, payload)
	}

	rs, err := d.robotStatus(msgType, &env)
	if err != nil {
		return nil, &DecodeError{Type: msgType, Err: err}
	}
	return &StatusMessage{Record: rs}, nil
}

func (d *Decoder) robotStatus(msgType string, env *xmlMessage) (*models.RobotStatus, error) {
	robot := env.Robot
	if robot == nil {
		robot = &xmlRobot{}
	}
	pod := env.Pod
	if pod == nil {
		pod = &xmlPod{}
	}

	p := fieldParser{}
	statusCode := p.parseInt("Status", robot.Status, -1)
	rollerCode := p.parseInt("RollerStatus", robot.RollerStatus, 0)
	rec := models.RobotStatus{
		Type:        msgType,
		MapCode:     firstNonEmpty(env.MapCodeElem, env.MapCodeAttr),
		RobotID:     strings.TrimSpace(robot.ID),
		IP:          strings.TrimSpace(robot.IP),
		LoadStatus:  p.parseInt("LoadStatus", robot.LoadStatus, 0),
		Direction:   p.parseInt("Direction", robot.Direction, 0),
		Battery:     p.parseInt("Battery", robot.Battery, 0),
		Speed:       p.parseInt("Speed", robot.Speed, 0),
		StatusCode:  statusCode,
		Stop:        models.MapFlag(p.parseInt("Stop", robot.Stop, 0)),
		Stay:        models.MapFlag(p.parseInt("Stay", robot.Stay, 0)),
		TgtDistance: p.parseInt("TgtDistance", robot.TgtDistance, 0),
		Remove:      models.MapFlag(p.parseInt("Remove", robot.Remove, 0)),
		Change:      models.MapFlag(p.parseInt("Change", robot.Change, 0)),
		Version:     strings.TrimSpace(robot.Version),

		RollerStatusCode: rollerCode,
		RollerStatus:     codes.RollerStatusText(rollerCode),
		Pod: models.Pod{
			ID:   strings.TrimSpace(pod.ID),
			Bind: p.parseInt("Pod.Bind", pod.Bind, 0),
		},
		IngestTime: models.Unix(d.now()),
	}

	if pos := robot.Pos; pos != nil {
		rec.Position = models.Position{
			X: p.parseFloat("Pos.x", firstNonEmpty(pos.X, pos.XAttr)),
			Y: p.parseFloat("Pos.y", firstNonEmpty(pos.Y, pos.YAttr)),
			H: p.parseFloat("Pos.h", firstNonEmpty(pos.H, pos.HAttr)),
		}
	}
	if fl := robot.Forklift; fl != nil {
		rec.Forklift = models.Forklift{
			ForkHeight: p.parseInt("Forklift.ForkHeight", fl.ForkHeight, 0),
			LoadStatus: p.parseInt("Forklift.LoadStatus", fl.LoadStatus, 0),
		}
	}

	if p.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, p.err)
	}

	rec.Status, rec.Abnormal = d.tables.Status.Resolve(statusCode)
	rec.Alarm = d.tables.Alarm.Resolve(
		firstNonEmpty(strings.TrimSpace(robot.AlarmMain), "0"),
		firstNonEmpty(strings.TrimSpace(robot.AlarmSub), "0"),
	)

	rs, err := models.NewRobotStatus(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return rs, nil
}

// fieldParser parses numeric XML text and keeps the first failure.
type fieldParser struct {
	err error
}

func (p *fieldParser) parseInt(name, raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("field %s: %w", name, err)
		}
		return def
	}
	return n
}

func (p *fieldParser) parseFloat(name, raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("field %s: %w", name, err)
		}
		return 0
	}
	return f
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type xmlMessage struct {
	XMLName     xml.Name
	TypeAttr    string    `xml:"Type,attr"`
	TypeElem    string    `xml:"Type"`
	MapCodeAttr string    `xml:"MapCode,attr"`
	MapCodeElem string    `xml:"MapCode"`
	Robot       *xmlRobot `xml:"Robot"`
	Pod         *xmlPod   `xml:"Pod"`
}

type xmlRobot struct {
	ID           string       `xml:"Id"`
	IP           string       `xml:"IP"`
	Pos          *xmlPos      `xml:"Pos"`
	LoadStatus   string       `xml:"LoadStatus"`
	Forklift     *xmlForklift `xml:"Forklift"`
	Direction    string       `xml:"Direction"`
	Battery      string       `xml:"Battery"`
	Speed        string       `xml:"Speed"`
	Status       string       `xml:"Status"`
	AlarmMain    string       `xml:"AlarmMain"`
	AlarmSub     string       `xml:"AlarmSub"`
	Stop         string       `xml:"Stop"`
	Stay         string       `xml:"Stay"`
	TgtDistance  string       `xml:"TgtDistance"`
	Remove       string       `xml:"Remove"`
	Change       string       `xml:"Change"`
	Version      string       `xml:"Version"`
	RollerStatus string       `xml:"RollerStatus"`
}

// xmlPos accepts coordinates as child elements or as attributes.
type xmlPos struct {
	X     string `xml:"x"`
	Y     string `xml:"y"`
	H     string `xml:"h"`
	XAttr string `xml:"x,attr"`
	YAttr string `xml:"y,attr"`
	HAttr string `xml:"h,attr"`
}

type xmlForklift struct {
	ForkHeight string `xml:"ForkHeight"`
	LoadStatus string `xml:"LoadStatus"`
}

type xmlPod struct {
	ID   string `xml:"Id"`
	Bind string `xml:"Bind"`
}
