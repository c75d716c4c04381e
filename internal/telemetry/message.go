// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package telemetry

import (
	"fmt"

	"github.com/clbanning/mxj/v2"

	"github.com/tomtom215/agvmonitor/internal/models"
)

// UnknownRobotID is the hash field used when a message carries no robot id.
const UnknownRobotID = "-1"

//nolint:gochecknoinits // attribute keys use the "@" prefix the dashboard reads
func init() {
	mxj.SetAttrPrefix("@")
}

// Message is a decoded frame: either *StatusMessage or *PassthroughMessage.
type Message interface {
	// MessageType returns the controller message type.
	MessageType() string
	// Key returns the hash field (robot id) the message is stored under.
	Key() string
	// Value returns the JSON stored for the message.
	Value() ([]byte, error)
}

// StatusMessage is a fully typed ROBOT_STATUS record.
type StatusMessage struct {
	Record *models.RobotStatus
}

func (m *StatusMessage) MessageType() string { return models.TypeRobotStatus }

func (m *StatusMessage) Key() string { return m.Record.RobotID }

func (m *StatusMessage) Value() ([]byte, error) { return m.Record.Marshal() }

// PassthroughMessage is any other message type, kept as the JSON form of the
// <Message> element. Attributes appear under "@name" keys and all leaf
// values are strings.
type PassthroughMessage struct {
	Type    string
	RobotID string
	Body    []byte
}

func (m *PassthroughMessage) MessageType() string { return m.Type }

func (m *PassthroughMessage) Key() string { return m.RobotID }

func (m *PassthroughMessage) Value() ([]byte, error) { return m.Body, nil }

func decodePassthrough(msgType string, payload []byte) (*PassthroughMessage, error) {
	doc, err := mxj.NewMapXml(payload)
	if err != nil {
		return nil, &DecodeError{Type: msgType, Err: fmt.Errorf("%w: %v", ErrMalformedXML, err)}
	}

	inner, err := doc.ValueForPath("Message")
	if err != nil {
		return nil, &DecodeError{Type: msgType, Err: fmt.Errorf("%w: %v", ErrMalformedXML, err)}
	}

	var body []byte
	if m, ok := inner.(map[string]interface{}); ok {
		body, err = mxj.Map(m).Json()
	} else {
		body, err = mxj.Map{"#text": inner}.Json()
	}
	if err != nil {
		return nil, &DecodeError{Type: msgType, Err: fmt.Errorf("encode passthrough: %w", err)}
	}

	return &PassthroughMessage{
		Type:    msgType,
		RobotID: passthroughRobotID(doc),
		Body:    body,
	}, nil
}

// passthroughRobotID looks for a robot id in the places controllers put it.
func passthroughRobotID(doc mxj.Map) string {
	for _, path := range []string{"Message.RobotId", "Message.Robot.Id", "Message.@RobotId", "Message.Robot.@Id"} {
		if v, err := doc.ValueForPathString(path); err == nil {
			if id := firstNonEmpty(v); id != "" {
				return id
			}
		}
	}
	return UnknownRobotID
}
