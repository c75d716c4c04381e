// AGV Monitor - Fleet Telemetry Ingestion and Live Dashboard Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agvmonitor

package telemetry

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Frame layout: [HeaderLen bytes][UTF-8 XML payload][TrailerLen bytes].
const (
	HeaderLen  = 72
	TrailerLen = 3
)

// Sentinel errors returned (wrapped in *DecodeError) by the decoder.
var (
	ErrFrameTooShort = errors.New("frame shorter than header and trailer")
	ErrInvalidUTF8   = errors.New("payload is not valid UTF-8")
	ErrMalformedXML  = errors.New("malformed XML payload")
	ErrMissingType   = errors.New("message type missing")
	ErrInvalidRecord = errors.New("invalid status record")
)

// DecodeError reports why a frame was dropped. Type is set when the failure
// happened after the message type was known.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return "decode frame: " + e.Err.Error()
	}
	return fmt.Sprintf("decode %s frame: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Reason returns a short label for metrics.
func (e *DecodeError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrFrameTooShort):
		return "short_frame"
	case errors.Is(e.Err, ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(e.Err, ErrMalformedXML):
		return "malformed_xml"
	case errors.Is(e.Err, ErrMissingType):
		return "missing_type"
	case errors.Is(e.Err, ErrInvalidRecord):
		return "invalid_record"
	default:
		return "other"
	}
}

// StripFrame removes the fixed header and trailer and returns the payload.
// The returned slice aliases frame.
func StripFrame(frame []byte) ([]byte, error) {
	if len(frame) < HeaderLen+TrailerLen {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(frame))}
	}
	payload := frame[HeaderLen : len(frame)-TrailerLen]
	if !utf8.Valid(payload) {
		return nil, &DecodeError{Err: ErrInvalidUTF8}
	}
	return payload, nil
}

// Encode wraps payload in a zeroed header and trailer. It produces frames in
// the upstream layout for tests and replay tooling.
func Encode(payload []byte) []byte {
	frame := make([]byte, HeaderLen+len(payload)+TrailerLen)
	copy(frame[HeaderLen:], payload)
	return frame
}
