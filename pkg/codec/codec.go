// Package codec serializes job payloads and handler results as a
// self-describing, language-neutral value and decodes them back into typed
// Go structures, rejecting fields neither side declared.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode marshals v into the self-describing wire representation stored on
// a job's payload or result field.
func Encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode failed: %w", err)
	}
	return data, nil
}

// StrictDecode unmarshals data into v, rejecting any field present in data
// but absent from v's schema. This is what catches request/handler skew at
// decode time instead of letting an unrecognized field pass through
// silently (spec invariant: decode rejection, §8 item 9).
func StrictDecode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("codec: empty payload")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("codec: decode failed: %w", err)
	}

	return nil
}

// Diagnostic pairs a Go error's one-line message with an optional stack
// excerpt. It is not the envelope the worker runtime publishes: that is
// broker.JobError, which adds the error kind, and nothing in this module
// constructs a Diagnostic.
type Diagnostic struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// NewDiagnostic builds a Diagnostic from a Go error and an optional stack
// excerpt captured at the point the error crossed the handler boundary.
func NewDiagnostic(err error, stack string) Diagnostic {
	d := Diagnostic{Stack: stack}
	if err != nil {
		d.Message = err.Error()
	}
	return d
}
