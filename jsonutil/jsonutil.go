// Package jsonutil provides small JSON helpers shared across the engine.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalIndentWithNewline marshals v with indentation and a trailing
// newline, so files written from it are friendly to text tooling.
func MarshalIndentWithNewline(v any, prefix, indent string) ([]byte, error) {
	data, err := json.MarshalIndent(v, prefix, indent)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// UnmarshalStrict decodes data into v, rejecting unknown fields. Used for
// operator-edited files (settings) where a typo should fail loudly instead
// of being silently ignored.
func UnmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Reject trailing content after the first JSON value.
	if dec.More() {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}
