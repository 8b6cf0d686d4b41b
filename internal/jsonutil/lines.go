package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalLines encodes each record as compact JSON and joins them with '\n'.
// No trailing newline is written.
func MarshalLines[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	for i, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal line %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}
