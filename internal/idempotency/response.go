package idempotency

import (
	"encoding/json"
	"fmt"
)

// Header is one response header name/value pair. Order is preserved across
// save and replay.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SavedResponse is a structural snapshot of an HTTP response, sufficient to
// serve an identical response to a duplicate submission without re-running
// the command.
type SavedResponse struct {
	StatusCode int
	Headers    []Header
	Body       []byte
}

func encodeHeaders(headers []Header) ([]byte, error) {
	encoded, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response headers: %w", err)
	}
	return encoded, nil
}

func decodeHeaders(encoded []byte) ([]Header, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	var headers []Header
	if err := json.Unmarshal(encoded, &headers); err != nil {
		return nil, fmt.Errorf("stored response headers are corrupt: %w", err)
	}
	return headers, nil
}
