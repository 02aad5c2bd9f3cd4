package mariadb

import (
	"encoding/json"
	"errors"
	"fmt"
)

// encodeVector serializes an embedding as a flat JSON list [e1, e2, ...].
func encodeVector(vec []float32) ([]byte, error) {
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("marshal vector: %w", err)
	}
	return data, nil
}

// decodeVector parses a stored embedding. Besides the flat list it accepts the
// list-of-lists form [[e1, e2, ...]] some encoders emit, taking the first entry.
func decodeVector(data []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	if len(nested) == 0 {
		return nil, errors.New("unmarshal vector: empty list")
	}
	return nested[0], nil
}
