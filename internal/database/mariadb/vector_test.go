package mariadb

import (
	"slices"
	"testing"
)

func TestEncodeVector(t *testing.T) {
	data, err := encodeVector([]float32{0.5, -1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "[0.5,-1,0]" {
		t.Errorf("expected flat JSON list, got %s", data)
	}
}

func TestDecodeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []float32
		wantErr  bool
	}{
		{"flat list", "[0.1, 0.2, 0.3]", []float32{0.1, 0.2, 0.3}, false},
		{"list of lists", "[[1, 2], [3, 4]]", []float32{1, 2}, false},
		{"empty flat list", "[]", []float32{}, false},
		{"empty nested list", "[[]]", []float32{}, false},
		{"object", `{"vector": [1]}`, nil, true},
		{"garbage", "not json", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeVector([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
