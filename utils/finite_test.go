package utils

import (
	"math"
	"testing"
)

func TestFiniteVec3(t *testing.T) {
	tests := []struct {
		name    string
		x, y, z float64
		want    bool
	}{
		{"zero", 0, 0, 0, true},
		{"regular", 1.5, -2.5, 8, true},
		{"nan x", math.NaN(), 0, 0, false},
		{"inf y", 0, math.Inf(1), 0, false},
		{"neg inf z", 0, 0, math.Inf(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FiniteVec3(tt.x, tt.y, tt.z); got != tt.want {
				t.Errorf("FiniteVec3(%v, %v, %v) = %v, want %v", tt.x, tt.y, tt.z, got, tt.want)
			}
		})
	}
}

func TestFiniteAll(t *testing.T) {
	if !FiniteAll() {
		t.Error("empty input should be finite")
	}
	if !FiniteAll(1, 2, 3) {
		t.Error("regular values should be finite")
	}
	if FiniteAll(1, math.NaN()) {
		t.Error("NaN should not be finite")
	}
}
