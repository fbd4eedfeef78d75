package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 7, 7},
		{"float", 6.0, 6},
		{"rounds half up", 7.5, 8},
		{"json number", json.Number("9"), 9},
		{"above max", 15, 10},
		{"below zero", -3, 0},
		{"string", "12", 10},
		{"string in range", "4", 4},
		{"string with padding", "  8 ", 8},
		{"trailing words", "8 points", 8},
		{"trailing punctuation", "10 (Perfect)", 10},
		{"fraction does not parse", "7/10", 0},
		{"words only", "excellent", 0},
		{"empty", "", 0},
		{"negative string", "-2", 0},
		{"decimal string", "6.4", 6},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"object", map[string]any{"value": 5}, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseScore(tc.value))
		})
	}
}
