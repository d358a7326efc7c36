package tools

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgs_Int(t *testing.T) {
	tests := []struct {
		name string
		args Args
		want int
	}{
		{"absent", Args{}, 5},
		{"json number", ParseArgs(`{"max_results":2}`), 2},
		{"fraction truncates", Args{"max_results": 3.9}, 3},
		{"int", Args{"max_results": 7}, 7},
		{"string", Args{"max_results": " 12 "}, 12},
		{"at cap", Args{"max_results": float64(MaxInt)}, MaxInt},
		{"zero", Args{"max_results": 0.0}, 5},
		{"negative", Args{"max_results": -4}, 5},
		{"above cap", Args{"max_results": 101.0}, 5},
		{"huge", ParseArgs(`{"max_results":1e300}`), 5},
		{"huge string", Args{"max_results": "99999999999"}, 5},
		{"infinity", Args{"max_results": math.Inf(1)}, 5},
		{"nan", Args{"max_results": math.NaN()}, 5},
		{"not a number", Args{"max_results": "lots"}, 5},
		{"wrong type", Args{"max_results": true}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.args.Int("max_results", 5))
		})
	}
}

func TestParseArgs_NotAnObject(t *testing.T) {
	assert.Equal(t, Args{}, ParseArgs(`[1,2]`))
	assert.Equal(t, Args{}, ParseArgs(`{`))
	assert.Equal(t, Args{}, ParseArgs(`null`))
}
