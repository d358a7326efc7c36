package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args are decoded function-call arguments.
type Args map[string]any

// ParseArgs decodes a JSON object. Anything that is not a valid object
// yields empty Args.
func ParseArgs(raw string) Args {
	var a Args
	if err := json.Unmarshal([]byte(raw), &a); err != nil || a == nil {
		return Args{}
	}
	return a
}

// String returns a trimmed string argument, or "" when absent.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// MaxInt bounds integer arguments such as max_results.
const MaxInt = 100

// Int returns an integer argument in 1..MaxInt, or def.
func (a Args) Int(key string, def int) int {
	var n int
	switch v := a[key].(type) {
	case float64:
		if math.IsNaN(v) || v < 1 || v > MaxInt {
			return def
		}
		n = int(v)
	case int:
		n = v
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n <= 0 || n > MaxInt {
		return def
	}
	return n
}

// Bool returns a boolean argument, or def.
func (a Args) Bool(key string, def bool) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Rows returns a table argument as strings. A flat array is treated as a
// single row.
func (a Args) Rows(key string) [][]string {
	list, ok := a[key].([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	if _, nested := list[0].([]any); !nested {
		return [][]string{cells(list)}
	}

	rows := make([][]string, 0, len(list))
	for _, item := range list {
		if row, ok := item.([]any); ok {
			rows = append(rows, cells(row))
		} else {
			rows = append(rows, []string{cell(item)})
		}
	}
	return rows
}

func cells(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = cell(v)
	}
	return out
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
