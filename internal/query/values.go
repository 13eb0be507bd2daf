package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// normalize converts v into the plain shape the evaluator walks: nil, bool,
// string, numbers, time.Time, []any and map[string]any. Anything else is
// round-tripped through JSON.
func normalize(v any) (any, error) {
	if plain(v) {
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func plain(v any) bool {
	switch t := v.(type) {
	case nil, bool, string, time.Time:
		return true
	case []any:
		for _, el := range t {
			if !plain(el) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, el := range t {
			if !plain(el) {
				return false
			}
		}
		return true
	default:
		return isNumber(v)
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

func orderable(v any) bool {
	switch v.(type) {
	case string, time.Time:
		return true
	}
	return isNumber(v)
}

// equal is deep equality with numeric kinds compared by value.
func equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		fa, errA := cast.ToFloat64E(a)
		fb, errB := cast.ToFloat64E(b)
		return errA == nil && errB == nil && fa == fb
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

// compare orders a against b. ok is false when the two are not comparable.
func compare(a, b any) (int, bool) {
	if isNumber(a) && isNumber(b) {
		fa, errA := cast.ToFloat64E(a)
		fb, errB := cast.ToFloat64E(b)
		if errA != nil || errB != nil {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func invalidTypes(op string, value, operand any) error {
	return fmt.Errorf("query: %s cannot compare %T with %T: %w", op, value, operand, ErrTypeMismatch)
}
