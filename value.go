package jsonpatch

import (
	"encoding/json"
	"fmt"
	"math"
)

// Equal reports structural JSON equality between two values in the
// encoding/json model. Objects compare by key set with recursive value
// equality (key order is not significant), arrays compare element-wise in
// order, and numbers compare by mathematical value across float64,
// json.Number and Go integer representations. Booleans are never equal to
// numbers.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		an, aok := toNumber(a)
		bn, bok := toNumber(b)
		if aok && bok {
			return numbersEqual(an, bn)
		}
		return false
	}
}

// number is a normalized numeric value. Integral values keep their exact
// int64 form so that comparisons beyond float64 precision stay exact.
type number struct {
	isInt bool
	i     int64
	f     float64
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case float64:
		return number{f: n}, true
	case float32:
		return number{f: float64(n)}, true
	case int:
		return number{isInt: true, i: int64(n)}, true
	case int8:
		return number{isInt: true, i: int64(n)}, true
	case int16:
		return number{isInt: true, i: int64(n)}, true
	case int32:
		return number{isInt: true, i: int64(n)}, true
	case int64:
		return number{isInt: true, i: n}, true
	case uint:
		return number{isInt: true, i: int64(n)}, true
	case uint8:
		return number{isInt: true, i: int64(n)}, true
	case uint16:
		return number{isInt: true, i: int64(n)}, true
	case uint32:
		return number{isInt: true, i: int64(n)}, true
	case uint64:
		if n > math.MaxInt64 {
			return number{f: float64(n)}, true
		}
		return number{isInt: true, i: int64(n)}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{isInt: true, i: i}, true
		}
		if f, err := n.Float64(); err == nil {
			return number{f: f}, true
		}
		return number{}, false
	default:
		return number{}, false
	}
}

func numbersEqual(a, b number) bool {
	switch {
	case a.isInt && b.isInt:
		return a.i == b.i
	case a.isInt:
		return floatEqualsInt(b.f, a.i)
	case b.isInt:
		return floatEqualsInt(a.f, b.i)
	default:
		return a.f == b.f
	}
}

// floatEqualsInt cross-checks both conversion directions so values past
// 2^53 do not compare equal through rounding.
func floatEqualsInt(f float64, i int64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == float64(i) && int64(f) == i
}

// deepCopy returns a structural copy of a canonical JSON value. Containers
// are copied recursively; scalars are immutable and returned as-is.
func deepCopy(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(tv))
		for k, val := range tv {
			cp[k] = deepCopy(val)
		}
		return cp
	case []any:
		cp := make([]any, len(tv))
		for i, val := range tv {
			cp[i] = deepCopy(val)
		}
		return cp
	default:
		return tv
	}
}

// normalizeValue canonicalizes arbitrary Go values into the encoding/json
// model (map[string]any, []any, float64, string, bool, nil) by a JSON
// round-trip. Values already in that model are deep-copied without
// serialization.
func normalizeValue(v any) (any, error) {
	if isCanonical(v) {
		return deepCopy(v), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cannot normalize value: %w", err)
	}
	return out, nil
}

func isCanonical(v any) bool {
	switch tv := v.(type) {
	case nil, bool, string, float64, json.Number:
		return true
	case map[string]any:
		for _, val := range tv {
			if !isCanonical(val) {
				return false
			}
		}
		return true
	case []any:
		for _, val := range tv {
			if !isCanonical(val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
