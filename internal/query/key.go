package query

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// cacheKey encodes expr into a compile cache key. Every scalar is tagged with
// its kind, so a time.Time operand and its RFC 3339 string get different keys.
// Numbers of any kind share a key when equal in value, as they compare alike.
func cacheKey(expr Expr) (string, bool) {
	norm, err := normalize(expr)
	if err != nil {
		return "", false
	}
	var b strings.Builder
	if !writeKey(&b, norm) {
		return "", false
	}
	return b.String(), true
}

func writeKey(b *strings.Builder, v any) bool {
	switch x := v.(type) {
	case nil:
		b.WriteString("n")
	case bool:
		if x {
			b.WriteString("T")
		} else {
			b.WriteString("F")
		}
	case string:
		b.WriteString("s")
		b.WriteString(strconv.Quote(x))
	case time.Time:
		b.WriteString("t")
		b.WriteString(strconv.Quote(x.Format(time.RFC3339Nano)))
	case []any:
		b.WriteString("[")
		for _, el := range x {
			if !writeKey(b, el) {
				return false
			}
			b.WriteString(",")
		}
		b.WriteString("]")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		b.WriteString("{")
		for _, k := range keys {
			b.WriteString(strconv.Quote(k))
			b.WriteString(":")
			if !writeKey(b, x[k]) {
				return false
			}
			b.WriteString(",")
		}
		b.WriteString("}")
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil || !isNumber(v) {
			return false
		}
		b.WriteString("f")
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return true
}
