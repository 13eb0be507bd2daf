package query

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// predicate evaluates a whole document. strict enables type checks.
type predicate func(doc any, strict bool) (bool, error)

// condition evaluates the values found at a field path.
type condition func(values []any, exists bool, strict bool) (bool, error)

func compile(expr Expr) (predicate, error) {
	norm, err := normalize(expr)
	if err != nil {
		return nil, invalidf("normalize expression: %v", err)
	}
	switch q := norm.(type) {
	case bool:
		return func(any, bool) (bool, error) { return q, nil }, nil
	case map[string]any:
		return compileDoc(q)
	case nil:
		return nil, invalidf("expression is empty")
	default:
		return nil, invalidf("expression must be a boolean or a document, got %T", norm)
	}
}

func compileDoc(doc map[string]any) (predicate, error) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]predicate, 0, len(keys))
	for _, k := range keys {
		v := doc[k]
		switch k {
		case "$and", "$or", "$nor":
			p, err := compileLogical(k, v)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		default:
			if strings.HasPrefix(k, "$") {
				return nil, invalidf("unknown top-level operator %q", k)
			}
			if k == "" {
				return nil, invalidf("empty field path")
			}
			c, err := compileCondition(v)
			if err != nil {
				return nil, err
			}
			parts = append(parts, fieldPredicate(strings.Split(k, "."), c))
		}
	}
	return allOf(parts), nil
}

func compileLogical(op string, v any) (predicate, error) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, invalidf("%s expects a non-empty array", op)
	}
	subs := make([]predicate, len(list))
	for i, item := range list {
		p, err := compile(item)
		if err != nil {
			return nil, err
		}
		subs[i] = p
	}
	switch op {
	case "$and":
		return allOf(subs), nil
	case "$or":
		return anyOf(subs), nil
	default:
		or := anyOf(subs)
		return func(doc any, strict bool) (bool, error) {
			ok, err := or(doc, strict)
			return !ok, err
		}, nil
	}
}

func allOf(ps []predicate) predicate {
	return func(doc any, strict bool) (bool, error) {
		for _, p := range ps {
			ok, err := p(doc, strict)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

func anyOf(ps []predicate) predicate {
	return func(doc any, strict bool) (bool, error) {
		for _, p := range ps {
			ok, err := p(doc, strict)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

func fieldPredicate(path []string, c condition) predicate {
	return func(doc any, strict bool) (bool, error) {
		values, exists := resolve(doc, path)
		return c(values, exists, strict)
	}
}

// isOperatorDoc reports whether v is a non-empty document whose keys are all
// operators. A document mixing operators and plain keys is malformed.
func isOperatorDoc(v any) (map[string]any, bool, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false, nil
	}
	ops := 0
	for k := range m {
		if strings.HasPrefix(k, "$") {
			ops++
		}
	}
	switch ops {
	case 0:
		return nil, false, nil
	case len(m):
		return m, true, nil
	default:
		return nil, false, invalidf("cannot mix operators and fields in %v", m)
	}
}

func compileCondition(v any) (condition, error) {
	ops, ok, err := isOperatorDoc(v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return eqCondition(v), nil
	}

	if _, has := ops["$options"]; has {
		if _, hasRe := ops["$regex"]; !hasRe {
			return nil, invalidf("$options requires $regex")
		}
	}

	names := make([]string, 0, len(ops))
	for k := range ops {
		names = append(names, k)
	}
	sort.Strings(names)

	conds := make([]condition, 0, len(names))
	for _, op := range names {
		if op == "$options" {
			continue
		}
		c, err := compileOperator(op, ops[op], ops)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return func(values []any, exists bool, strict bool) (bool, error) {
		for _, c := range conds {
			ok, err := c(values, exists, strict)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func compileOperator(op string, operand any, siblings map[string]any) (condition, error) {
	switch op {
	case "$eq":
		return eqCondition(operand), nil
	case "$ne":
		return negate(eqCondition(operand)), nil
	case "$gt", "$gte", "$lt", "$lte":
		return compareCondition(op, operand)
	case "$in":
		return inCondition(op, operand)
	case "$nin":
		c, err := inCondition(op, operand)
		if err != nil {
			return nil, err
		}
		return negate(c), nil
	case "$exists":
		want, ok := operand.(bool)
		if !ok {
			return nil, invalidf("$exists expects a boolean")
		}
		return func(_ []any, exists bool, _ bool) (bool, error) {
			return exists == want, nil
		}, nil
	case "$regex":
		return regexCondition(operand, siblings["$options"])
	case "$size":
		f, err := cast.ToFloat64E(operand)
		if err != nil || !isNumber(operand) || f < 0 || f != math.Trunc(f) {
			return nil, invalidf("$size expects a non-negative integer")
		}
		n := int(f)
		return func(values []any, _ bool, _ bool) (bool, error) {
			for _, v := range values {
				if arr, ok := v.([]any); ok && len(arr) == n {
					return true, nil
				}
			}
			return false, nil
		}, nil
	case "$all":
		list, ok := operand.([]any)
		if !ok {
			return nil, invalidf("$all expects an array")
		}
		return func(values []any, _ bool, _ bool) (bool, error) {
			for _, v := range values {
				arr, ok := v.([]any)
				if !ok || len(list) == 0 {
					continue
				}
				if containsAll(arr, list) {
					return true, nil
				}
			}
			return false, nil
		}, nil
	case "$elemMatch":
		return elemMatchCondition(operand)
	case "$not":
		if _, ok, _ := isOperatorDoc(operand); !ok {
			return nil, invalidf("$not expects an operator document")
		}
		c, err := compileCondition(operand)
		if err != nil {
			return nil, err
		}
		return negate(c), nil
	default:
		return nil, invalidf("unknown operator %q", op)
	}
}

func negate(c condition) condition {
	return func(values []any, exists bool, strict bool) (bool, error) {
		ok, err := c(values, exists, strict)
		return !ok, err
	}
}

// eqCondition matches when any value (or any element of an array value)
// equals operand. A null operand also matches a missing field.
func eqCondition(operand any) condition {
	return func(values []any, exists bool, _ bool) (bool, error) {
		if operand == nil && !exists {
			return true, nil
		}
		for _, v := range values {
			if equal(v, operand) {
				return true, nil
			}
			if arr, ok := v.([]any); ok {
				for _, el := range arr {
					if equal(el, operand) {
						return true, nil
					}
				}
			}
		}
		return false, nil
	}
}

func inCondition(op string, operand any) (condition, error) {
	list, ok := operand.([]any)
	if !ok {
		return nil, invalidf("%s expects an array", op)
	}
	conds := make([]condition, len(list))
	for i, item := range list {
		conds[i] = eqCondition(item)
	}
	return func(values []any, exists bool, strict bool) (bool, error) {
		for _, c := range conds {
			ok, err := c(values, exists, strict)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func compareCondition(op string, operand any) (condition, error) {
	if !orderable(operand) {
		return nil, invalidf("%s expects a number, string or time operand", op)
	}
	accept := func(c int) bool {
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		default:
			return c <= 0
		}
	}
	return func(values []any, _ bool, strict bool) (bool, error) {
		for _, v := range flatten(values) {
			if v == nil {
				continue
			}
			c, ok := compare(v, operand)
			if !ok {
				if strict {
					return false, invalidTypes(op, v, operand)
				}
				continue
			}
			if accept(c) {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func regexCondition(pattern, options any) (condition, error) {
	p, ok := pattern.(string)
	if !ok {
		return nil, invalidf("$regex expects a string")
	}
	if options != nil {
		flags, ok := options.(string)
		if !ok {
			return nil, invalidf("$options expects a string")
		}
		for _, f := range flags {
			if !strings.ContainsRune("imsU", f) {
				return nil, invalidf("unsupported $options flag %q", f)
			}
		}
		if flags != "" {
			p = "(?" + flags + ")" + p
		}
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, invalidf("$regex: %v", err)
	}
	return func(values []any, _ bool, _ bool) (bool, error) {
		for _, v := range flatten(values) {
			if s, ok := v.(string); ok && re.MatchString(s) {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func elemMatchCondition(operand any) (condition, error) {
	m, ok := operand.(map[string]any)
	if !ok {
		return nil, invalidf("$elemMatch expects a document")
	}
	var match func(el any, strict bool) (bool, error)
	if _, isOps, err := isOperatorDoc(m); err != nil {
		return nil, err
	} else if isOps {
		c, err := compileCondition(m)
		if err != nil {
			return nil, err
		}
		match = func(el any, strict bool) (bool, error) {
			return c([]any{el}, true, strict)
		}
	} else {
		p, err := compileDoc(m)
		if err != nil {
			return nil, err
		}
		match = func(el any, strict bool) (bool, error) {
			if _, ok := el.(map[string]any); !ok {
				return false, nil
			}
			return p(el, strict)
		}
	}
	return func(values []any, _ bool, strict bool) (bool, error) {
		for _, v := range values {
			arr, ok := v.([]any)
			if !ok {
				continue
			}
			for _, el := range arr {
				ok, err := match(el, strict)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
		}
		return false, nil
	}, nil
}

// resolve walks path through nested documents. Arrays are indexed by numeric
// segments or fanned out otherwise.
func resolve(doc any, path []string) ([]any, bool) {
	if len(path) == 0 {
		return []any{doc}, true
	}
	seg, rest := path[0], path[1:]
	switch v := doc.(type) {
	case map[string]any:
		child, ok := v[seg]
		if !ok {
			return nil, false
		}
		return resolve(child, rest)
	case []any:
		if i, err := strconv.Atoi(seg); err == nil {
			if i < 0 || i >= len(v) {
				return nil, false
			}
			return resolve(v[i], rest)
		}
		var out []any
		found := false
		for _, el := range v {
			if _, ok := el.(map[string]any); !ok {
				continue
			}
			vals, ok := resolve(el, path)
			if ok {
				found = true
				out = append(out, vals...)
			}
		}
		return out, found
	default:
		return nil, false
	}
}

// flatten returns values with array values replaced by their elements.
func flatten(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func containsAll(arr, want []any) bool {
	for _, w := range want {
		found := false
		for _, el := range arr {
			if equal(el, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
