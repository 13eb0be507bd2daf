package query

import (
	"errors"
	"testing"
	"time"
)

func mustMatch(t *testing.T, e *Engine, expr Expr, input any) bool {
	t.Helper()
	ok, err := e.Match(expr, input, Options{})
	if err != nil {
		t.Fatalf("Match(%v, %v): %v", expr, input, err)
	}
	return ok
}

func TestMatch_Literals(t *testing.T) {
	e := NewEngine()
	if !mustMatch(t, e, Always, map[string]any{"x": 1}) {
		t.Error("Always should match")
	}
	if mustMatch(t, e, Never, map[string]any{"x": 1}) {
		t.Error("Never should not match")
	}
	if !mustMatch(t, e, map[string]any{}, nil) {
		t.Error("empty document should match everything")
	}
}

func TestMatch_Operators(t *testing.T) {
	input := map[string]any{
		"x":    1,
		"name": "Button",
		"tags": []any{"ui", "react"},
		"meta": map[string]any{"level": 2.0, "owner": "core"},
		"items": []any{
			map[string]any{"kind": "a", "n": 1},
			map[string]any{"kind": "b", "n": 5},
		},
		"nothing": nil,
	}

	cases := []struct {
		name string
		expr Expr
		want bool
	}{
		{"implicit eq", map[string]any{"x": 1}, true},
		{"implicit eq int vs float", map[string]any{"x": 1.0}, true},
		{"implicit eq mismatch", map[string]any{"x": 2}, false},
		{"eq on array element", map[string]any{"tags": "ui"}, true},
		{"eq whole array", map[string]any{"tags": []any{"ui", "react"}}, true},
		{"ne", map[string]any{"x": map[string]any{"$ne": 2}}, true},
		{"ne on array", map[string]any{"tags": map[string]any{"$ne": "ui"}}, false},
		{"gt", map[string]any{"meta.level": map[string]any{"$gt": 1}}, true},
		{"gte boundary", map[string]any{"meta.level": map[string]any{"$gte": 2}}, true},
		{"lt", map[string]any{"x": map[string]any{"$lt": 1}}, false},
		{"range", map[string]any{"x": map[string]any{"$gte": 0, "$lte": 1}}, true},
		{"string compare", map[string]any{"name": map[string]any{"$gt": "A"}}, true},
		{"in", map[string]any{"name": map[string]any{"$in": []any{"Card", "Button"}}}, true},
		{"in array field", map[string]any{"tags": map[string]any{"$in": []any{"vue", "react"}}}, true},
		{"nin", map[string]any{"tags": map[string]any{"$nin": []any{"vue"}}}, true},
		{"exists true", map[string]any{"meta.owner": map[string]any{"$exists": true}}, true},
		{"exists false", map[string]any{"missing": map[string]any{"$exists": false}}, true},
		{"exists on null", map[string]any{"nothing": map[string]any{"$exists": true}}, true},
		{"null matches missing", map[string]any{"missing": nil}, true},
		{"null matches null", map[string]any{"nothing": nil}, true},
		{"regex", map[string]any{"name": map[string]any{"$regex": "^but", "$options": "i"}}, true},
		{"regex no options", map[string]any{"name": map[string]any{"$regex": "^but"}}, false},
		{"size", map[string]any{"tags": map[string]any{"$size": 2}}, true},
		{"all", map[string]any{"tags": map[string]any{"$all": []any{"react", "ui"}}}, true},
		{"all missing one", map[string]any{"tags": map[string]any{"$all": []any{"react", "vue"}}}, false},
		{"elemMatch doc", map[string]any{"items": map[string]any{"$elemMatch": map[string]any{"kind": "b", "n": map[string]any{"$gt": 3}}}}, true},
		{"elemMatch doc miss", map[string]any{"items": map[string]any{"$elemMatch": map[string]any{"kind": "a", "n": map[string]any{"$gt": 3}}}}, false},
		{"elemMatch ops", map[string]any{"tags": map[string]any{"$elemMatch": map[string]any{"$regex": "^re"}}}, true},
		{"array fan-out path", map[string]any{"items.kind": "b"}, true},
		{"array index path", map[string]any{"items.0.kind": "b"}, false},
		{"not", map[string]any{"x": map[string]any{"$not": map[string]any{"$gt": 5}}}, true},
		{"and", map[string]any{"$and": []any{map[string]any{"x": 1}, map[string]any{"name": "Button"}}}, true},
		{"or", map[string]any{"$or": []any{map[string]any{"x": 9}, map[string]any{"name": "Button"}}}, true},
		{"nor", map[string]any{"$nor": []any{map[string]any{"x": 9}, map[string]any{"name": "Card"}}}, true},
		{"nested literal in or", map[string]any{"$or": []any{false, true}}, true},
	}

	e := NewEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mustMatch(t, e, tc.expr, input); got != tc.want {
				t.Errorf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMatch_InvalidQuery(t *testing.T) {
	cases := []Expr{
		nil,
		"string",
		map[string]any{"$where": "x"},
		map[string]any{"x": map[string]any{"$bogus": 1}},
		map[string]any{"x": map[string]any{"$in": "not-array"}},
		map[string]any{"x": map[string]any{"$regex": "("}},
		map[string]any{"x": map[string]any{"$options": "i"}},
		map[string]any{"x": map[string]any{"$exists": "yes"}},
		map[string]any{"x": map[string]any{"$size": 1.5}},
		map[string]any{"x": map[string]any{"$gt": []any{1}}},
		map[string]any{"x": map[string]any{"$gt": 1, "y": 2}},
		map[string]any{"$or": []any{}},
		map[string]any{"$and": map[string]any{}},
	}
	e := NewEngine()
	for _, expr := range cases {
		if _, err := e.Match(expr, map[string]any{}, Options{SkipValidation: true}); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Match(%#v) err = %v, want ErrInvalidQuery", expr, err)
		}
		if err := Validate(expr); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Validate(%#v) err = %v, want ErrInvalidQuery", expr, err)
		}
	}
}

func TestMatch_TypeMismatch(t *testing.T) {
	e := NewEngine()
	expr := map[string]any{"x": map[string]any{"$gt": 1}}
	input := map[string]any{"x": "one"}

	if _, err := e.Match(expr, input, Options{}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("strict err = %v, want ErrTypeMismatch", err)
	}
	ok, err := e.Match(expr, input, Options{SkipValidation: true})
	if err != nil || ok {
		t.Errorf("lenient = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestMatch_StructInputNormalized(t *testing.T) {
	type props struct {
		Kind  string `json:"kind"`
		Count int    `json:"count"`
	}
	e := NewEngine()
	expr := map[string]any{"kind": "card", "count": map[string]any{"$gte": 3}}
	if !mustMatch(t, e, expr, props{Kind: "card", Count: 3}) {
		t.Error("struct input should be matched through its JSON shape")
	}
}

func TestCache(t *testing.T) {
	e := NewEngine()
	expr := map[string]any{"x": 1}

	if _, err := e.Match(expr, map[string]any{"x": 1}, Options{}); err != nil {
		t.Fatal(err)
	}
	if n := e.cached(); n != 0 {
		t.Fatalf("cache populated without UseCache: %d", n)
	}

	for i := 0; i < 3; i++ {
		if _, err := e.Match(map[string]any{"x": 1}, map[string]any{"x": i}, Options{UseCache: true}); err != nil {
			t.Fatal(err)
		}
	}
	if n := e.cached(); n != 1 {
		t.Fatalf("cached = %d, want 1 for structurally equal expressions", n)
	}

	e.ClearCache()
	if n := e.cached(); n != 0 {
		t.Errorf("cached after ClearCache = %d", n)
	}
}

func TestCache_TimeOperandKeyedApart(t *testing.T) {
	e := NewEngine()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := Options{UseCache: true, SkipValidation: true}

	byTime := map[string]any{"at": at}
	byString := map[string]any{"at": at.Format(time.RFC3339)}

	ok, err := e.Match(byTime, map[string]any{"at": at}, opts)
	if err != nil || !ok {
		t.Fatalf("time operand vs time input = %v, %v", ok, err)
	}
	ok, err = e.Match(byString, map[string]any{"at": at}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("string operand must not reuse the predicate compiled for a time operand")
	}
	ok, err = e.Match(byString, map[string]any{"at": at.Format(time.RFC3339)}, opts)
	if err != nil || !ok {
		t.Errorf("string operand vs string input = %v, %v", ok, err)
	}
	if n := e.cached(); n != 2 {
		t.Errorf("cached = %d, want 2", n)
	}
}

func TestCacheKey(t *testing.T) {
	a, ok := cacheKey(map[string]any{"x": 1, "y": []any{"a", true, nil}})
	if !ok {
		t.Fatal("plain expression should be keyable")
	}
	b, _ := cacheKey(map[string]any{"y": []any{"a", true, nil}, "x": 1.0})
	if a != b {
		t.Errorf("equal expressions keyed apart: %s vs %s", a, b)
	}
	if c, _ := cacheKey(map[string]any{"x": "1"}); c == a {
		t.Error("string and number operands share a key")
	}
	if _, ok := cacheKey(map[string]any{"f": func() {}}); ok {
		t.Error("unencodable expression should not be keyable")
	}
}
