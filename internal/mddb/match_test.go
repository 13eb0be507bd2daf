package mddb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pAIrprogio/synscript-sub000/internal/query"
	"github.com/pAIrprogio/synscript-sub000/internal/schema"
)

// spyMatcher records every expression handed to the engine.
type spyMatcher struct {
	engine *query.Engine

	mu      sync.Mutex
	calls   []string
	cleared int
}

func newSpy() *spyMatcher {
	return &spyMatcher{engine: query.NewEngine()}
}

func (s *spyMatcher) Match(expr query.Expr, input any, opts query.Options) (bool, error) {
	raw, _ := json.Marshal(expr)
	s.mu.Lock()
	s.calls = append(s.calls, string(raw))
	s.mu.Unlock()
	return s.engine.Match(expr, input, opts)
}

func (s *spyMatcher) ClearCache() {
	s.mu.Lock()
	s.cleared++
	s.mu.Unlock()
	s.engine.ClearCache()
}

func (s *spyMatcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *spyMatcher) saw(expr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c == expr {
			return true
		}
	}
	return false
}

func TestMatchOne_Scenarios(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":   "---\nquery: true\n---\nA",
		"a/b.md": "---\nquery:\n  x: 1\n---\nB",
	})
	db := openDB(t, root)
	ctx := context.Background()

	cases := []struct {
		input any
		want  []string
	}{
		{map[string]any{"x": 1}, []string{"a", "a/b"}},
		{map[string]any{"x": 2}, []string{"a"}},
		{map[string]any{}, []string{"a"}},
	}
	for _, tc := range cases {
		got, err := db.MatchOne(ctx, tc.input, MatchOptions{})
		if err != nil {
			t.Fatalf("MatchOne(%v): %v", tc.input, err)
		}
		if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
			t.Errorf("MatchOne(%v) mismatch (-want +got):\n%s", tc.input, diff)
		}
	}
}

func TestMatchOne_FailedAncestorShortCircuits(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":     "---\nquery:\n  gate: open\n---\nA",
		"a/b.md":   "---\nquery:\n  child: 1\n---\nB",
		"a/b/c.md": "---\nquery:\n  grandchild: 1\n---\nC",
		"z.md":     "---\nquery: true\n---\nZ",
	})
	spy := newSpy()
	db := openDB(t, root, WithMatcher(spy))

	got, err := db.MatchOne(context.Background(), map[string]any{"gate": "closed", "child": 1, "grandchild": 1}, MatchOptions{})
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if diff := cmp.Diff([]string{"z"}, ids(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if spy.saw(`{"child":1}`) || spy.saw(`{"grandchild":1}`) {
		t.Errorf("descendants of a failed ancestor were evaluated: %v", spy.calls)
	}
	if n := spy.count(); n != 2 {
		t.Errorf("engine calls = %d, want 2", n)
	}
}

func TestMatchOne_MissingAncestorDoesNotGate(t *testing.T) {
	root := writeTree(t, map[string]string{
		"x/y/z.md": "---\nquery: true\n---\nZ",
		"x/w.md":   "---\nquery:\n  n: 1\n---\nW",
	})
	db := openDB(t, root)

	got, err := db.MatchOne(context.Background(), map[string]any{"n": 1}, MatchOptions{})
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if diff := cmp.Diff([]string{"x/w", "x/y/z"}, ids(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchOne_AncestorAfterDescendantCountsAsMatched(t *testing.T) {
	// "0.guide/1.guide.md" folds to id "guide" yet sorts after
	// "0.guide/0.basics.md", so the child is evaluated first.
	root := writeTree(t, map[string]string{
		"0.guide/0.basics.md": "---\nquery: true\n---\nBasics",
		"0.guide/1.guide.md":  "---\nquery: false\n---\nGuide",
	})
	db := openDB(t, root)

	got, err := db.MatchOne(context.Background(), map[string]any{}, MatchOptions{})
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if diff := cmp.Diff([]string{"guide/basics"}, ids(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchOne_SkipEmpty(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":   "---\nquery: true\n---\n",
		"a/b.md": "---\nquery: true\n---\nB",
		"c.md":   "---\nquery: true\n---\n   \n",
	})
	db := openDB(t, root, WithCacheKey(JSONCacheKey))
	ctx := context.Background()

	all, err := db.MatchOne(ctx, map[string]any{}, MatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "a/b", "c"}, ids(all)); diff != "" {
		t.Errorf("without skipEmpty (-want +got):\n%s", diff)
	}

	nonEmpty, err := db.MatchOne(ctx, map[string]any{}, MatchOptions{SkipEmpty: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a/b"}, ids(nonEmpty)); diff != "" {
		t.Errorf("with skipEmpty (-want +got):\n%s", diff)
	}

	// The cached result must not have been filtered in place.
	again, _ := db.MatchOne(ctx, map[string]any{}, MatchOptions{})
	if len(again) != 3 {
		t.Errorf("cached result lost entries: %v", ids(again))
	}
}

func TestMatchOne_Cache(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":   "---\nquery: true\n---\nA",
		"a/b.md": "---\nquery:\n  x: 1\n---\nB",
	})
	spy := newSpy()
	db := openDB(t, root, WithMatcher(spy), WithCacheKey(JSONCacheKey))
	ctx := context.Background()
	input := map[string]any{"x": 1}

	first, err := db.MatchOne(ctx, input, MatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	calls := spy.count()

	second, err := db.MatchOne(ctx, map[string]any{"x": 1}, MatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if spy.count() != calls {
		t.Errorf("cache hit called the engine: %d → %d", calls, spy.count())
	}
	if diff := cmp.Diff(ids(first), ids(second)); diff != "" {
		t.Errorf("cached result differs (-first +second):\n%s", diff)
	}

	db.Refresh()
	if spy.cleared != 1 {
		t.Errorf("Refresh cleared engine cache %d times, want 1", spy.cleared)
	}
	if _, err := db.MatchOne(ctx, input, MatchOptions{}); err != nil {
		t.Fatal(err)
	}
	if spy.count() == calls {
		t.Error("refresh did not invalidate the match cache")
	}
}

// gateMatcher blocks its first Match call until release is closed.
type gateMatcher struct {
	*spyMatcher
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateMatcher) Match(expr query.Expr, input any, opts query.Options) (bool, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.spyMatcher.Match(expr, input, opts)
}

func TestMatchOne_RefreshDuringMatchIsNotCached(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "---\nquery: true\n---\nA"})
	gate := &gateMatcher{
		spyMatcher: newSpy(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	db := openDB(t, root, WithMatcher(gate), WithCacheKey(JSONCacheKey))
	ctx := context.Background()
	input := map[string]any{}

	type result struct {
		entries []*Entry
		err     error
	}
	done := make(chan result, 1)
	go func() {
		res, err := db.MatchOne(ctx, input, MatchOptions{})
		done <- result{res, err}
	}()

	<-gate.entered
	if err := os.Remove(filepath.Join(root, "a.md")); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "b.md", "---\nquery: true\n---\nB")
	db.Refresh()
	close(gate.release)

	old := <-done
	if old.err != nil {
		t.Fatal(old.err)
	}
	if diff := cmp.Diff([]string{"a"}, ids(old.entries)); diff != "" {
		t.Errorf("in-flight pass (-want +got):\n%s", diff)
	}

	got, err := db.MatchOne(ctx, input, MatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b"}, ids(got)); diff != "" {
		t.Errorf("after refresh (-want +got):\n%s", diff)
	}
}

func TestMatchOne_NoCacheByDefault(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "---\nquery: true\n---\nA"})
	spy := newSpy()
	db := openDB(t, root, WithMatcher(spy))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := db.MatchOne(ctx, map[string]any{}, MatchOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if n := spy.count(); n != 3 {
		t.Errorf("engine calls = %d, want 3", n)
	}
}

func TestMatchOne_EngineErrorNamesEntry(t *testing.T) {
	root := writeTree(t, map[string]string{
		"ok.md":  "---\nquery: true\n---\n",
		"bad.md": "---\nquery:\n  x:\n    $bogus: 1\n---\n",
	})
	// A permissive schema lets the malformed query through to match time.
	db := openDB(t, root, WithSchema(schema.New()))

	_, err := db.MatchOne(context.Background(), map[string]any{"x": 1}, MatchOptions{})
	var me *MatchError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *MatchError", err)
	}
	if me.ID != "bad" {
		t.Errorf("id = %q, want bad", me.ID)
	}
	if !errors.Is(err, query.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery in chain", err)
	}
}

func TestMatchOne_Canceled(t *testing.T) {
	db := openDB(t, writeTree(t, map[string]string{"a.md": "---\nquery: true\n---\n"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.MatchOne(ctx, map[string]any{}, MatchOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMatchAny(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":     "---\nquery: true\n---\nA",
		"a/b.md":   "---\nquery:\n  x: 1\n---\nB",
		"a/c.md":   "---\nquery:\n  x: 2\n---\nC",
		"a/d.md":   "---\nquery:\n  x: 3\n---\n",
		"z/z.md":   "---\nquery:\n  kind: z\n---\nZ",
		"zz/z.md":  "---\nquery: false\n---\nnever",
		"empty.md": "---\nquery: true\n---\n",
	})
	db := openDB(t, root)
	ctx := context.Background()

	inputs := []any{
		map[string]any{"x": 2},
		map[string]any{"x": 1, "kind": "z"},
		map[string]any{"x": 3},
	}
	got, err := db.MatchAny(ctx, inputs, MatchOptions{})
	if err != nil {
		t.Fatalf("MatchAny: %v", err)
	}
	want := []string{"a", "a/b", "a/c", "a/d", "empty", "z"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	reversed := []any{inputs[2], inputs[1], inputs[0]}
	again, err := db.MatchAny(ctx, reversed, MatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ids(got), ids(again)); diff != "" {
		t.Errorf("order depends on input order (-first +second):\n%s", diff)
	}

	nonEmpty, err := db.MatchAny(ctx, inputs, MatchOptions{SkipEmpty: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "a/b", "a/c", "z"}, ids(nonEmpty)); diff != "" {
		t.Errorf("skipEmpty mismatch (-want +got):\n%s", diff)
	}

	none, err := db.MatchAny(ctx, nil, MatchOptions{})
	if err != nil || len(none) != 0 {
		t.Errorf("MatchAny(nil) = %v, %v", ids(none), err)
	}
}

func TestMatchAny_PropagatesFailure(t *testing.T) {
	root := writeTree(t, map[string]string{
		"n.md": "---\nquery:\n  n:\n    $gt: 1\n---\n",
	})
	spy := newSpy()
	db := openDB(t, root, WithMatcher(strictMatcher{spy}))

	_, err := db.MatchAny(context.Background(), []any{
		map[string]any{"n": 2},
		map[string]any{"n": "two"},
	}, MatchOptions{})
	if !errors.Is(err, query.ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
}

// strictMatcher turns type validation back on.
type strictMatcher struct{ *spyMatcher }

func (s strictMatcher) Match(expr query.Expr, input any, opts query.Options) (bool, error) {
	opts.SkipValidation = false
	return s.spyMatcher.Match(expr, input, opts)
}

func TestMatch_Concurrent(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":   "---\nquery: true\n---\nA",
		"a/b.md": "---\nquery:\n  x:\n    $gte: 5\n---\nB",
	})
	db := openDB(t, root, WithCacheKey(JSONCacheKey))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := db.MatchOne(ctx, map[string]any{"x": i}, MatchOptions{})
			if err != nil {
				errs <- err
				return
			}
			want := 1
			if i >= 5 {
				want = 2
			}
			if len(got) != want {
				errs <- errors.New("unexpected match count")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
