package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func constHandler(v any) Handler {
	return HandlerFunc(func(context.Context, Args) (any, error) { return v, nil })
}

func TestRegisterEmptyName(t *testing.T) {
	r := New()
	if err := r.Register("", constHandler(1), "nothing"); !errors.Is(err, ErrInvalidToolName) {
		t.Fatalf("expected ErrInvalidToolName, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestLookupMissing(t *testing.T) {
	r := New()
	if _, err := r.Lookup("nope"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestLastRegistrationWins(t *testing.T) {
	r := New()
	_ = r.Register("a", constHandler("first"), "first")
	_ = r.Register("b", constHandler("b"), "b")
	_ = r.Register("a", constHandler("second"), "second")

	d, err := r.Lookup("a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if d.Description != "second" {
		t.Fatalf("expected latest description, got %q", d.Description)
	}
	v, _ := d.Handler.Call(context.Background(), nil)
	if v != "second" {
		t.Fatalf("expected latest handler, got %v", v)
	}

	list := r.List()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("unexpected catalog %+v", list)
	}
}

func TestListOrder(t *testing.T) {
	r := New()
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		_ = r.Register(n, constHandler(n), "tool "+n)
	}
	list := r.List()
	for i, n := range names {
		if list[i].Name != n || list[i].Description != "tool "+n {
			t.Fatalf("position %d: got %+v", i, list[i])
		}
	}
}

func TestConcurrentLateRegistration(t *testing.T) {
	r := New()
	_ = r.Register("base", constHandler(0), "")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("t%d", i), constHandler(i), "")
		}(i)
		go func() {
			defer wg.Done()
			_ = r.List()
			_, _ = r.Lookup("base")
		}()
	}
	wg.Wait()
	if r.Len() != 9 {
		t.Fatalf("expected 9 tools, got %d", r.Len())
	}
}

func TestArgs(t *testing.T) {
	a := Args{
		"s":     "hi",
		"blank": "  ",
		"n":     float64(7),
		"frac":  1.5,
		"b":     true,
		"list":  []any{"x", "y"},
		"bad":   []any{"x", 2},
		"null":  nil,
	}

	if s, err := a.String("s", "d"); err != nil || s != "hi" {
		t.Fatalf("String: %q %v", s, err)
	}
	if s, err := a.String("missing", "d"); err != nil || s != "d" {
		t.Fatalf("String default: %q %v", s, err)
	}
	if s, err := a.String("null", "d"); err != nil || s != "d" {
		t.Fatalf("String null: %q %v", s, err)
	}
	if _, err := a.String("n", ""); err == nil {
		t.Fatal("expected type error for number as string")
	}
	var argErr *ArgumentError
	if _, err := a.RequiredString("blank"); !errors.As(err, &argErr) || argErr.Name != "blank" {
		t.Fatalf("expected ArgumentError for blank, got %v", err)
	}
	if n, err := a.Int("n", 0); err != nil || n != 7 {
		t.Fatalf("Int: %d %v", n, err)
	}
	if _, err := a.Int("frac", 0); err == nil {
		t.Fatal("expected error for fractional int")
	}
	if b, err := a.Bool("b", false); err != nil || !b {
		t.Fatalf("Bool: %v %v", b, err)
	}
	if l, err := a.Strings("list"); err != nil || len(l) != 2 {
		t.Fatalf("Strings: %v %v", l, err)
	}
	if _, err := a.Strings("bad"); err == nil {
		t.Fatal("expected error for mixed list")
	}
	if _, err := a.Strings("missing"); err == nil {
		t.Fatal("expected error for missing list")
	}
}
