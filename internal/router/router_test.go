package router

import (
	"context"
	"errors"
	"testing"

	"github.com/les2feup/citylink/internal/domain"
)

func noopHandler(name string) domain.Handler {
	return func(_ context.Context, _ domain.Runtime, _ []byte, _ []domain.Param) error {
		return nil
	}
}

// ─── Registration ───────────────────────────────────────────────────────────

func TestRegister_RejectsVariableFirstSegment(t *testing.T) {
	r := New()
	err := r.Register("{model}/set_prop", noopHandler("x"))
	if !errors.Is(err, domain.ErrInvalidTemplate) {
		t.Fatalf("err = %v, want ErrInvalidTemplate", err)
	}
}

func TestRegister_DuplicateTemplate(t *testing.T) {
	r := New()
	if err := r.Register("actions/set_prop/{name}", noopHandler("a")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register("actions/set_prop/{name}", noopHandler("b"))
	if !errors.Is(err, domain.ErrDuplicateHandler) {
		t.Fatalf("err = %v, want ErrDuplicateHandler", err)
	}
}

// ─── Resolution ─────────────────────────────────────────────────────────────

func TestResolve_BasicTemplate(t *testing.T) {
	r := New()
	called := false
	h := func(_ context.Context, _ domain.Runtime, _ []byte, params []domain.Param) error {
		called = true
		if len(params) != 1 || params[0].Name != "name" || params[0].Value != "brightness" {
			t.Errorf("unexpected params: %+v", params)
		}
		return nil
	}
	if err := r.Register("actions/set_prop/{name}", h); err != nil {
		t.Fatalf("register: %v", err)
	}

	handler, params, ok := r.Resolve("actions/set_prop/brightness")
	if !ok {
		t.Fatal("resolve: no match")
	}
	if err := handler(context.Background(), nil, nil, params); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called {
		t.Fatal("handler was not invoked")
	}
}

func TestResolve_LiteralPreferredOverWildcard(t *testing.T) {
	r := New()
	if err := r.Register("actions/blink/{count}", noopHandler("wild")); err != nil {
		t.Fatalf("register wildcard: %v", err)
	}
	if err := r.Register("actions/blink/fast", noopHandler("literal")); err != nil {
		t.Fatalf("register literal: %v", err)
	}

	_, params, ok := r.Resolve("actions/blink/fast")
	if !ok {
		t.Fatal("resolve: no match")
	}
	if len(params) != 0 {
		t.Fatalf("literal match should bind no params, got %+v", params)
	}

	_, params, ok = r.Resolve("actions/blink/3")
	if !ok {
		t.Fatal("resolve: no match for wildcard path")
	}
	if len(params) != 1 || params[0].Value != "3" {
		t.Fatalf("unexpected params for wildcard path: %+v", params)
	}
}

func TestResolve_LiteralAndWildcardFamilies(t *testing.T) {
	r := New()
	for _, tmpl := range []string{"foo", "foo/bar", "foo/{x}", "foo/{x}/{y}"} {
		if err := r.Register(tmpl, noopHandler(tmpl)); err != nil {
			t.Fatalf("register %q: %v", tmpl, err)
		}
	}

	cases := []struct {
		uri  string
		ok   bool
		want []domain.Param
	}{
		{"foo", true, nil},
		{"foo/bar", true, nil},
		{"foo/42", true, []domain.Param{{Name: "x", Value: "42"}}},
		{"foo/42/9", true, []domain.Param{{Name: "x", Value: "42"}, {Name: "y", Value: "9"}}},
		{"", false, nil},
		{"foo/bar/", false, nil}, // trailing slash is significant
		{"bar", false, nil},
		{"foo/42/9/extra", false, nil},
	}
	for _, c := range cases {
		_, params, ok := r.Resolve(c.uri)
		if ok != c.ok {
			t.Errorf("Resolve(%q) ok = %v, want %v", c.uri, ok, c.ok)
			continue
		}
		if !ok {
			continue
		}
		if len(params) != len(c.want) {
			t.Errorf("Resolve(%q) params = %+v, want %+v", c.uri, params, c.want)
			continue
		}
		for i := range params {
			if params[i] != c.want[i] {
				t.Errorf("Resolve(%q) param %d = %+v, want %+v", c.uri, i, params[i], c.want[i])
			}
		}
	}
}

func TestResolve_NoMatch(t *testing.T) {
	r := New()
	if err := r.Register("actions/set_prop/{name}", noopHandler("a")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, ok := r.Resolve("actions/unknown/thing"); ok {
		t.Fatal("expected no match")
	}
}

func TestResolve_MultipleVariables(t *testing.T) {
	r := New()
	var got []domain.Param
	h := func(_ context.Context, _ domain.Runtime, _ []byte, params []domain.Param) error {
		got = params
		return nil
	}
	if err := r.Register("actions/vfs/{op}/{path}", h); err != nil {
		t.Fatalf("register: %v", err)
	}

	handler, params, ok := r.Resolve("actions/vfs/write/app.py")
	if !ok {
		t.Fatal("resolve: no match")
	}
	if err := handler(context.Background(), nil, nil, params); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(got) != 2 || got[0].Name != "op" || got[0].Value != "write" ||
		got[1].Name != "path" || got[1].Value != "app.py" {
		t.Fatalf("unexpected params: %+v", got)
	}
}
