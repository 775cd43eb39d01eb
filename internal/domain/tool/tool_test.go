package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/tokentab-io/tokentab/internal/domain"
)

// --- Mock ---

type stubTool struct {
	name string
	out  string
	err  error
}

func (s *stubTool) Name() string               { return s.name }
func (s *stubTool) Description() string        { return "stub" }
func (s *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (s *stubTool) Call(context.Context, json.RawMessage) (string, error) {
	return s.out, s.err
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubTool{name: "alpha"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get("alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name() != "alpha" {
		t.Errorf("Name() = %q", got.Name())
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubTool{name: "alpha"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&stubTool{name: "alpha"}); err == nil {
		t.Error("duplicate registration accepted")
	}
	if err := r.Register(&stubTool{name: ""}); err == nil {
		t.Error("empty name accepted")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Errorf("Get err = %v, want ErrToolNotFound", err)
	}
}

func TestRegistry_NamesInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(&stubTool{name: name}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	names := r.Names()
	want := []string{"c", "a", "b"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestRegistry_Specs(t *testing.T) {
	r := Builtins()

	specs := r.Specs()
	if len(specs) != 3 {
		t.Fatalf("Specs() len = %d, want 3", len(specs))
	}
	if specs[0].Name != "calculate" {
		t.Errorf("specs[0].Name = %q", specs[0].Name)
	}
	for _, s := range specs {
		if s.Description == "" {
			t.Errorf("tool %q has no description", s.Name)
		}
		if s.Parameters["type"] != "object" {
			t.Errorf("tool %q parameters type = %v", s.Name, s.Parameters["type"])
		}
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubTool{name: "ok", out: "done"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&stubTool{name: "bad", err: fmt.Errorf("boom")}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	out, err := r.Execute(context.Background(), "ok", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "done" {
		t.Errorf("Execute = %q", out)
	}

	_, err = r.Execute(context.Background(), "bad", nil)
	if !errors.Is(err, domain.ErrToolFailed) {
		t.Errorf("Execute err = %v, want ErrToolFailed", err)
	}

	_, err = r.Execute(context.Background(), "missing", nil)
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Errorf("Execute err = %v, want ErrToolNotFound", err)
	}
}
