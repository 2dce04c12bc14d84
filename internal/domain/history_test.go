package domain

import "testing"

func TestHistoryWithDoesNotAlias(t *testing.T) {
	base := make(History, 1, 8)
	base[0] = NewUserMessage("first")

	a := base.With(NewAssistantMessage("a"))
	b := base.With(NewAssistantMessage("b"))

	if len(base) != 1 {
		t.Fatalf("expected base to keep length 1, got %d", len(base))
	}
	if a[1].Content != "a" || b[1].Content != "b" {
		t.Fatalf("derived histories share storage: a=%q b=%q", a[1].Content, b[1].Content)
	}
}

func TestHistoryCloneIsIndependent(t *testing.T) {
	h := History{NewUserMessage("q"), NewAssistantMessage("a")}
	c := h.Clone()
	c[0].Content = "changed"

	if h[0].Content != "q" {
		t.Fatalf("clone mutated original: %q", h[0].Content)
	}

	var empty History
	if got := empty.Clone(); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil clone, got %#v", got)
	}
}

func TestHistoryAlternates(t *testing.T) {
	tests := []struct {
		name string
		h    History
		want bool
	}{
		{"empty", History{}, true},
		{"one exchange", History{NewUserMessage("q"), NewAssistantMessage("a")}, true},
		{"dangling user", History{NewUserMessage("q")}, false},
		{"starts with assistant", History{NewAssistantMessage("a"), NewUserMessage("q")}, false},
		{"two users", History{NewUserMessage("q"), NewUserMessage("q2")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.Alternates(); got != tt.want {
				t.Errorf("Alternates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageLabel(t *testing.T) {
	if got := NewUserMessage("x").Label(); got != "User" {
		t.Errorf("expected User, got %q", got)
	}
	if got := NewAssistantMessage("x").Label(); got != "Assistant" {
		t.Errorf("expected Assistant, got %q", got)
	}
}
