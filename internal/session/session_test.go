package session

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
	}{
		{"user", RoleHuman},
		{" Human ", RoleHuman},
		{"assistant", RoleAssistant},
		{"model", RoleAssistant},
		{"system", RoleUnknown},
		{"", RoleUnknown},
	}
	for _, tt := range tests {
		if got := NormalizeRole(tt.raw); got != tt.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/projects/p/1234-abcd.jsonl", "1234-abcd"},
		{"/a/sessions/chat.json", "chat"},
		{"/a/b/c.jsonl.gz", "c"},
		{"/a/b/c.jsonl.zst", "c"},
		{"/a/b/v1.2.notes.json", "v1.2.notes"},
	}
	for _, tt := range tests {
		if got := IDFromPath(tt.path); got != tt.want {
			t.Errorf("IDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIDFromPath_EmptyStemHashes(t *testing.T) {
	a := IDFromPath("/x/.json")
	b := IDFromPath("/y/.json")
	if a == "" || a == b {
		t.Fatalf("expected distinct hashed ids, got %q and %q", a, b)
	}
	if a != IDFromPath("/x/.json") {
		t.Error("hashed id should be stable")
	}
}

func TestProjectFromPath(t *testing.T) {
	p := filepath.Join("home", ".claude", "projects", "-home-me-bot", "abc.jsonl")
	if got := ProjectFromPath(p); got != "-home-me-bot" {
		t.Errorf("ProjectFromPath = %q", got)
	}
	if got := ProjectFromPath(filepath.Join("tmp", "abc.jsonl")); got != "" {
		t.Errorf("expected no project, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("got %q", got)
	}
	// combining accent stays attached to its base letter
	if got := Truncate("e\u0301e\u0301e\u0301", 2); got != "e\u0301e\u0301..." {
		t.Errorf("got %q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Errorf("max 0 should disable truncation, got %q", got)
	}
}

func TestPreview_CollapsesWhitespace(t *testing.T) {
	got := Preview("fix\n\n  the   bug", 200)
	if got != "fix the bug" {
		t.Errorf("Preview = %q", got)
	}
}

func TestNewSummary(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	s := Session{
		ID:       "s1",
		LastSeen: ts,
		Messages: []Message{
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleHuman, Content: "   "},
			{Role: RoleHuman, Content: strings.Repeat("x", 300)},
		},
	}
	sum := NewSummary(s, 200)
	if sum.MessageCount != 3 {
		t.Errorf("MessageCount = %d", sum.MessageCount)
	}
	if sum.Preview != strings.Repeat("x", 200)+"..." {
		t.Errorf("unexpected preview %q", sum.Preview)
	}
	if !sum.LastSeen.Equal(ts) {
		t.Errorf("LastSeen = %v", sum.LastSeen)
	}

	empty := NewSummary(Session{ID: "e"}, 200)
	if empty.Preview != NoPreview {
		t.Errorf("expected placeholder preview, got %q", empty.Preview)
	}
}

func TestClone_DoesNotShareMessages(t *testing.T) {
	s := Session{Messages: []Message{{Role: RoleHuman, Content: "a"}}}
	c := s.Clone()
	c.Messages[0].Content = "b"
	if s.Messages[0].Content != "a" {
		t.Error("clone mutated the original")
	}
}

func TestNewDocument_Folds(t *testing.T) {
	d := NewDocument(Summary{Preview: "Fix AUTH"}, "Hello World")
	if d.FoldedText() != "hello world" || d.FoldedPreview() != "fix auth" {
		t.Errorf("unexpected folding: %q %q", d.FoldedText(), d.FoldedPreview())
	}
}

func TestSession_Text(t *testing.T) {
	s := Session{Messages: []Message{
		{Role: RoleHuman, Content: "first"},
		{Role: RoleAssistant, Content: ""},
		{Role: RoleAssistant, Content: "second\nline"},
	}}
	if got, want := s.Text(), "first\nsecond\nline"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if got := (Session{}).Text(); got != "" {
		t.Errorf("empty session Text() = %q", got)
	}
}
