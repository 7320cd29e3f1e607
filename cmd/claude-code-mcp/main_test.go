package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/techmad220/claude-code-mcp/internal/session"
	"github.com/techmad220/claude-code-mcp/internal/store"
	"github.com/techmad220/claude-code-mcp/internal/ui"
)

func TestContextMarkdown(t *testing.T) {
	md := contextMarkdown(session.ContextSummary{
		ID:             "bot",
		ProjectPath:    "/home/dev/bot",
		InitialRequest: "Build me a trading bot\nwith tests",
		Stats: session.Stats{
			MessageCount: 3, HumanMessages: 2, AssistantMessages: 1,
			FirstSeen:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			LastSeen:        time.Date(2025, 1, 1, 0, 3, 0, 0, time.UTC),
			DurationSeconds: 180,
		},
		FilesMentioned: []string{"trading_bot.py"},
		KeyTerms:       []string{"trading", "bot"},
	})
	for _, want := range []string{
		"# Session bot",
		"`/home/dev/bot`",
		"> Build me a trading bot\n> with tests",
		"- Messages: 3 (2 human, 1 assistant)",
		"- Duration: 3m0s",
		"- `trading_bot.py`",
		"trading, bot",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestContextMarkdown_Sparse(t *testing.T) {
	md := contextMarkdown(session.ContextSummary{ID: "empty", FilesMentioned: []string{}, KeyTerms: []string{}})
	if !strings.Contains(md, "_none_") {
		t.Errorf("expected placeholder for a missing request:\n%s", md)
	}
	if strings.Contains(md, "Files mentioned") || strings.Contains(md, "Duration") {
		t.Errorf("empty sections should be omitted:\n%s", md)
	}
}

func TestNewService_RootOverride(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "p", "abc.jsonl")
	os.MkdirAll(filepath.Dir(p), 0755)
	os.WriteFile(p, []byte(`{"type":"user","message":{"role":"user","content":"hello there"}}`+"\n"), 0644)

	cfg := store.DefaultConfig()
	cfg.Scan.Roots = []string{filepath.Join(t.TempDir(), "elsewhere")}

	svc := newService(cfg, []string{root})
	sums, err := svc.ListSessions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 || sums[0].ID != "abc" {
		t.Errorf("override root not used: %+v", sums)
	}

	if got, _ := newService(cfg, nil).ListSessions(nil); len(got) != 0 {
		t.Errorf("configured root should be empty, got %+v", got)
	}
}

func TestLimitFlag(t *testing.T) {
	cmd := listCmd()
	if limitFlag(cmd, 0) != nil {
		t.Error("unset --limit should defer to the configured default")
	}
	if err := cmd.Flags().Set("limit", "0"); err != nil {
		t.Fatal(err)
	}
	if got := limitFlag(cmd, 0); got == nil || *got != 0 {
		t.Errorf("explicit --limit 0 = %v", got)
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "list", "search", "show", "context", "resume", "init", "doctor", "config"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("missing command %s", name)
		}
	}
}

func TestRoleLabel(t *testing.T) {
	ui.Init(true, false)
	defer ui.Init(false, false)
	for _, r := range []session.Role{session.RoleHuman, session.RoleAssistant, session.RoleUnknown} {
		if got := roleLabel(r); got != string(r) {
			t.Errorf("roleLabel(%s) = %q without color", r, got)
		}
	}
}
