package extract

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/techmad220/claude-code-mcp/internal/session"
)

func conversation(contents ...string) session.Session {
	s := session.Session{ID: "s1", ProjectPath: "/work/bot"}
	for i, c := range contents {
		role := session.RoleHuman
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		s.Messages = append(s.Messages, session.Message{Role: role, Content: c})
	}
	return s
}

func TestSummarize_TradingBot(t *testing.T) {
	s := conversation("Build me a trading bot", "Sure, creating trading_bot.py", "Also update config.json")
	got := New(DefaultOptions()).Summarize(s)

	if got.InitialRequest != "Build me a trading bot" {
		t.Errorf("InitialRequest = %q", got.InitialRequest)
	}
	if diff := cmp.Diff([]string{"trading_bot.py", "config.json"}, got.FilesMentioned); diff != "" {
		t.Errorf("FilesMentioned mismatch (-want +got):\n%s", diff)
	}
	rank := func(w string) int { return slices.Index(got.KeyTerms, w) }
	if rank("trading") < 0 || rank("bot") < 0 {
		t.Fatalf("key terms missing trading/bot: %v", got.KeyTerms)
	}
	if sure := rank("sure"); sure >= 0 && (sure < rank("trading") || sure < rank("bot")) {
		t.Errorf("incidental word ranked above topic words: %v", got.KeyTerms)
	}
	if got.Stats.MessageCount != 3 || got.Stats.HumanMessages != 2 || got.Stats.AssistantMessages != 1 {
		t.Errorf("Stats = %+v", got.Stats)
	}
}

func TestSummarize_ZeroMessages(t *testing.T) {
	got := New(DefaultOptions()).Summarize(session.Session{ID: "empty"})
	want := session.ContextSummary{
		ID:             "empty",
		FilesMentioned: []string{},
		KeyTerms:       []string{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_InitialRequestSkipsBlankHuman(t *testing.T) {
	s := session.Session{Messages: []session.Message{
		{Role: session.RoleAssistant, Content: "Welcome"},
		{Role: session.RoleHuman, Content: "   "},
		{Role: session.RoleHuman, Content: strings.Repeat("y", 600)},
	}}
	got := New(DefaultOptions()).Summarize(s)
	if want := strings.Repeat("y", 500) + "..."; got.InitialRequest != want {
		t.Errorf("InitialRequest has %d chars, want truncated to 500 plus marker", len(got.InitialRequest))
	}
}

func TestStats_Duration(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	s := session.Session{FirstSeen: start, LastSeen: start.Add(90 * time.Second)}
	if got := Stats(s).DurationSeconds; got != 90 {
		t.Errorf("DurationSeconds = %d, want 90", got)
	}
	if got := Stats(session.Session{LastSeen: start}).DurationSeconds; got != 0 {
		t.Errorf("missing start should give zero duration, got %d", got)
	}
}

func TestKeyTerms_FrequencyThenFirstOccurrence(t *testing.T) {
	e := New(DefaultOptions())
	got := e.KeyTerms([]string{"zeta alpha beta", "beta gamma alpha", "beta"})
	want := []string{"beta", "alpha", "zeta", "gamma"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("KeyTerms mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyTerms_StopwordsAndLength(t *testing.T) {
	got := New(DefaultOptions()).KeyTerms([]string{"The API is on an EC2 box, and it is OK"})
	want := []string{"api", "ec2", "box"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("KeyTerms mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyTerms_NonASCIIWords(t *testing.T) {
	got := New(DefaultOptions()).KeyTerms([]string{"café naïve café", "東京タワー plan", "Café"})
	want := []string{"café", "naïve", "東京タワー", "plan"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("KeyTerms mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyTerms_Cap(t *testing.T) {
	opts := DefaultOptions()
	opts.KeyTerms = 2
	got := New(opts).KeyTerms([]string{"one1 two2 three3 four4"})
	if len(got) != 2 {
		t.Errorf("expected 2 terms, got %v", got)
	}
}

func TestFileMentions(t *testing.T) {
	texts := []string{
		"Look at internal/store/store.go and (cmd/main.go).",
		"See https://example.com/a/b.html, also `README.md` and ./scripts/",
		"Windows: C:\\src\\app.cs then internal/store/store.go again",
		"and/or is not a file, neither is e.g. or 3.14",
	}
	got := New(DefaultOptions()).FileMentions(texts)
	want := []string{"internal/store/store.go", "cmd/main.go", "README.md", "./scripts/", `C:\src\app.cs`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FileMentions mismatch (-want +got):\n%s", diff)
	}
}

func TestFileMentions_Cap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxFiles = 2
	got := New(opts).FileMentions([]string{"a.go b.go c.go"})
	if diff := cmp.Diff([]string{"a.go", "b.go"}, got); diff != "" {
		t.Errorf("FileMentions mismatch (-want +got):\n%s", diff)
	}
}

func TestIsPathLike(t *testing.T) {
	for w, want := range map[string]bool{
		"/etc/hosts":        true,
		"~/notes":           true,
		"src/":              true,
		"pkg/util.go":       true,
		"Makefile.toml":     true,
		"and/or":            false,
		"http://x.io/a.go":  false,
		".json":             false,
		"...":               false,
		"3.14":              false,
		"internal/registry": false,
	} {
		if got := IsPathLike(w); got != want {
			t.Errorf("IsPathLike(%q) = %v, want %v", w, got, want)
		}
	}
}
