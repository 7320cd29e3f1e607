package ui

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"go.uber.org/goleak"
)

func TestBold_ContainsText(t *testing.T) {
	Init(false, false)
	result := Bold("hello")
	if !strings.Contains(result, "hello") {
		t.Errorf("Bold output should contain 'hello', got %q", result)
	}
}

func TestColorDisabled_PlainText(t *testing.T) {
	Init(true, false) // no color
	defer Init(false, false)

	for in, got := range map[string]string{
		"hello": Bold("hello"),
		"error": Red("error"),
		"ok":    Green("ok"),
		"warn":  Yellow("warn"),
		"dim":   Dim("dim"),
		"acc":   Accent("acc"),
	} {
		if got != in {
			t.Errorf("expected plain text %q when color disabled, got %q", in, got)
		}
	}
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	Init(false, false)
	defer Init(false, false)
	if Bold("x") != "x" {
		t.Errorf("NO_COLOR should disable styling, got %q", Bold("x"))
	}
}

func TestLoggerLevels(t *testing.T) {
	Init(false, false)
	if Logger == nil {
		t.Fatal("Logger should be initialized after Init()")
	}
	if Logger.GetLevel() != log.InfoLevel {
		t.Errorf("default level = %v, want info", Logger.GetLevel())
	}
	Init(false, true)
	if Logger.GetLevel() != log.DebugLevel {
		t.Errorf("verbose level = %v, want debug", Logger.GetLevel())
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("dropped")
	l.Error("dropped")
}

func TestTable(t *testing.T) {
	Init(true, false)
	defer Init(false, false)
	var buf bytes.Buffer
	Table(&buf, []string{"ID", "PREVIEW"}, [][]string{{"abc", "fix login"}, {"longer-id", "x"}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %q", buf.String())
	}
	if strings.Index(lines[1], "fix login") != strings.Index(lines[2], "x") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestConfirmModel(t *testing.T) {
	Init(true, false)
	defer Init(false, false)
	tests := []struct {
		keys []tea.KeyMsg
		want bool
	}{
		{[]tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune("y")}}, true},
		{[]tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune("n")}}, false},
		{[]tea.KeyMsg{{Type: tea.KeyEnter}}, true},
		{[]tea.KeyMsg{{Type: tea.KeyRight}, {Type: tea.KeyEnter}}, false},
		{[]tea.KeyMsg{{Type: tea.KeyEsc}}, false},
	}
	for _, tt := range tests {
		var m tea.Model = confirmModel{prompt: "Overwrite?"}
		for _, k := range tt.keys {
			m, _ = m.Update(k)
		}
		got := m.(confirmModel)
		if !got.decided || got.accepted != tt.want {
			t.Errorf("keys %v: decided=%v accepted=%v, want accepted=%v", tt.keys, got.decided, got.accepted, tt.want)
		}
	}
	if v := (confirmModel{prompt: "Overwrite?"}).View(); !strings.Contains(v, "Overwrite?") {
		t.Errorf("view missing prompt: %q", v)
	}
}

func TestSpinner_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	Init(true, false)
	defer Init(false, false)
	s := NewSpinner("indexing")
	s.Stop()
	s.Stop()
}

func TestOutputHelpers_NoPanic(t *testing.T) {
	Init(true, false)
	defer Init(false, false)
	Warning("w")
	Error("e")
	Info("i")
	Success("s")
	Detail("k", "v")
	KeyValue("k", "v")
	SectionHeader("section")
	EmptyState("nothing here")
	CommandBanner("list", "recent sessions")
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	RenderMarkdown(&buf, "# Context\n\n- `auth.go`\n")
	if !strings.Contains(buf.String(), "Context") || !strings.Contains(buf.String(), "auth.go") {
		t.Errorf("rendered markdown lost content: %q", buf.String())
	}
}
