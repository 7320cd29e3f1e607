package session

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/rivo/uniseg"
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleUnknown   Role = "unknown"
)

// NoPreview is shown for sessions without a human message.
const NoPreview = "No preview available"

// NormalizeRole maps the role spellings seen across CLI versions onto the canonical roles.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "human":
		return RoleHuman
	case "assistant", "ai", "model", "bot", "claude":
		return RoleAssistant
	default:
		return RoleUnknown
	}
}

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Session is one transcript, messages in file order.
type Session struct {
	ID          string    `json:"id"`
	ProjectPath string    `json:"project_path,omitempty"`
	Format      string    `json:"format,omitempty"` // encoding the parser recognized
	FirstSeen   time.Time `json:"first_seen,omitzero"`
	LastSeen    time.Time `json:"last_seen,omitzero"`
	Messages    []Message `json:"messages"`
	FilePath    string    `json:"file_path"`
}

// Summary is the metadata-only projection used for listing and ranking.
type Summary struct {
	ID           string    `json:"id"`
	ProjectPath  string    `json:"project_path,omitempty"`
	FirstSeen    time.Time `json:"first_seen,omitzero"`
	LastSeen     time.Time `json:"last_seen,omitzero"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
	FilePath     string    `json:"-"`
}

// Document pairs a summary with its bounded searchable text.
type Document struct {
	Summary Summary
	Text    string
	// Truncated is set when Text holds only part of the session's content.
	Truncated bool

	foldedText    string
	foldedPreview string
}

// NewDocument precomputes the lowercase forms search matches against.
func NewDocument(sum Summary, text string) Document {
	return Document{
		Summary:       sum,
		Text:          text,
		foldedText:    strings.ToLower(text),
		foldedPreview: strings.ToLower(sum.Preview),
	}
}

func (d Document) FoldedText() string    { return d.foldedText }
func (d Document) FoldedPreview() string { return d.foldedPreview }

type SearchResult struct {
	ID      string  `json:"id"`
	Summary Summary `json:"summary"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

type Stats struct {
	MessageCount      int       `json:"message_count"`
	HumanMessages     int       `json:"human_messages"`
	AssistantMessages int       `json:"assistant_messages"`
	FirstSeen         time.Time `json:"first_seen,omitzero"`
	LastSeen          time.Time `json:"last_seen,omitzero"`
	DurationSeconds   int64     `json:"duration_seconds"`
}

// ContextSummary is the condensed view of one session.
type ContextSummary struct {
	ID             string   `json:"id"`
	ProjectPath    string   `json:"project_path,omitempty"`
	InitialRequest string   `json:"initial_request,omitempty"`
	Stats          Stats    `json:"stats"`
	FilesMentioned []string `json:"files_mentioned"`
	KeyTerms       []string `json:"key_terms"`
}

// FirstHuman returns the first human message carrying text.
func (s Session) FirstHuman() (Message, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleHuman && strings.TrimSpace(m.Content) != "" {
			return m, true
		}
	}
	return Message{}, false
}

// NewSummary projects a fully parsed session.
func NewSummary(s Session, previewChars int) Summary {
	preview := NoPreview
	if m, ok := s.FirstHuman(); ok {
		preview = Preview(m.Content, previewChars)
	}
	return Summary{
		ID:           s.ID,
		ProjectPath:  s.ProjectPath,
		FirstSeen:    s.FirstSeen,
		LastSeen:     s.LastSeen,
		MessageCount: len(s.Messages),
		Preview:      preview,
		FilePath:     s.FilePath,
	}
}

// Text joins every message's content, one message per line.
func (s Session) Text() string {
	var b strings.Builder
	for _, m := range s.Messages {
		if m.Content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// Preview collapses whitespace and truncates to max grapheme clusters.
func Preview(text string, max int) string {
	return Truncate(strings.Join(strings.Fields(text), " "), max)
}

// Truncate cuts text to at most max grapheme clusters, appending "..." when it cuts.
// max <= 0 disables truncation.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	state := -1
	rest := text
	n := 0
	for len(rest) > 0 {
		if n == max {
			return text[:len(text)-len(rest)] + "..."
		}
		_, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		n++
	}
	return text
}

var archiveSuffixes = []string{".gz", ".zst", ".jsonl", ".json"}

// IDFromPath derives the session identifier from the file name.
func IDFromPath(path string) string {
	stem := filepath.Base(path)
	for trimmed := true; trimmed; {
		trimmed = false
		for _, suffix := range archiveSuffixes {
			if strings.HasSuffix(strings.ToLower(stem), suffix) && len(stem) > len(suffix) {
				stem = stem[:len(stem)-len(suffix)]
				trimmed = true
			}
		}
	}
	if stem == "" || stem == "." || isArchiveSuffix(stem) {
		sum := sha256.Sum256([]byte(path))
		return hex.EncodeToString(sum[:8])
	}
	return stem
}

func isArchiveSuffix(s string) bool {
	for _, suffix := range archiveSuffixes {
		if strings.EqualFold(s, suffix) {
			return true
		}
	}
	return false
}

// ProjectFromPath returns the directory segment after "projects", Claude Code's layout.
func ProjectFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Dir(path)), "/")
	for i, p := range parts {
		if p == "projects" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
