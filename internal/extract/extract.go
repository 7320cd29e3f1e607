// Package extract condenses a full session into its initial request, stats, referenced
// files and key terms.
package extract

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/techmad220/claude-code-mcp/internal/session"
)

type Options struct {
	KeyTerms            int `yaml:"key_terms"`
	MinTermLength       int `yaml:"min_term_length"`
	MaxFiles            int `yaml:"max_files"`
	InitialRequestChars int `yaml:"initial_request_chars"`
}

func DefaultOptions() Options {
	return Options{
		KeyTerms:            15,
		MinTermLength:       3,
		MaxFiles:            20,
		InitialRequestChars: 500,
	}
}

type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	d := DefaultOptions()
	if opts.KeyTerms <= 0 {
		opts.KeyTerms = d.KeyTerms
	}
	if opts.MinTermLength <= 0 {
		opts.MinTermLength = d.MinTermLength
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = d.MaxFiles
	}
	return &Extractor{opts: opts}
}

// Summarize never fails; a session without messages yields zero fields.
func (e *Extractor) Summarize(s session.Session) session.ContextSummary {
	out := session.ContextSummary{
		ID:             s.ID,
		ProjectPath:    s.ProjectPath,
		Stats:          Stats(s),
		FilesMentioned: []string{},
		KeyTerms:       []string{},
	}
	if m, ok := s.FirstHuman(); ok {
		out.InitialRequest = session.Truncate(strings.TrimSpace(m.Content), e.opts.InitialRequestChars)
	}

	texts := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		texts = append(texts, m.Content)
	}
	out.FilesMentioned = append(out.FilesMentioned, e.FileMentions(texts)...)
	out.KeyTerms = append(out.KeyTerms, e.KeyTerms(texts)...)
	return out
}

func Stats(s session.Session) session.Stats {
	st := session.Stats{
		MessageCount: len(s.Messages),
		FirstSeen:    s.FirstSeen,
		LastSeen:     s.LastSeen,
	}
	for _, m := range s.Messages {
		switch m.Role {
		case session.RoleHuman:
			st.HumanMessages++
		case session.RoleAssistant:
			st.AssistantMessages++
		}
	}
	if !s.FirstSeen.IsZero() && s.LastSeen.After(s.FirstSeen) {
		st.DurationSeconds = int64(s.LastSeen.Sub(s.FirstSeen).Seconds())
	}
	return st
}

// words lowercases text and splits it on anything that is not a letter or digit.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isAlnum(r) })
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "if": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true, "into": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true, "might": true,
	"must": true, "shall": true, "can": true, "need": true,
	"this": true, "that": true, "these": true, "those": true, "then": true, "than": true,
	"there": true, "here": true, "also": true, "just": true, "very": true, "too": true,
	"not": true, "only": true, "some": true, "such": true, "all": true, "each": true,
	"more": true, "most": true, "other": true, "same": true, "again": true, "once": true,
	"i": true, "we": true, "you": true, "he": true, "she": true, "it": true, "they": true,
	"me": true, "my": true, "your": true, "our": true, "its": true, "his": true, "her": true, "their": true,
	"what": true, "which": true, "who": true, "whom": true, "when": true, "where": true, "why": true, "how": true,
	"use": true, "using": true, "used": true, "let": true, "now": true, "about": true,
	"before": true, "after": true, "because": true, "while": true, "until": true, "through": true,
}

// KeyTerms ranks tokens by frequency, ties going to the earlier first occurrence.
func (e *Extractor) KeyTerms(texts []string) []string {
	type term struct {
		word  string
		count int
		first int
	}
	counts := map[string]*term{}
	var order []*term
	for _, text := range texts {
		for _, w := range words(text) {
			if utf8.RuneCountInString(w) < e.opts.MinTermLength || stopWords[w] {
				continue
			}
			if t, ok := counts[w]; ok {
				t.count++
				continue
			}
			t := &term{word: w, count: 1, first: len(order)}
			counts[w] = t
			order = append(order, t)
		}
	}

	slices.SortStableFunc(order, func(a, b *term) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return a.first - b.first
	})

	out := make([]string, 0, min(len(order), e.opts.KeyTerms))
	for _, t := range order[:min(len(order), e.opts.KeyTerms)] {
		out = append(out, t.word)
	}
	return out
}

var fileExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".go", ".py", ".rs", ".java", ".rb", ".php", ".cs", ".cpp", ".c", ".h",
	".swift", ".kt", ".scala", ".vue", ".svelte", ".md", ".yaml", ".yml", ".json", ".jsonl", ".toml",
	".sql", ".sh", ".txt", ".html", ".css", ".lock", ".mod", ".sum", ".env", ".ini", ".xml", ".proto",
}

// FileMentions collects distinct path-like tokens in first-occurrence order.
func (e *Extractor) FileMentions(texts []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, text := range texts {
		for _, w := range strings.Fields(text) {
			w = cleanToken(w)
			if seen[w] || !IsPathLike(w) {
				continue
			}
			seen[w] = true
			out = append(out, w)
			if len(out) == e.opts.MaxFiles {
				return out
			}
		}
	}
	return out
}

func cleanToken(w string) string {
	w = strings.TrimLeft(w, "\"'`([{<")
	return strings.TrimRight(w, "\"'`)]}>,;:!?.")
}

// IsPathLike accepts tokens that look like file or directory references: paths with a
// separator, or bare names ending in a known source or config extension. URLs are rejected.
func IsPathLike(w string) bool {
	if w == "" || strings.Contains(w, "://") || !strings.ContainsFunc(w, isAlnum) {
		return false
	}
	if seps := strings.Count(w, "/") + strings.Count(w, `\`); seps > 0 {
		if seps >= 2 || strings.HasPrefix(w, "/") || strings.HasPrefix(w, "./") || strings.HasPrefix(w, "~/") {
			return true
		}
		last := w[max(strings.LastIndex(w, "/"), strings.LastIndex(w, `\`))+1:]
		if last == "" || strings.Contains(last, ".") {
			return true
		}
	}
	lower := strings.ToLower(w)
	for _, ext := range fileExtensions {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) && lower[len(lower)-len(ext)-1] != '.' {
			return true
		}
	}
	return false
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
