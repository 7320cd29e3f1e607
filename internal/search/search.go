// Package search ranks indexed sessions against a free-text query.
package search

import (
	"errors"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/techmad220/claude-code-mcp/internal/session"
)

var ErrInvalidQuery = errors.New("query must contain at least one term")

type Options struct {
	PreviewWeight float64 `yaml:"preview_weight"`
	BodyWeight    float64 `yaml:"body_weight"`
	PhraseBonus   float64 `yaml:"phrase_bonus"`
	OrderBonus    float64 `yaml:"order_bonus"`
	SnippetWindow int     `yaml:"snippet_window"` // runes each side of the first hit
}

func DefaultOptions() Options {
	return Options{
		PreviewWeight: 2.0,
		BodyWeight:    1.0,
		PhraseBonus:   0.5,
		OrderBonus:    0.25,
		SnippetWindow: 60,
	}
}

type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	d := DefaultOptions()
	if opts.PreviewWeight <= 0 {
		opts.PreviewWeight = d.PreviewWeight
	}
	if opts.BodyWeight <= 0 {
		opts.BodyWeight = d.BodyWeight
	}
	if opts.SnippetWindow <= 0 {
		opts.SnippetWindow = d.SnippetWindow
	}
	return &Engine{opts: opts}
}

// Terms lowercases the query, splits it on whitespace, trims surrounding punctuation,
// and drops duplicates while keeping query order.
func Terms(query string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(query)) {
		t := strings.TrimFunc(f, unicode.IsPunct)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

// Search scores every document and returns at most limit hits. Documents matching no
// term are never returned, even when fewer than limit remain.
func (e *Engine) Search(docs []session.Document, query string, limit int) ([]session.SearchResult, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, ErrInvalidQuery
	}

	results := []session.SearchResult{}
	for _, d := range docs {
		score := e.Score(d, terms)
		if score == 0 {
			continue
		}
		results = append(results, session.SearchResult{
			ID:      d.Summary.ID,
			Summary: d.Summary,
			Score:   score,
			Snippet: e.Snippet(d, terms),
		})
	}

	slices.SortStableFunc(results, func(a, b session.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if c := b.Summary.LastSeen.Compare(a.Summary.LastSeen); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	limit = max(0, min(limit, len(results)))
	return results[:limit], nil
}

// Covers reports whether every term occurs in the document's preview or index text.
func Covers(d session.Document, terms []string) bool {
	preview, text := d.FoldedPreview(), d.FoldedText()
	for _, t := range terms {
		if !strings.Contains(preview, t) && !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

// Score is zero when no term occurs anywhere in the document.
func (e *Engine) Score(d session.Document, terms []string) float64 {
	preview, text := d.FoldedPreview(), d.FoldedText()

	var sum float64
	for _, t := range terms {
		switch {
		case strings.Contains(preview, t):
			sum += e.opts.PreviewWeight
		case strings.Contains(text, t):
			sum += e.opts.BodyWeight
		}
	}
	if sum == 0 {
		return 0
	}
	score := sum / (float64(len(terms)) * e.opts.PreviewWeight)

	if len(terms) > 1 {
		phrase := strings.Join(terms, " ")
		if strings.Contains(preview, phrase) || strings.Contains(text, phrase) {
			score += e.opts.PhraseBonus
		} else {
			score += e.opts.OrderBonus * max(inOrder(text, terms), fuzzyRun(preview, terms))
		}
	}
	return score
}

// inOrder is the fraction of terms that appear in query order in text.
func inOrder(text string, terms []string) float64 {
	pos, n := 0, 0
	for _, t := range terms {
		i := strings.Index(text[pos:], t)
		if i < 0 {
			continue
		}
		n++
		pos += i + len(t)
	}
	return float64(n) / float64(len(terms))
}

// fuzzyRun rewards the query's characters appearing in order close together in the preview,
// normalized to (0, 1].
func fuzzyRun(preview string, terms []string) float64 {
	if preview == "" {
		return 0
	}
	matches := fuzzy.Find(strings.Join(terms, ""), []string{preview})
	if len(matches) == 0 || len(matches[0].MatchedIndexes) == 0 {
		return 0
	}
	idx := matches[0].MatchedIndexes
	span := idx[len(idx)-1] - idx[0] + 1
	return min(1, float64(len(idx))/float64(span))
}

// Snippet returns a word-aligned window around the earliest term hit in the index text,
// or the preview when the hit is only in the preview.
func (e *Engine) Snippet(d session.Document, terms []string) string {
	folded := d.FoldedText()
	at, length := -1, 0
	for _, t := range terms {
		if i := strings.Index(folded, t); i >= 0 && (at < 0 || i < at) {
			at, length = i, len(t)
		}
	}
	if at < 0 {
		return d.Summary.Preview
	}

	// Lowercasing maps rune to rune, so rune offsets in the folded text hold in the original.
	runes := []rune(d.Text)
	hitStart := utf8.RuneCountInString(folded[:at])
	hitEnd := hitStart + utf8.RuneCountInString(folded[at:at+length])
	w := e.opts.SnippetWindow

	start := max(0, hitStart-w)
	end := min(len(runes), hitEnd+w)
	for limit := max(0, start-w); start > limit && !unicode.IsSpace(runes[start-1]); {
		start--
	}
	for limit := min(len(runes), end+w); end < limit && !unicode.IsSpace(runes[end]); {
		end++
	}

	var prefix, suffix string
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	return prefix + strings.Join(strings.Fields(string(runes[start:end])), " ") + suffix
}
