// Package registry owns every session the process knows about.
//
// The archive is indexed once, on first access, into lightweight summaries plus bounded
// search text. Full transcripts are parsed on demand and cached for the process lifetime.
package registry

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/techmad220/claude-code-mcp/internal/parse"
	"github.com/techmad220/claude-code-mcp/internal/scan"
	"github.com/techmad220/claude-code-mcp/internal/session"
)

var ErrNotFound = errors.New("session not found")

// Source yields candidate transcript paths in a stable order.
type Source interface {
	Paths() iter.Seq[string]
}

// Parser turns raw bytes into sessions. *parse.Parser satisfies it.
type Parser interface {
	Parse(data []byte, path string) (session.Session, error)
	Skim(data []byte, path string) (session.Document, error)
}

type Options struct {
	Workers int `yaml:"workers"`
	// ReadFile loads a transcript; defaults to scan.ReadFile.
	ReadFile func(path string) ([]byte, error) `yaml:"-"`
}

func DefaultOptions() Options {
	return Options{Workers: 8}
}

// BuildStats describes the one indexing pass.
type BuildStats struct {
	Files      int            `json:"files"`
	Indexed    int            `json:"indexed"`
	Empty      int            `json:"empty"`
	ReadErrors int            `json:"read_errors"`
	Skipped    map[string]int `json:"skipped"`
	Collisions int            `json:"collisions"`
	Duration   time.Duration  `json:"duration"`
}

type Registry struct {
	source  Source
	parser  Parser
	logger  *log.Logger
	workers int
	read    func(string) ([]byte, error)

	once   sync.Once
	docs   []session.Document // LastSeen desc, then ID asc
	byID   map[string]int
	stats  BuildStats
	builds int

	mu    sync.RWMutex
	full  map[string]session.Session
	loads singleflight.Group
}

func New(source Source, parser Parser, opts Options, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	read := opts.ReadFile
	if read == nil {
		read = scan.ReadFile
	}
	return &Registry{
		source:  source,
		parser:  parser,
		logger:  logger,
		workers: opts.Workers,
		read:    read,
		full:    map[string]session.Session{},
	}
}

type skimmed struct {
	path string
	doc  session.Document
	err  error
}

func (r *Registry) ensureBuilt() {
	r.once.Do(r.build)
}

func (r *Registry) build() {
	start := time.Now()
	r.builds++
	paths := slices.Collect(r.source.Paths())
	results := make([]skimmed, len(paths))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = r.skim(path)
			return nil
		})
	}
	_ = g.Wait()

	stats := BuildStats{Files: len(paths), Skipped: map[string]int{}}
	byID := make(map[string]int, len(results))
	docs := make([]session.Document, 0, len(results))
	for _, res := range results {
		if res.err != nil {
			var perr *parse.Error
			if errors.As(res.err, &perr) {
				stats.Skipped[perr.Kind.String()]++
			} else {
				stats.ReadErrors++
			}
			r.logger.Debug("skipping file", "path", res.path, "err", res.err)
			continue
		}
		id := res.doc.Summary.ID
		if _, dup := byID[id]; dup {
			stats.Collisions++
			r.logger.Debug("duplicate session id, keeping first", "id", id, "path", res.path)
			continue
		}
		byID[id] = len(docs)
		docs = append(docs, res.doc)
		if res.doc.Summary.MessageCount == 0 {
			stats.Empty++
		}
	}

	slices.SortStableFunc(docs, func(a, b session.Document) int {
		if c := b.Summary.LastSeen.Compare(a.Summary.LastSeen); c != 0 {
			return c
		}
		if a.Summary.ID < b.Summary.ID {
			return -1
		}
		if a.Summary.ID > b.Summary.ID {
			return 1
		}
		return 0
	})
	for i, d := range docs {
		byID[d.Summary.ID] = i
	}

	stats.Indexed = len(docs)
	stats.Duration = time.Since(start)
	r.docs, r.byID, r.stats = docs, byID, stats
	r.logger.Info("indexed sessions",
		"files", stats.Files,
		"indexed", stats.Indexed,
		"skipped", stats.Files-stats.Indexed-stats.Collisions,
		"duration", stats.Duration.Round(time.Millisecond))
}

func (r *Registry) skim(path string) skimmed {
	data, err := r.read(path)
	if err != nil {
		return skimmed{path: path, err: err}
	}
	doc, err := r.parser.Skim(data, path)
	if err != nil {
		return skimmed{path: path, err: err}
	}
	if doc.Summary.LastSeen.IsZero() {
		doc.Summary.LastSeen = modTime(path)
	}
	return skimmed{path: path, doc: doc}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime().UTC()
}

// List returns up to limit summaries, most recent first. Zero-message sessions are included.
func (r *Registry) List(limit int) []session.Summary {
	r.ensureBuilt()
	limit = max(0, min(limit, len(r.docs)))
	out := make([]session.Summary, 0, limit)
	for _, d := range r.docs[:limit] {
		out = append(out, d.Summary)
	}
	return out
}

func (r *Registry) AllSummaries() []session.Summary {
	r.ensureBuilt()
	return r.List(len(r.docs))
}

// Documents returns the searchable sessions, in list order. Sessions without messages are omitted.
func (r *Registry) Documents() []session.Document {
	r.ensureBuilt()
	out := make([]session.Document, 0, len(r.docs))
	for _, d := range r.docs {
		if d.Summary.MessageCount > 0 {
			out = append(out, d)
		}
	}
	return out
}

// Deepen returns docs with full-transcript text swapped in for every truncated document
// need rejects. Sessions that fail to load keep their bounded text.
func (r *Registry) Deepen(docs []session.Document, need func(session.Document) bool) []session.Document {
	out := slices.Clone(docs)
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, d := range out {
		if !d.Truncated || !need(d) {
			continue
		}
		g.Go(func() error {
			s, err := r.Full(d.Summary.ID)
			if err != nil {
				r.logger.Debug("keeping bounded text", "id", d.Summary.ID, "err", err)
				return nil
			}
			out[i] = session.NewDocument(d.Summary, s.Text())
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Registry) Summary(id string) (session.Summary, error) {
	r.ensureBuilt()
	i, ok := r.byID[id]
	if !ok {
		return session.Summary{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.docs[i].Summary, nil
}

// Full returns the complete session, parsing its file on first request.
// Concurrent first requests for the same id share one parse.
func (r *Registry) Full(id string) (session.Session, error) {
	sum, err := r.Summary(id)
	if err != nil {
		return session.Session{}, err
	}

	r.mu.RLock()
	s, ok := r.full[id]
	r.mu.RUnlock()
	if ok {
		return s.Clone(), nil
	}

	v, err, _ := r.loads.Do(id, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.full[id]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		data, err := r.read(sum.FilePath)
		if err != nil {
			r.logger.Debug("session file unreadable", "id", id, "path", sum.FilePath, "err", err)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s, err := r.parser.Parse(data, sum.FilePath)
		if err != nil {
			r.logger.Debug("session file no longer parses", "id", id, "path", sum.FilePath, "err", err)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if s.LastSeen.IsZero() {
			s.LastSeen = sum.LastSeen
		}
		r.mu.Lock()
		r.full[id] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return session.Session{}, err
	}
	return v.(session.Session).Clone(), nil
}

// Stats reports the indexing pass, running it if needed.
func (r *Registry) Stats() BuildStats {
	r.ensureBuilt()
	st := r.stats
	st.Skipped = make(map[string]int, len(r.stats.Skipped))
	for k, v := range r.stats.Skipped {
		st.Skipped[k] = v
	}
	return st
}
