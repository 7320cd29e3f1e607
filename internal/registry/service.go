package registry

import (
	"github.com/techmad220/claude-code-mcp/internal/extract"
	"github.com/techmad220/claude-code-mcp/internal/search"
	"github.com/techmad220/claude-code-mcp/internal/session"
)

// ErrInvalidQuery is returned for queries without a single search term.
var ErrInvalidQuery = search.ErrInvalidQuery

// Limits bounds a result count requested by a client.
type Limits struct {
	Default int `yaml:"default_limit"`
	Max     int `yaml:"max_limit"`
}

// Clamp applies the default when limit is nil and clamps to [0, Max].
func (l Limits) Clamp(limit *int) int {
	n := l.Default
	if limit != nil {
		n = *limit
	}
	return max(0, min(n, l.Max))
}

func DefaultListLimits() Limits   { return Limits{Default: 20, Max: 100} }
func DefaultSearchLimits() Limits { return Limits{Default: 10, Max: 50} }

// Service is the query surface the transport layer calls.
type Service struct {
	reg          *Registry
	engine       *search.Engine
	extractor    *extract.Extractor
	listLimits   Limits
	searchLimits Limits
}

type ServiceOptions struct {
	List    Limits
	Search  Limits
	Engine  *search.Engine
	Extract *extract.Extractor
}

func NewService(reg *Registry, opts ServiceOptions) *Service {
	if opts.List.Max <= 0 {
		opts.List = DefaultListLimits()
	}
	if opts.Search.Max <= 0 {
		opts.Search = DefaultSearchLimits()
	}
	if opts.Engine == nil {
		opts.Engine = search.New(search.DefaultOptions())
	}
	if opts.Extract == nil {
		opts.Extract = extract.New(extract.DefaultOptions())
	}
	return &Service{
		reg:          reg,
		engine:       opts.Engine,
		extractor:    opts.Extract,
		listLimits:   opts.List,
		searchLimits: opts.Search,
	}
}

func (s *Service) Registry() *Registry { return s.reg }

func (s *Service) ListSessions(limit *int) ([]session.Summary, error) {
	return s.reg.List(s.listLimits.Clamp(limit)), nil
}

func (s *Service) SearchSessions(query string, limit *int) ([]session.SearchResult, error) {
	terms := search.Terms(query)
	if len(terms) == 0 {
		return nil, ErrInvalidQuery
	}
	docs := s.reg.Deepen(s.reg.Documents(), func(d session.Document) bool {
		return !search.Covers(d, terms)
	})
	return s.engine.Search(docs, query, s.searchLimits.Clamp(limit))
}

func (s *Service) GetSession(id string) (session.Session, error) {
	return s.reg.Full(id)
}

func (s *Service) GetSessionContext(id string) (session.ContextSummary, error) {
	full, err := s.reg.Full(id)
	if err != nil {
		return session.ContextSummary{}, err
	}
	return s.extractor.Summarize(full), nil
}
