package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/techmad220/claude-code-mcp/internal/registry"
	"github.com/techmad220/claude-code-mcp/internal/session"
	"github.com/techmad220/claude-code-mcp/internal/ui"
)

// Server exposes the session archive as MCP tools.
type Server struct {
	svc    *registry.Service
	server *mcp.Server
	logger *log.Logger
}

// NewServer creates a new claude-code-mcp MCP server.
func NewServer(svc *registry.Service, version string, logger *log.Logger) *Server {
	if logger == nil {
		logger = ui.Discard()
	}
	s := &Server{svc: svc, logger: logger}

	impl := &mcp.Implementation{
		Name:    "claude-code-mcp",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "list_sessions",
		Description: "List recent Claude Code sessions, most recent first. Returns id, project path, " +
			"time range, message count and a preview of the first request. Use get_session or " +
			"get_session_context with an id to drill down.",
	}, s.handleListSessions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_sessions",
		Description: "Fuzzy-search past Claude Code sessions by free text. Matches in the opening request " +
			"rank above matches deeper in the conversation; sessions matching no term are never returned.",
	}, s.handleSearchSessions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_session",
		Description: "Get the full transcript of a Claude Code session: every message with its role and timestamp. Can be large.",
	}, s.handleGetSession)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "get_session_context",
		Description: "Get a condensed summary of a session: the initial request, message stats, files mentioned " +
			"and key terms. Prefer this over get_session to decide whether a session is relevant.",
	}, s.handleGetSessionContext)
}

// ListSessionsArgs defines input for list_sessions.
type ListSessionsArgs struct {
	Limit *int `json:"limit,omitempty" jsonschema:"Maximum number of sessions to return (default 20, max 100)"`
}

// SummaryView is a session summary as sent to the client.
type SummaryView struct {
	ID           string `json:"id"`
	ProjectPath  string `json:"project_path,omitempty"`
	FirstSeen    string `json:"first_seen,omitempty"`
	LastSeen     string `json:"last_seen,omitempty"`
	Recency      string `json:"recency,omitempty"` // Human-readable time (e.g., "2 days ago")
	MessageCount int    `json:"message_count"`
	Preview      string `json:"preview"`
}

type ListSessionsResult struct {
	Sessions []SummaryView `json:"sessions"`
	Count    int           `json:"count"`
	Message  string        `json:"message,omitempty"`
}

func (s *Server) handleListSessions(ctx context.Context, req *mcp.CallToolRequest, args ListSessionsArgs) (*mcp.CallToolResult, any, error) {
	s.logger.Debug("tool call", "tool", "list_sessions", "limit", derefOr(args.Limit, -1))
	sums, err := s.svc.ListSessions(args.Limit)
	if err != nil {
		return nil, nil, s.toolError(err, "")
	}

	out := ListSessionsResult{Sessions: []SummaryView{}}
	for _, sum := range sums {
		out.Sessions = append(out.Sessions, summaryView(sum))
	}
	out.Count = len(out.Sessions)
	if out.Count == 0 {
		out.Message = "No sessions found."
	}
	return nil, out, nil
}

// SearchSessionsArgs defines input for search_sessions.
type SearchSessionsArgs struct {
	Query string `json:"query,omitempty" jsonschema:"Free-text search query (required)"`
	Limit *int   `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10, max 50)"`
}

type SearchResultView struct {
	ID      string      `json:"id"`
	Score   float64     `json:"score"`
	Snippet string      `json:"snippet"`
	Session SummaryView `json:"session"`
}

type SearchSessionsResult struct {
	Query   string             `json:"query"`
	Results []SearchResultView `json:"results"`
	Count   int                `json:"count"`
	Message string             `json:"message,omitempty"`
}

func (s *Server) handleSearchSessions(ctx context.Context, req *mcp.CallToolRequest, args SearchSessionsArgs) (*mcp.CallToolResult, any, error) {
	s.logger.Debug("tool call", "tool", "search_sessions", "query", args.Query)
	results, err := s.svc.SearchSessions(args.Query, args.Limit)
	if err != nil {
		return nil, nil, s.toolError(err, "")
	}

	out := SearchSessionsResult{Query: args.Query, Results: []SearchResultView{}}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultView{
			ID:      r.ID,
			Score:   r.Score,
			Snippet: r.Snippet,
			Session: summaryView(r.Summary),
		})
	}
	out.Count = len(out.Results)
	if out.Count == 0 {
		out.Message = "No sessions matched the query."
	}
	return nil, out, nil
}

// SessionArgs defines input for get_session and get_session_context.
type SessionArgs struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"The session ID, as returned by list_sessions or search_sessions (required)"`
}

type MessageView struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

type SessionView struct {
	ID           string        `json:"id"`
	ProjectPath  string        `json:"project_path,omitempty"`
	Format       string        `json:"format,omitempty"`
	FirstSeen    string        `json:"first_seen,omitempty"`
	LastSeen     string        `json:"last_seen,omitempty"`
	MessageCount int           `json:"message_count"`
	Messages     []MessageView `json:"messages"`
}

func (s *Server) handleGetSession(ctx context.Context, req *mcp.CallToolRequest, args SessionArgs) (*mcp.CallToolResult, any, error) {
	s.logger.Debug("tool call", "tool", "get_session", "id", args.SessionID)
	if args.SessionID == "" {
		return nil, nil, errors.New("session_id parameter is required")
	}
	sess, err := s.svc.GetSession(args.SessionID)
	if err != nil {
		return nil, nil, s.toolError(err, args.SessionID)
	}

	out := SessionView{
		ID:           sess.ID,
		ProjectPath:  sess.ProjectPath,
		Format:       sess.Format,
		FirstSeen:    formatTime(sess.FirstSeen),
		LastSeen:     formatTime(sess.LastSeen),
		MessageCount: len(sess.Messages),
		Messages:     make([]MessageView, 0, len(sess.Messages)),
	}
	for _, m := range sess.Messages {
		out.Messages = append(out.Messages, MessageView{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: formatTime(m.Timestamp),
		})
	}
	return nil, out, nil
}

type StatsView struct {
	MessageCount      int    `json:"message_count"`
	HumanMessages     int    `json:"human_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	FirstSeen         string `json:"first_seen,omitempty"`
	LastSeen          string `json:"last_seen,omitempty"`
	DurationSeconds   int64  `json:"duration_seconds"`
}

type ContextView struct {
	ID             string    `json:"id"`
	ProjectPath    string    `json:"project_path,omitempty"`
	InitialRequest string    `json:"initial_request,omitempty"`
	Stats          StatsView `json:"stats"`
	FilesMentioned []string  `json:"files_mentioned"`
	KeyTerms       []string  `json:"key_terms"`
}

func (s *Server) handleGetSessionContext(ctx context.Context, req *mcp.CallToolRequest, args SessionArgs) (*mcp.CallToolResult, any, error) {
	s.logger.Debug("tool call", "tool", "get_session_context", "id", args.SessionID)
	if args.SessionID == "" {
		return nil, nil, errors.New("session_id parameter is required")
	}
	c, err := s.svc.GetSessionContext(args.SessionID)
	if err != nil {
		return nil, nil, s.toolError(err, args.SessionID)
	}

	out := ContextView{
		ID:             c.ID,
		ProjectPath:    c.ProjectPath,
		InitialRequest: c.InitialRequest,
		Stats: StatsView{
			MessageCount:      c.Stats.MessageCount,
			HumanMessages:     c.Stats.HumanMessages,
			AssistantMessages: c.Stats.AssistantMessages,
			FirstSeen:         formatTime(c.Stats.FirstSeen),
			LastSeen:          formatTime(c.Stats.LastSeen),
			DurationSeconds:   c.Stats.DurationSeconds,
		},
		FilesMentioned: c.FilesMentioned,
		KeyTerms:       c.KeyTerms,
	}
	return nil, out, nil
}

// toolError turns service errors into the messages clients see.
func (s *Server) toolError(err error, id string) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return fmt.Errorf("Session not found: %s", id)
	case errors.Is(err, registry.ErrInvalidQuery):
		return errors.New("Query parameter is required")
	default:
		s.logger.Error("tool failed", "err", err)
		return err
	}
}

func summaryView(sum session.Summary) SummaryView {
	v := SummaryView{
		ID:           sum.ID,
		ProjectPath:  sum.ProjectPath,
		FirstSeen:    formatTime(sum.FirstSeen),
		LastSeen:     formatTime(sum.LastSeen),
		MessageCount: sum.MessageCount,
		Preview:      sum.Preview,
	}
	if !sum.LastSeen.IsZero() {
		v.Recency = formatRelativeTime(sum.LastSeen)
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatRelativeTime formats a time as a human-readable relative string.
func formatRelativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Hour {
		mins := int(duration.Minutes())
		if mins <= 1 {
			return "just now"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	if days < 30 {
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("2006-01-02")
}

func derefOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
