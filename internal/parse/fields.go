package parse

// FieldPaths lists, in priority order, the gjson paths tried for each attribute.
// CLI versions disagree on field names, so these live in config rather than code.
type FieldPaths struct {
	Collections  []string `yaml:"collections"`
	Role         []string `yaml:"role"`
	Content      []string `yaml:"content"`
	Timestamp    []string `yaml:"timestamp"`
	Project      []string `yaml:"project"`
	SessionStart []string `yaml:"session_start"`
	SessionEnd   []string `yaml:"session_end"`
}

func DefaultFieldPaths() FieldPaths {
	return FieldPaths{
		Collections:  []string{"messages", "conversation", "chat_messages", "history", "transcript"},
		Role:         []string{"role", "message.role", "type", "sender", "author.role", "speaker"},
		Content:      []string{"content", "message.content", "text", "message.text", "parts"},
		Timestamp:    []string{"timestamp", "created_at", "createdAt", "time", "ts", "message.timestamp"},
		Project:      []string{"cwd", "project_path", "projectPath"},
		SessionStart: []string{"created_at", "createdAt", "started_at"},
		SessionEnd:   []string{"updated_at", "updatedAt", "ended_at"},
	}
}

// withDefaults fills empty lists so a partial config.yaml still parses everything.
func (f FieldPaths) withDefaults() FieldPaths {
	d := DefaultFieldPaths()
	if len(f.Collections) == 0 {
		f.Collections = d.Collections
	}
	if len(f.Role) == 0 {
		f.Role = d.Role
	}
	if len(f.Content) == 0 {
		f.Content = d.Content
	}
	if len(f.Timestamp) == 0 {
		f.Timestamp = d.Timestamp
	}
	if len(f.Project) == 0 {
		f.Project = d.Project
	}
	if len(f.SessionStart) == 0 {
		f.SessionStart = d.SessionStart
	}
	if len(f.SessionEnd) == 0 {
		f.SessionEnd = d.SessionEnd
	}
	return f
}
