package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/techmad220/claude-code-mcp/internal/extract"
	"github.com/techmad220/claude-code-mcp/internal/parse"
	"github.com/techmad220/claude-code-mcp/internal/registry"
	"github.com/techmad220/claude-code-mcp/internal/scan"
	"github.com/techmad220/claude-code-mcp/internal/search"
)

// ClaudeConfig holds Claude Code CLI settings.
type ClaudeConfig struct {
	Path string `yaml:"path"`
}

// ScanConfig controls archive discovery. Empty Roots means the platform defaults.
type ScanConfig struct {
	scan.Options `yaml:",inline"`

	Roots   []string `yaml:"roots,omitempty"`
	Workers int      `yaml:"workers"`
}

// IndexConfig bounds what the first indexing pass keeps per session.
type IndexConfig struct {
	IndexBytes   int `yaml:"index_bytes"`
	PreviewChars int `yaml:"preview_chars"`
}

type SearchConfig struct {
	registry.Limits `yaml:",inline"`
	search.Options  `yaml:",inline"`
}

// Config holds claude-code-mcp configuration.
type Config struct {
	Version string           `yaml:"version"`
	Scan    ScanConfig       `yaml:"scan"`
	Parse   parse.FieldPaths `yaml:"parse"`
	Index   IndexConfig      `yaml:"index"`
	List    registry.Limits  `yaml:"list"`
	Search  SearchConfig     `yaml:"search"`
	Context extract.Options  `yaml:"context"`
	Claude  ClaudeConfig     `yaml:"claude,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	po := parse.DefaultOptions()
	return Config{
		Version: "1",
		Scan: ScanConfig{
			Options: scan.DefaultOptions(),
			Workers: registry.DefaultOptions().Workers,
		},
		Parse: parse.DefaultFieldPaths(),
		Index: IndexConfig{
			IndexBytes:   po.IndexBytes,
			PreviewChars: po.PreviewChars,
		},
		List: registry.DefaultListLimits(),
		Search: SearchConfig{
			Limits:  registry.DefaultSearchLimits(),
			Options: search.DefaultOptions(),
		},
		Context: extract.DefaultOptions(),
		Claude: ClaudeConfig{
			Path: "claude",
		},
	}
}

// Roots returns the configured archive roots, or the platform defaults.
func (c Config) Roots() []string {
	if len(c.Scan.Roots) > 0 {
		return c.Scan.Roots
	}
	return scan.DefaultRoots()
}

func (c Config) ParseOptions() parse.Options {
	return parse.Options{
		Fields:       c.Parse,
		IndexBytes:   c.Index.IndexBytes,
		PreviewChars: c.Index.PreviewChars,
	}
}

func (c Config) RegistryOptions() registry.Options {
	return registry.Options{Workers: c.Scan.Workers}
}

func (c Config) ServiceOptions() registry.ServiceOptions {
	return registry.ServiceOptions{
		List:    c.List,
		Search:  c.Search.Limits,
		Engine:  search.New(c.Search.Options),
		Extract: extract.New(c.Context),
	}
}

// Store represents a loaded home directory.
type Store struct {
	Home   string
	Config Config
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// Home returns the config home, respecting the CLAUDE_CODE_MCP_HOME env var.
func Home() string {
	if h := os.Getenv("CLAUDE_CODE_MCP_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".claude-code-mcp")
	}
	return filepath.Join(home, ".claude-code-mcp")
}

// Init creates the home directory and writes a default config.yaml.
func Init(home string, force bool) error {
	cfgPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", home, err)
	}
	s := &Store{Home: home, Config: DefaultConfig()}
	return s.SaveConfig()
}

// Load reads config.yaml from home. A missing file yields the defaults so the server
// starts with zero setup; missing fields are filled from defaults.
func Load(home string) (*Store, error) {
	cfg := DefaultConfig()
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		return &Store{Home: home, Config: cfg}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config at %s: %w", cfgPath, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return &Store{Home: home, Config: cfg}, nil
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(s.Home, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Home, err)
	}
	if err := os.WriteFile(s.Path("config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var intKeys = map[string]func(*Config) *int{
	"scan.max_depth":                func(c *Config) *int { return &c.Scan.MaxDepth },
	"scan.workers":                  func(c *Config) *int { return &c.Scan.Workers },
	"index.index_bytes":             func(c *Config) *int { return &c.Index.IndexBytes },
	"index.preview_chars":           func(c *Config) *int { return &c.Index.PreviewChars },
	"list.default_limit":            func(c *Config) *int { return &c.List.Default },
	"list.max_limit":                func(c *Config) *int { return &c.List.Max },
	"search.default_limit":          func(c *Config) *int { return &c.Search.Default },
	"search.max_limit":              func(c *Config) *int { return &c.Search.Max },
	"search.snippet_window":         func(c *Config) *int { return &c.Search.SnippetWindow },
	"context.key_terms":             func(c *Config) *int { return &c.Context.KeyTerms },
	"context.min_term_length":       func(c *Config) *int { return &c.Context.MinTermLength },
	"context.max_files":             func(c *Config) *int { return &c.Context.MaxFiles },
	"context.initial_request_chars": func(c *Config) *int { return &c.Context.InitialRequestChars },
}

// ConfigKeys lists every key SetConfigValue accepts.
func ConfigKeys() []string {
	keys := []string{"claude.path", "scan.roots"}
	for k := range intKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys[2:])
	return keys
}

// SetConfigValue sets a config value by dot-path key (e.g. "claude.path").
func (s *Store) SetConfigValue(key, value string) error {
	switch key {
	case "claude.path":
		s.Config.Claude.Path = value
	case "scan.roots":
		s.Config.Scan.Roots = nil
		for _, r := range strings.Split(value, ",") {
			if r = strings.TrimSpace(r); r != "" {
				s.Config.Scan.Roots = append(s.Config.Scan.Roots, r)
			}
		}
	default:
		field, ok := intKeys[key]
		if !ok {
			return fmt.Errorf("unknown config key: %s\nValid keys: %s", key, strings.Join(ConfigKeys(), ", "))
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		*field(&s.Config) = n
	}
	return s.SaveConfig()
}

// Path resolves a path within the home directory.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// CheckHealth reports config and archive problems. It never fails.
func CheckHealth(home string) []Issue {
	var issues []Issue

	cfg := DefaultConfig()
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		issues = append(issues, Issue{"warning", fmt.Sprintf("no config at %s, using defaults", cfgPath)})
	case err != nil:
		issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
			return issues
		}
	}

	if cfg.List.Default > cfg.List.Max {
		issues = append(issues, Issue{"warning", fmt.Sprintf("list.default_limit %d exceeds list.max_limit %d", cfg.List.Default, cfg.List.Max)})
	}
	if cfg.Search.Default > cfg.Search.Max {
		issues = append(issues, Issue{"warning", fmt.Sprintf("search.default_limit %d exceeds search.max_limit %d", cfg.Search.Default, cfg.Search.Max)})
	}

	found := 0
	for _, root := range cfg.Roots() {
		info, err := os.Stat(root)
		switch {
		case err != nil:
			issues = append(issues, Issue{"warning", fmt.Sprintf("archive root not found: %s", root)})
		case !info.IsDir():
			issues = append(issues, Issue{"error", fmt.Sprintf("archive root is not a directory: %s", root)})
		default:
			found++
		}
	}
	if found == 0 {
		issues = append(issues, Issue{"error", "no archive root exists; sessions will be empty"})
	}

	return issues
}
