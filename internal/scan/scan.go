// Package scan enumerates candidate transcript files under a set of archive roots.
package scan

import (
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Options controls which files count as candidates.
type Options struct {
	MaxDepth   int      `yaml:"max_depth"`
	Extensions []string `yaml:"extensions"`
	SkipDirs   []string `yaml:"skip_dirs"`
	SkipFiles  []string `yaml:"skip_files"`
}

// DefaultOptions matches the layout Claude Code writes under ~/.claude.
func DefaultOptions() Options {
	return Options{
		MaxDepth:   6,
		Extensions: []string{".jsonl", ".json"},
		SkipDirs:   []string{"todos", "statsig", "shell-snapshots", "plugins", "ide", "node_modules", ".git"},
		SkipFiles:  []string{"settings.json", "settings.local.json", ".credentials.json", "config.json"},
	}
}

// compressed suffixes that may follow a candidate extension.
var compressedSuffixes = []string{".gz", ".zst"}

// DefaultRoots returns the per-platform locations Claude Code stores transcripts in.
func DefaultRoots() []string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return []string{filepath.Join(dir, "projects")}
	}
	var roots []string
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".claude", "projects"))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		roots = append(roots, filepath.Join(cfg, "claude", "projects"))
	}
	return roots
}

type Scanner struct {
	roots []string
	opts  Options
}

func New(roots []string, opts Options) *Scanner {
	var uniq []string
	seen := map[string]bool{}
	for _, r := range roots {
		clean := filepath.Clean(r)
		if r == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		uniq = append(uniq, clean)
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultOptions().Extensions
	}
	return &Scanner{roots: uniq, opts: opts}
}

func (s *Scanner) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Paths yields candidate files in lexical walk order. Each call starts a fresh walk.
// Unreadable or missing directories are silently skipped.
func (s *Scanner) Paths() iter.Seq[string] {
	return func(yield func(string) bool) {
		visited := map[string]bool{}
		for _, root := range s.roots {
			if !s.walk(root, 0, visited, yield) {
				return
			}
		}
	}
}

// walk returns false once yield asked to stop.
func (s *Scanner) walk(root string, baseDepth int, visited map[string]bool, yield func(string) bool) bool {
	// Walk the resolved directory so symlinked roots are traversed, not reported as files.
	if real, err := filepath.EvalSymlinks(root); err == nil {
		if visited[real] {
			return true
		}
		visited[real] = true
		root = real
	}

	stopped := false
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		depth := baseDepth + relDepth(root, path)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if s.skipDir(d.Name()) || (s.opts.MaxDepth > 0 && depth >= s.opts.MaxDepth) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				return nil
			}
			if info.IsDir() {
				if s.skipDir(d.Name()) || (s.opts.MaxDepth > 0 && depth >= s.opts.MaxDepth) {
					return nil
				}
				if !s.walk(path, depth, visited, yield) {
					stopped = true
					return fs.SkipAll
				}
				return nil
			}
		}

		if !s.IsCandidate(d.Name()) {
			return nil
		}
		if !yield(path) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	return !stopped
}

// IsCandidate reports whether a file name looks like a transcript. It never opens the file.
func (s *Scanner) IsCandidate(name string) bool {
	for _, skip := range s.opts.SkipFiles {
		if name == skip {
			return false
		}
	}
	lower := strings.ToLower(name)
	for _, suffix := range compressedSuffixes {
		lower = strings.TrimSuffix(lower, suffix)
	}
	for _, ext := range s.opts.Extensions {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return true
		}
	}
	return false
}

func (s *Scanner) skipDir(name string) bool {
	for _, skip := range s.opts.SkipDirs {
		if name == skip {
			return true
		}
	}
	return false
}

func relDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// ReadFile returns the raw bytes of a transcript, decompressing .gz and .zst files.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return io.ReadAll(f)
	}
}
