package scan

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// touch creates a file (and its parents) under root.
func touch(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// tempRoot resolves symlinks so yielded paths can be compared directly.
func tempRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func relPaths(t *testing.T, root string, s *Scanner) []string {
	t.Helper()
	var out []string
	for p := range s.Paths() {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestPaths_CandidatesOnly(t *testing.T) {
	root := tempRoot(t)
	touch(t, root, "proj-a/one.jsonl", "{}")
	touch(t, root, "proj-a/two.json", "{}")
	touch(t, root, "proj-a/notes.txt", "x")
	touch(t, root, "proj-b/three.jsonl.gz", "")
	touch(t, root, "proj-b/settings.json", "{}")
	touch(t, root, "todos/four.json", "{}")

	got := relPaths(t, root, New([]string{root}, DefaultOptions()))
	want := []string{"proj-a/one.jsonl", "proj-a/two.json", "proj-b/three.jsonl.gz"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
}

func TestPaths_StableAndRestartable(t *testing.T) {
	root := tempRoot(t)
	for _, name := range []string{"c.jsonl", "a.jsonl", "b/d.jsonl", "b.jsonl"} {
		touch(t, root, name, "{}")
	}
	s := New([]string{root}, DefaultOptions())
	first := relPaths(t, root, s)
	second := relPaths(t, root, s)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("scan order changed between runs:\n%s", diff)
	}
	if len(first) != 4 {
		t.Errorf("expected 4 paths, got %v", first)
	}
}

func TestPaths_MaxDepth(t *testing.T) {
	root := tempRoot(t)
	touch(t, root, "a.jsonl", "{}")
	touch(t, root, "x/b.jsonl", "{}")
	touch(t, root, "x/y/c.jsonl", "{}")

	opts := DefaultOptions()
	opts.MaxDepth = 2
	got := relPaths(t, root, New([]string{root}, opts))
	want := []string{"a.jsonl", "x/b.jsonl"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("depth limit mismatch (-want +got):\n%s", diff)
	}
}

func TestPaths_MissingRootIsEmpty(t *testing.T) {
	s := New([]string{filepath.Join(t.TempDir(), "does-not-exist")}, DefaultOptions())
	if got := slices.Collect(s.Paths()); len(got) != 0 {
		t.Errorf("expected no paths, got %v", got)
	}
}

func TestPaths_DuplicateRootsWalkedOnce(t *testing.T) {
	root := tempRoot(t)
	touch(t, root, "a.jsonl", "{}")
	s := New([]string{root, root + string(filepath.Separator), root}, DefaultOptions())
	if got := slices.Collect(s.Paths()); len(got) != 1 {
		t.Errorf("expected 1 path, got %v", got)
	}
}

func TestPaths_EarlyStop(t *testing.T) {
	root := tempRoot(t)
	for _, name := range []string{"a.jsonl", "b.jsonl", "c.jsonl"} {
		touch(t, root, name, "{}")
	}
	n := 0
	for range New([]string{root}, DefaultOptions()).Paths() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("expected to stop after 2, got %d", n)
	}
}

func TestPaths_FollowsSymlinkedDirOnce(t *testing.T) {
	root := tempRoot(t)
	other := tempRoot(t)
	touch(t, other, "linked.jsonl", "{}")
	if err := os.Symlink(other, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(other, filepath.Join(root, "link2")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	got := slices.Collect(New([]string{root}, DefaultOptions()).Paths())
	if len(got) != 1 || filepath.Base(got[0]) != "linked.jsonl" {
		t.Errorf("expected linked.jsonl once, got %v", got)
	}
}

func TestIsCandidate(t *testing.T) {
	s := New(nil, DefaultOptions())
	for name, want := range map[string]bool{
		"abc.jsonl":           true,
		"abc.JSON":            true,
		"abc.jsonl.zst":       true,
		".jsonl":              false,
		"settings.local.json": false,
		"abc.md":              false,
	} {
		if got := s.IsCandidate(name); got != want {
			t.Errorf("IsCandidate(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestReadFile_Decompresses(t *testing.T) {
	dir := t.TempDir()
	payload := []byte(`{"role":"user","content":"hi"}` + "\n")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write(payload)
	zw.Close()
	gzPath := filepath.Join(dir, "s.jsonl.gz")
	os.WriteFile(gzPath, gz.Bytes(), 0644)

	var zs bytes.Buffer
	enc, err := zstd.NewWriter(&zs)
	if err != nil {
		t.Fatal(err)
	}
	enc.Write(payload)
	enc.Close()
	zsPath := filepath.Join(dir, "s.jsonl.zst")
	os.WriteFile(zsPath, zs.Bytes(), 0644)

	plainPath := filepath.Join(dir, "s.jsonl")
	os.WriteFile(plainPath, payload, 0644)

	for _, p := range []string{gzPath, zsPath, plainPath} {
		got, err := ReadFile(p)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", p, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("ReadFile(%s) = %q", p, got)
		}
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultRoots_RespectsConfigDir(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", "/opt/claude")
	got := DefaultRoots()
	want := []string{filepath.Join("/opt/claude", "projects")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DefaultRoots mismatch:\n%s", diff)
	}
}
