package volume

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSanitizeRejectsTraversal(t *testing.T) {
	cases := []string{"../etc/passwd", "/etc/passwd", "a/../../b", "bad\x00name", ""}
	for _, c := range cases {
		if _, err := Sanitize(c); err != ErrUnsafeName {
			t.Errorf("Sanitize(%q) = %v, want ErrUnsafeName", c, err)
		}
	}
}

func TestSanitizeAllowsSubdirectory(t *testing.T) {
	got, err := Sanitize("reports/model.ifc")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Clean("reports/model.ifc") {
		t.Fatalf("got %q", got)
	}
}

func TestWriteAtomicNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := WriteAtomic(path, []byte(`{"ok":true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("got %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %v", entries)
	}
}

func TestSweepDirRemovesAgedFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.json")
	fresh := filepath.Join(dir, "fresh.json")

	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fresh, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	oldTime := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}

	removed, err := sweepDir(dir, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("want 1 removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("old file should have been removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh file should remain")
	}
}
