package output

import (
	"os"
	"path/filepath"
	"testing"

	"squish/pkg/imgutil"
)

func TestMapperMirrorsUnderRoot(t *testing.T) {
	m := Mapper{Root: "/out"}

	got := m.Dest("/photos/trip/a.jpg", filepath.Join("trip", "a.jpg"), imgutil.FormatJPEG)
	want := filepath.Join("/out", "trip", "a.jpg")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMapperConversionChangesExtension(t *testing.T) {
	m := Mapper{Root: "/out"}

	got := m.Dest("/photos/a.png", "a.png", imgutil.FormatJPEG)
	if got != filepath.Join("/out", "a.jpg") {
		t.Fatalf("got %q", got)
	}
}

func TestMapperEmptyRootLandsBesideInput(t *testing.T) {
	m := Mapper{}

	got := m.Dest("/photos/trip/a.jpg", filepath.Join("trip", "a.jpg"), imgutil.FormatJPEG)
	want := filepath.Join("/photos/trip", DefaultRootName, "a.jpg")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = m.Dest("/photos/a.png", "a.png", imgutil.FormatJPEG)
	if got != filepath.Join("/photos", DefaultRootName, "a.jpg") {
		t.Fatalf("got %q", got)
	}
}

func TestMapperOverwriteTargetsInput(t *testing.T) {
	m := Mapper{Overwrite: true}

	if got := m.Dest("/photos/a.jpg", "a.jpg", imgutil.FormatJPEG); got != "/photos/a.jpg" {
		t.Fatalf("got %q", got)
	}
	// Conversion under overwrite lands beside the original.
	if got := m.Dest("/photos/a.png", "a.png", imgutil.FormatJPEG); got != "/photos/a.jpg" {
		t.Fatalf("got %q", got)
	}
}

func TestCollisionResolver(t *testing.T) {
	cr := NewCollisionResolver()

	first := cr.Resolve("task-1", "/out/a.jpg")
	if first != "/out/a.jpg" {
		t.Fatalf("first claimant got %q", first)
	}

	second := cr.Resolve("task-2", "/out/a.jpg")
	if second != filepath.Join("/out", "a - dup1.jpg") {
		t.Fatalf("second claimant got %q", second)
	}

	third := cr.Resolve("task-3", "/out/a.jpg")
	if third != filepath.Join("/out", "a - dup2.jpg") {
		t.Fatalf("third claimant got %q", third)
	}

	// Re-resolving for the same task is stable.
	if again := cr.Resolve("task-1", "/out/a.jpg"); again != first {
		t.Fatalf("re-resolve got %q, want %q", again, first)
	}
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "work.tmp")
	dest := filepath.Join(dir, "final.jpg")

	if err := os.WriteFile(tmp, []byte("new"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatalf("write dest: %v", err)
	}

	if err := ReplaceFile(tmp, dest); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil || string(got) != "new" {
		t.Fatalf("dest content %q err=%v", got, err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatal("tmp file left behind")
	}
}
