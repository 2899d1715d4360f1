package tool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"squish/internal/strategy"
)

func TestSubstitute(t *testing.T) {
	argv := substitute(
		[]string{"jpegoptim", "--max={quality}", "{input}", "{output}"},
		"/in/a.jpg", "/out/a.jpg", 85,
	)
	want := []string{"jpegoptim", "--max=85", "/in/a.jpg", "/out/a.jpg"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v", argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestStderrTailKeepsLastLines(t *testing.T) {
	got := stderrTail("one\ntwo\nthree\nfour\nfive")
	if !strings.Contains(got, "five") || strings.Contains(got, "one") {
		t.Errorf("tail = %q", got)
	}
	if stderrTail("  \n ") != "" {
		t.Error("blank stderr should produce no suffix")
	}
}

func TestRunRejectsBuiltinStrategy(t *testing.T) {
	r := NewRunner(zerolog.Nop())
	if err := r.Run(context.Background(), strategy.Builtin(), "in", "out", 85); err == nil {
		t.Fatal("builtin strategy accepted by the external runner")
	}
}

// The copy-based tool below stands in for a real optimizer: it exists on any
// POSIX host and exercises the full invoke path including placeholder
// substitution and the output check.
func TestRunInvokesExternalTool(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(in, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := strategy.Strategy{
		Kind: strategy.KindExternal,
		Tool: "cp",
		Args: []string{"cp", "{input}", "{output}"},
	}
	r := NewRunner(zerolog.Nop())
	if err := r.Run(context.Background(), st, in, out, 85); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("output = %q", data)
	}
}

func TestRunFailingToolReportsError(t *testing.T) {
	st := strategy.Strategy{
		Kind: strategy.KindExternal,
		Tool: "false",
		Args: []string{"false", "{input}", "{output}"},
	}
	r := NewRunner(zerolog.Nop())
	if err := r.Run(context.Background(), st, "in", "out", 85); err == nil {
		t.Fatal("failing tool reported success")
	}
}

func TestRunInPlaceSeedsOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(in, []byte("seed me"), 0o644); err != nil {
		t.Fatal(err)
	}

	// "true" touches nothing, so the output holds exactly the seeded bytes.
	st := strategy.Strategy{
		Kind:    strategy.KindExternal,
		Tool:    "true",
		Args:    []string{"true"},
		InPlace: true,
	}
	r := NewRunner(zerolog.Nop())
	if err := r.Run(context.Background(), st, in, out, 85); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "seed me" {
		t.Errorf("output = %q", data)
	}
}
