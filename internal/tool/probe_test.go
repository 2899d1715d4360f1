package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func fakeProbe(found bool, runs *int, out string, runErr error) *Probe {
	p := NewProbe(zerolog.Nop())
	p.lookPath = func(string) (string, error) {
		if found {
			return "/usr/bin/fake", nil
		}
		return "", errors.New("not found")
	}
	p.run = func(ctx context.Context, name string, args []string) (string, error) {
		*runs++
		return out, runErr
	}
	return p
}

func TestProbeCachesResult(t *testing.T) {
	runs := 0
	p := fakeProbe(true, &runs, "jpegoptim v1.5.5\nmore", nil)

	for i := 0; i < 5; i++ {
		if !p.Available("jpegoptim") {
			t.Fatal("expected jpegoptim available")
		}
	}
	if runs != 1 {
		t.Fatalf("probe ran %d times, want exactly 1", runs)
	}

	res := p.Lookup("jpegoptim")
	if res.Version != "jpegoptim v1.5.5" {
		t.Fatalf("version = %q", res.Version)
	}
}

func TestProbeCachesFailure(t *testing.T) {
	runs := 0
	p := fakeProbe(true, &runs, "", errors.New("exit 1"))

	if p.Available("pngquant") || p.Available("pngquant") {
		t.Fatal("expected pngquant unavailable")
	}
	if runs != 1 {
		t.Fatalf("failed probe ran %d times, want exactly 1 (never retried)", runs)
	}
}

func TestProbeMissingBinary(t *testing.T) {
	runs := 0
	p := fakeProbe(false, &runs, "", nil)

	if p.Available("gifsicle") {
		t.Fatal("expected gifsicle unavailable when not on PATH")
	}
	if runs != 0 {
		t.Fatal("version flag must not run when binary is absent")
	}
}

func TestProbeUnknownTool(t *testing.T) {
	runs := 0
	p := fakeProbe(true, &runs, "", nil)

	if p.Available("imagemagick") {
		t.Fatal("unregistered tool must report unavailable")
	}
}
