// Package tool probes for and invokes the external optimizer binaries.
package tool

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// probeTimeout bounds the version-flag invocation used to detect a tool.
const probeTimeout = 5 * time.Second

// versionArgs maps each known tool to the flag that makes it print its
// version and exit 0.
var versionArgs = map[string][]string{
	"jpegoptim": {"--version"},
	"pngquant":  {"--version"},
	"optipng":   {"-version"},
	"cwebp":     {"-version"},
	"gifsicle":  {"--version"},
	"scour":     {"--version"},
	"svgo":      {"--version"},
}

// Result is a cached probe outcome for one tool.
type Result struct {
	OK      bool
	Version string
}

// Probe is the process-wide external-tool availability cache. Each tool is
// checked at most once per process, on first use; the cached result is then
// served to every caller for the process lifetime. A tool that disappears
// mid-run surfaces as a per-file invocation failure, never as a re-probe.
type Probe struct {
	mu       sync.Mutex
	cache    map[string]Result
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args []string) (string, error)
	log      zerolog.Logger
}

func NewProbe(log zerolog.Logger) *Probe {
	return &Probe{
		cache:    make(map[string]Result),
		lookPath: exec.LookPath,
		run:      runVersion,
		log:      log,
	}
}

// Available reports whether the tool can be invoked. Safe for concurrent use
// from every worker.
func (p *Probe) Available(tool string) bool {
	return p.Lookup(tool).OK
}

// Lookup returns the full probe result, running the probe on first call.
func (p *Probe) Lookup(tool string) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res, ok := p.cache[tool]; ok {
		return res
	}

	res := p.probe(tool)
	p.cache[tool] = res
	if res.OK {
		p.log.Debug().Str("tool", tool).Str("version", res.Version).Msg("external tool available")
	} else {
		p.log.Debug().Str("tool", tool).Msg("external tool unavailable")
	}
	return res
}

func (p *Probe) probe(tool string) Result {
	args, known := versionArgs[tool]
	if !known {
		return Result{}
	}
	if _, err := p.lookPath(tool); err != nil {
		return Result{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := p.run(ctx, tool, args)
	if err != nil {
		return Result{}
	}
	return Result{OK: true, Version: firstLine(out)}
}

func runVersion(ctx context.Context, name string, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
