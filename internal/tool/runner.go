package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"squish/internal/strategy"
)

// InvokeTimeout bounds one external-tool invocation, independent of batch
// cancellation. A timed-out invocation counts as that strategy failing and
// triggers fallthrough to the next candidate.
const InvokeTimeout = 2 * time.Minute

// Runner executes external-tool strategies against a working file.
type Runner struct {
	timeout time.Duration
	log     zerolog.Logger
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{timeout: InvokeTimeout, log: log}
}

// Run invokes one external strategy. input is the (possibly pre-resized)
// source file; output is the working file the optimized bytes must land in.
// Success means exit code 0 and a non-empty output file; anything else is an
// error the caller treats as strategy failure.
func (r *Runner) Run(ctx context.Context, st strategy.Strategy, input, output string, quality int) error {
	if st.Kind != strategy.KindExternal {
		return fmt.Errorf("runner got non-external strategy %q", st.Name())
	}
	if st.InPlace {
		if err := copyFile(input, output); err != nil {
			return fmt.Errorf("seed in-place file: %w", err)
		}
	}

	argv := substitute(st.Args, input, output, quality)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.log.Debug().
		Str("tool", st.Tool).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("tool invocation")

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", st.Tool, r.timeout)
		}
		return fmt.Errorf("%s: %w%s", st.Tool, err, stderrTail(stderr.String()))
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("%s produced no output: %w", st.Tool, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s produced an empty output file", st.Tool)
	}
	return nil
}

func substitute(args []string, input, output string, quality int) []string {
	q := strconv.Itoa(quality)
	argv := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, "{input}", input)
		a = strings.ReplaceAll(a, "{output}", output)
		a = strings.ReplaceAll(a, "{quality}", q)
		argv[i] = a
	}
	return argv
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return ": " + strings.Join(lines, " | ")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
