// Package pipeline runs one file end to end: sniff, resolve, resize,
// optimize, metadata policy, atomic replace. One Pipeline serves one batch;
// it is safe for concurrent Execute calls from the worker pool.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"squish/internal/codec"
	"squish/internal/config"
	"squish/internal/engine"
	"squish/internal/metadata"
	"squish/internal/output"
	"squish/internal/strategy"
	"squish/internal/tool"
	"squish/pkg/imgutil"
)

type Pipeline struct {
	cfg        config.Config
	resolver   *strategy.Resolver
	runner     *tool.Runner
	mapper     output.Mapper
	collisions *output.CollisionResolver
	log        zerolog.Logger
}

func New(cfg config.Config, tools strategy.Availability, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		resolver:   strategy.NewResolver(tools),
		runner:     tool.NewRunner(log),
		mapper:     output.Mapper{Overwrite: cfg.Overwrite, Root: cfg.OutputDir},
		collisions: output.NewCollisionResolver(),
		log:        log,
	}
}

// Factory adapts New to the scheduler's per-batch executor hook.
func Factory(tools strategy.Availability, log zerolog.Logger) engine.ExecutorFactory {
	return func(cfg config.Config) engine.Executor {
		return New(cfg, tools, log)
	}
}

// Execute processes one task and always returns an outcome; it never
// panics the worker and never touches the destination path except through
// the final atomic replace.
func (p *Pipeline) Execute(ctx context.Context, task engine.Task) engine.TaskOutcome {
	info, err := os.Stat(task.Path)
	if err != nil {
		return engine.Failed(engine.ErrUnreadable, err.Error())
	}
	originalSize := info.Size()

	detected, err := imgutil.SniffFile(task.Path)
	if err != nil {
		return engine.Failed(engine.ErrUnreadable, err.Error())
	}
	if detected == imgutil.FormatUnknown {
		return engine.Skipped("unsupported format")
	}

	target := detected
	if t := p.cfg.Target(); t != imgutil.FormatUnknown {
		target = t
	}
	converted := target != detected

	strategies := p.resolver.Resolve(detected, p.cfg)
	if len(strategies) == 0 {
		return engine.Skipped(fmt.Sprintf("no available strategy for %s", detected))
	}

	dest := p.collisions.Resolve(task.ID, p.mapper.Dest(task.Path, task.RelPath, target))
	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return engine.Failed(engine.ErrWriteFailed, err.Error())
	}

	// Shrink-only pre-pass. The resized frame stays in memory so the
	// built-in codec encodes it exactly once; external tools see it through
	// an intermediate file written lazily below.
	var resizedImg image.Image
	resized := false
	if p.cfg.MaxDimension > 0 && detected.Raster() {
		img, err := codec.Decode(task.Path)
		if err != nil {
			return engine.Failed(engine.ErrUnreadable, err.Error())
		}
		if shrunk := codec.Resize(img, p.cfg.MaxDimension); shrunk.Bounds() != img.Bounds() {
			resizedImg = shrunk
			resized = true
		}
	}

	tmp, err := os.CreateTemp(destDir, ".squish-*"+target.Ext())
	if err != nil {
		return engine.Failed(engine.ErrWriteFailed, err.Error())
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	// Lazy intermediate for external tools when a resize happened. WebP
	// goes through a PNG intermediate since the codec cannot encode WebP
	// and cwebp reads PNG.
	workInput := task.Path
	interPath := ""
	defer func() {
		if interPath != "" {
			os.Remove(interPath)
		}
	}()
	prepareToolInput := func() (engine.ErrorKind, error) {
		if resizedImg == nil || interPath != "" {
			return 0, nil
		}
		interFormat := detected
		if interFormat == imgutil.FormatWebP {
			interFormat = imgutil.FormatPNG
		}
		inter, err := os.CreateTemp(destDir, ".squish-resize-*"+interFormat.Ext())
		if err != nil {
			return engine.ErrWriteFailed, err
		}
		interPath = inter.Name()
		_ = inter.Close()
		if err := codec.EncodeToFile(interPath, resizedImg, interFormat, p.cfg.EffectiveQuality()); err != nil {
			return engine.ErrCompressionFailed, err
		}
		workInput = interPath
		return 0, nil
	}

	// Candidates in preference order. An external tool that fails falls
	// through to the next candidate; the built-in codec is always last and
	// its failure ends the task.
	var applied strategy.Strategy
	var lastErr error
	done := false
	for _, st := range strategies {
		if st.Kind == strategy.KindBuiltin {
			img := resizedImg
			if img == nil {
				decoded, derr := codec.Decode(task.Path)
				if derr != nil {
					return engine.Failed(engine.ErrUnreadable, derr.Error())
				}
				img = decoded
			}
			if err := codec.EncodeToFile(tmpPath, img, target, p.cfg.EffectiveQuality()); err != nil {
				return engine.Failed(engine.ErrCompressionFailed, err.Error())
			}
			applied = st
			done = true
			break
		}
		if kind, err := prepareToolInput(); err != nil {
			return engine.Failed(kind, err.Error())
		}
		if err := p.runner.Run(ctx, st, workInput, tmpPath, p.cfg.EffectiveQuality()); err != nil {
			lastErr = err
			p.log.Warn().
				Str("path", task.Path).
				Str("strategy", st.Name()).
				Err(err).
				Msg("strategy failed, trying next")
			continue
		}
		applied = st
		done = true
		break
	}
	if !done {
		return engine.Failed(engine.ErrToolInvocationFailed, lastErr.Error())
	}

	// Uniform metadata policy, independent of which strategy produced the
	// bytes. Best effort: a strip or transplant error downgrades to a
	// warning, the optimized pixels still count.
	if p.cfg.KeepMetadata {
		if err := metadata.TransplantFile(task.Path, tmpPath, detected, target); err != nil {
			p.log.Warn().Str("path", task.Path).Err(err).Msg("metadata transplant failed")
		} else if has, exifErr := metadata.HasExif(tmpPath); exifErr == nil {
			p.log.Debug().Str("path", task.Path).Bool("exif", has).Msg("metadata carried")
		}
	} else {
		if err := metadata.StripFile(tmpPath, target); err != nil {
			p.log.Warn().Str("path", task.Path).Err(err).Msg("metadata strip failed")
		}
	}

	newInfo, err := os.Stat(tmpPath)
	if err != nil {
		return engine.Failed(engine.ErrWriteFailed, err.Error())
	}
	newSize := newInfo.Size()

	// Pure re-optimization only goes through when it actually shrinks the
	// file. A resize or format conversion was asked for explicitly and is
	// honored even when the result is larger.
	if newSize >= originalSize && !resized && !converted {
		return engine.Skipped("output not smaller than input")
	}

	if err := output.ReplaceFile(tmpPath, dest); err != nil {
		return engine.Failed(engine.ErrWriteFailed, err.Error())
	}

	p.log.Debug().
		Str("path", task.Path).
		Str("dest", dest).
		Str("strategy", applied.Name()).
		Int64("before", originalSize).
		Int64("after", newSize).
		Msg("optimized")
	return engine.Succeeded(originalSize, newSize, dest, applied.Name())
}
