package strategy

import (
	"squish/internal/config"
	"squish/pkg/imgutil"
)

// Availability answers whether an external tool can be invoked. Implemented
// by tool.Probe; tests substitute a fake.
type Availability interface {
	Available(tool string) bool
}

// Resolver turns a detected format plus the batch configuration into an
// ordered list of strategies to attempt.
type Resolver struct {
	tools Availability
}

func NewResolver(tools Availability) *Resolver {
	return &Resolver{tools: tools}
}

// Resolve returns the candidate strategies for one file, best first.
//
// Cross-format conversion is built-in-codec-only: the registered external
// optimizers are single-format tools and never convert. For same-format
// optimization the available external tools come first in registry order,
// with the built-in codec last whenever it can re-encode the format, so
// every raster file the codec supports always has at least one candidate.
// An empty result means no viable strategy exists; the pipeline reports
// that as a skip, not a failure.
func (r *Resolver) Resolve(detected imgutil.Format, cfg config.Config) []Strategy {
	target := cfg.Target()
	if target == imgutil.FormatUnknown {
		target = detected
	}

	if target != detected {
		if builtinDecodable(detected) && builtinEncodable(target) {
			return []Strategy{Builtin()}
		}
		return nil
	}

	var out []Strategy
	for _, spec := range registry[detected] {
		if cfg.Lossless() && !spec.lossless {
			continue
		}
		if !r.tools.Available(spec.id) {
			continue
		}
		args, inPlace := spec.args(cfg)
		out = append(out, Strategy{Kind: KindExternal, Tool: spec.id, Args: args, InPlace: inPlace})
	}
	if builtinDecodable(detected) && builtinEncodable(detected) {
		out = append(out, Builtin())
	}
	return out
}

// builtinDecodable reports formats the in-process codec can read.
func builtinDecodable(f imgutil.Format) bool {
	switch f {
	case imgutil.FormatJPEG, imgutil.FormatPNG, imgutil.FormatGIF, imgutil.FormatWebP:
		return true
	default:
		return false
	}
}

// builtinEncodable reports formats the in-process codec can write. WebP is
// decode-only without cwebp; SVG has no codec path at all.
func builtinEncodable(f imgutil.Format) bool {
	switch f {
	case imgutil.FormatJPEG, imgutil.FormatPNG, imgutil.FormatGIF:
		return true
	default:
		return false
	}
}

// toolSpec describes one registered external optimizer for a format.
// lossless marks tools that do not discard image data and therefore stay
// eligible in lossless mode.
type toolSpec struct {
	id       string
	lossless bool
	args     func(cfg config.Config) (argv []string, inPlace bool)
}

// registry holds the fixed per-format tool preference order.
var registry = map[imgutil.Format][]toolSpec{
	imgutil.FormatJPEG: {
		{id: "jpegoptim", lossless: true, args: jpegoptimArgs},
	},
	imgutil.FormatPNG: {
		{id: "pngquant", lossless: false, args: pngquantArgs},
		{id: "optipng", lossless: true, args: optipngArgs},
	},
	imgutil.FormatWebP: {
		{id: "cwebp", lossless: true, args: cwebpArgs},
	},
	imgutil.FormatGIF: {
		{id: "gifsicle", lossless: true, args: gifsicleArgs},
	},
	imgutil.FormatSVG: {
		{id: "scour", lossless: true, args: scourArgs},
		{id: "svgo", lossless: true, args: svgoArgs},
	},
}

func jpegoptimArgs(cfg config.Config) ([]string, bool) {
	argv := []string{"jpegoptim", "--quiet"}
	if !cfg.Lossless() {
		argv = append(argv, "--max={quality}")
	}
	if !cfg.KeepMetadata {
		argv = append(argv, "--strip-all")
	}
	return append(argv, "{output}"), true
}

func pngquantArgs(cfg config.Config) ([]string, bool) {
	return []string{
		"pngquant", "--force",
		"--quality", "0-{quality}",
		"--output", "{output}", "{input}",
	}, false
}

func optipngArgs(cfg config.Config) ([]string, bool) {
	argv := []string{"optipng", "-quiet", "-o2"}
	if !cfg.KeepMetadata {
		argv = append(argv, "-strip", "all")
	}
	return append(argv, "{output}"), true
}

func cwebpArgs(cfg config.Config) ([]string, bool) {
	argv := []string{"cwebp", "-quiet"}
	if cfg.Lossless() {
		argv = append(argv, "-lossless")
	} else {
		argv = append(argv, "-q", "{quality}")
	}
	if cfg.KeepMetadata {
		argv = append(argv, "-metadata", "all")
	}
	return append(argv, "{input}", "-o", "{output}"), false
}

func gifsicleArgs(cfg config.Config) ([]string, bool) {
	return []string{"gifsicle", "-O3", "--output", "{output}", "{input}"}, false
}

func scourArgs(cfg config.Config) ([]string, bool) {
	return []string{"scour", "-i", "{input}", "-o", "{output}"}, false
}

func svgoArgs(cfg config.Config) ([]string, bool) {
	return []string{"svgo", "--input", "{input}", "--output", "{output}"}, false
}

// Tools lists every registered external tool id, in a stable order, for
// availability reporting.
func Tools() []string {
	order := []imgutil.Format{
		imgutil.FormatJPEG, imgutil.FormatPNG, imgutil.FormatWebP,
		imgutil.FormatGIF, imgutil.FormatSVG,
	}
	var ids []string
	seen := make(map[string]struct{})
	for _, f := range order {
		for _, spec := range registry[f] {
			if _, ok := seen[spec.id]; ok {
				continue
			}
			seen[spec.id] = struct{}{}
			ids = append(ids, spec.id)
		}
	}
	return ids
}
