// Package config holds the immutable per-batch configuration snapshot and
// its YAML loading and validation rules.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"squish/pkg/imgutil"
)

// Mode selects the quality policy for a batch.
type Mode string

const (
	ModeLossy    Mode = "lossy"
	ModeLossless Mode = "lossless"
)

const (
	defaultQuality = 85
	defaultWorkers = 4
	maxWorkers     = 32

	// MaxQuality is what lossless mode pins the quality knob to.
	MaxQuality = 100
)

// Config is the batch configuration. It is treated as an immutable snapshot:
// the scheduler copies it into every task at submission time.
type Config struct {
	Quality      int    `yaml:"quality"`
	Mode         Mode   `yaml:"mode"`
	TargetFormat string `yaml:"target_format"` // empty = keep original format
	MaxDimension int    `yaml:"max_dimension"` // 0 = no resize; shrink only
	KeepMetadata bool   `yaml:"keep_metadata"`
	Overwrite    bool   `yaml:"overwrite"`
	OutputDir    string `yaml:"output_dir"` // empty = optimized/ beside each input
	Workers      int    `yaml:"workers"`
	LowResource  bool   `yaml:"low_resource"` // forces Workers to 1
}

// Default returns the defaults the original settings dialog ships with.
func Default() Config {
	return Config{
		Quality: defaultQuality,
		Mode:    ModeLossy,
		Workers: defaultWorkers,
	}
}

// Load reads YAML config from the provided path. An empty path, a missing
// file, or an empty file all yield defaults with no error, so a config file
// stays optional.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	fileData, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks batch-submission-time invariants. It is the only place
// configuration errors surface; past this point every error is per-task.
func (c Config) Validate() error {
	if c.Quality < 1 || c.Quality > MaxQuality {
		return fmt.Errorf("invalid quality %d: must be 1-%d", c.Quality, MaxQuality)
	}
	switch c.Mode {
	case ModeLossy, ModeLossless:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeLossy, ModeLossless)
	}
	if c.TargetFormat != "" && imgutil.ParseFormat(c.TargetFormat) == imgutil.FormatUnknown {
		return fmt.Errorf("unsupported target format %q", c.TargetFormat)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("invalid max dimension %d: must be >= 0", c.MaxDimension)
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		return fmt.Errorf("invalid workers %d: must be 1-%d", c.Workers, maxWorkers)
	}
	return nil
}

// Lossless reports whether the batch runs in lossless mode.
func (c Config) Lossless() bool {
	return c.Mode == ModeLossless
}

// EffectiveQuality returns the quality the strategies actually use.
// Lossless mode pins it to the maximum regardless of the configured value.
func (c Config) EffectiveQuality() int {
	if c.Lossless() {
		return MaxQuality
	}
	return c.Quality
}

// EffectiveWorkers returns the worker pool size, honoring low-resource mode.
func (c Config) EffectiveWorkers() int {
	if c.LowResource {
		return 1
	}
	return c.Workers
}

// Target returns the explicit target format, or FormatUnknown when the batch
// keeps each file's original format.
func (c Config) Target() imgutil.Format {
	if c.TargetFormat == "" {
		return imgutil.FormatUnknown
	}
	return imgutil.ParseFormat(c.TargetFormat)
}
