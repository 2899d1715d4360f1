package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"squish/internal/config"
	"squish/internal/engine"
	"squish/internal/output"
	"squish/internal/pipeline"
	"squish/internal/tool"
	"squish/internal/tui"
	"squish/pkg/imgutil"
)

var (
	runOutputDir   string
	runOverwrite   bool
	runQuality     int
	runLossless    bool
	runFormat      string
	runMaxSize     int
	runKeepMeta    bool
	runWorkers     int
	runLowResource bool
	runConfigPath  string
	runPlain       bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <path>...",
	Short: "Optimize images in the given files and directories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	// Flags override the config file only when set on the command line.
	fl := cmd.Flags()
	if fl.Changed("quality") {
		cfg.Quality = runQuality
	}
	if runLossless {
		cfg.Mode = config.ModeLossless
	}
	if fl.Changed("format") {
		cfg.TargetFormat = runFormat
	}
	if fl.Changed("max-size") {
		cfg.MaxDimension = runMaxSize
	}
	if fl.Changed("keep-metadata") {
		cfg.KeepMetadata = runKeepMeta
	}
	if fl.Changed("workers") {
		cfg.Workers = runWorkers
	}
	if runLowResource {
		cfg.LowResource = true
	}
	if runOverwrite {
		cfg.Overwrite = true
		cfg.OutputDir = ""
	} else if fl.Changed("output") {
		cfg.OutputDir = runOutputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	specs, err := gatherFiles(args)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("no image files found under %s", strings.Join(args, ", "))
	}

	probe := tool.NewProbe(logger)
	var sink engine.ProgressSink = engine.NewLogSink(logger)
	if runPlain {
		sink = &plainPrinter{out: os.Stdout}
	}
	sched := engine.NewScheduler(pipeline.Factory(probe, logger), sink, logger)

	started := time.Now()
	run, err := sched.Submit(context.Background(), engine.BatchRequest{Files: specs, Config: cfg})
	if err != nil {
		return err
	}

	var cancelOnce sync.Once
	requestCancel := func() {
		cancelOnce.Do(func() { _ = sched.Cancel(run.Handle()) })
	}

	if runPlain {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		go func() {
			<-sig
			requestCancel()
		}()
		<-run.Done()
		signal.Stop(sig)
	} else {
		model := tui.NewModel(run.Outcomes(), run.TaskCount(), requestCancel)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			return err
		}
	}
	<-run.Done()

	records := run.Poll()
	var saved int64
	for _, rec := range records {
		saved += rec.Outcome.BytesSaved()
	}
	state, counts := run.State(), run.Counts()

	fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.BatchSummary(state, counts, saved, time.Since(started))))
	if !runPlain {
		for _, rec := range records {
			if rec.Outcome.Status == engine.StatusFailed {
				fmt.Fprintf(os.Stderr, "failed: %s: %s: %s\n", rec.Path, rec.Outcome.Kind, rec.Outcome.Message)
			}
		}
	}
	if !cfg.Overwrite && counts.Succeeded > 0 {
		if cfg.OutputDir == "" {
			fmt.Fprintf(os.Stdout, "Optimized copies written to %s/ next to each input.\n", output.DefaultRootName)
		} else {
			outPath := cfg.OutputDir
			if abs, absErr := filepath.Abs(outPath); absErr == nil {
				outPath = abs
			}
			fmt.Fprintf(os.Stdout, "Optimized files written to: %s\n", outPath)
		}
	}
	if state == engine.StateCancelled {
		fmt.Fprintln(os.Stdout, "Cancelled: remaining files were left untouched.")
	}
	return nil
}

// plainPrinter is the line-based ProgressSink for --plain runs. Worker
// goroutines deliver outcomes concurrently, so lines are written under a
// lock.
type plainPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *plainPrinter) OnTaskOutcome(_ string, path string, o engine.TaskOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch o.Status {
	case engine.StatusSucceeded:
		fmt.Fprintf(p.out, "ok    %s -> %s (%s saved, %s)\n",
			path, o.OutputPath, tui.FormatBytes(o.BytesSaved()), o.Strategy)
	case engine.StatusSkipped:
		fmt.Fprintf(p.out, "skip  %s: %s\n", path, o.Reason)
	default:
		fmt.Fprintf(p.out, "fail  %s: %s: %s\n", path, o.Kind, o.Message)
	}
}

func (p *plainPrinter) OnBatchTerminal(string, engine.BatchState, engine.Counts) {}

// gatherFiles expands the path arguments into file specs. Directories are
// walked recursively, filtered by known image extensions; explicitly named
// files are passed through untouched and left to content sniffing.
func gatherFiles(paths []string) ([]engine.FileSpec, error) {
	var specs []engine.FileSpec
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			specs = append(specs, engine.FileSpec{Path: p, RelPath: filepath.Base(p)})
			continue
		}
		root := p
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if imgutil.ParseFormat(filepath.Ext(path)) == imgutil.FormatUnknown {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = filepath.Base(path)
			}
			specs = append(specs, engine.FileSpec{Path: path, RelPath: rel})
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return specs, nil
}

func init() {
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "destination folder for optimized copies (default: optimized/ beside each input)")
	runCmd.Flags().BoolVar(&runOverwrite, "overwrite", false, "replace originals in place")
	runCmd.Flags().IntVarP(&runQuality, "quality", "q", 85, "lossy quality, 1-100")
	runCmd.Flags().BoolVar(&runLossless, "lossless", false, "lossless mode, never degrade pixels")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "", "convert to this format (jpeg, png, gif)")
	runCmd.Flags().IntVar(&runMaxSize, "max-size", 0, "cap the longer image edge at this many pixels")
	runCmd.Flags().BoolVar(&runKeepMeta, "keep-metadata", false, "carry EXIF and other metadata into the output")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 4, "parallel workers, 1-32")
	runCmd.Flags().BoolVar(&runLowResource, "low-resource", false, "single worker, minimal memory pressure")
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "YAML config file")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "line-based output instead of the progress UI")

	rootCmd.AddCommand(runCmd)
}
