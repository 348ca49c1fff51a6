package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/RyanBlaney/sonido-aureo/analysis"
	"github.com/RyanBlaney/sonido-aureo/analysis/config"
	"github.com/RyanBlaney/sonido-aureo/history"
	"github.com/RyanBlaney/sonido-aureo/logging"
	"github.com/RyanBlaney/sonido-aureo/transcode"
)

const usage = `usage: aureo [flags] file...

Finds the golden-ratio points of each audio file, its loudest moments and how
close they land to those points.

Flags:
`

type options struct {
	configPath string
	format     analysis.TimeFormat
	logLevel   logging.Level
	workers    int
	outDir     string
	historyDir string
	list       bool
	noColor    bool
	files      []string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("aureo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		opts     options
		format   string
		logLevel string
	)
	fs.StringVar(&opts.configPath, "config", "", "JSON analysis config overlaid on the defaults")
	fs.StringVar(&format, "format", string(analysis.TimeFormatMinSec), "time format: min_sec or seconds")
	fs.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	fs.IntVar(&opts.workers, "workers", 0, "files analyzed concurrently (0 = one per CPU)")
	fs.StringVar(&opts.outDir, "out", "", "directory for analisis_<name>.json exports")
	fs.StringVar(&opts.historyDir, "history", "", "directory of the analysis history database")
	fs.BoolVar(&opts.list, "list", false, "print the analysis history and exit")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colored log output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if opts.format, err = analysis.ParseTimeFormat(format); err != nil {
		return nil, err
	}
	if opts.logLevel, err = logging.ParseLevel(logLevel); err != nil {
		return nil, err
	}
	if opts.list && opts.historyDir == "" {
		return nil, errors.New("-list needs -history")
	}

	opts.files = fs.Args()
	if !opts.list && len(opts.files) == 0 {
		fs.Usage()
		return nil, errors.New("no input files")
	}
	if opts.workers <= 0 {
		opts.workers = runtime.NumCPU()
	}
	if opts.workers > len(opts.files) && len(opts.files) > 0 {
		opts.workers = len(opts.files)
	}
	return &opts, nil
}

type fileResult struct {
	path   string
	result *analysis.Result
	err    error
}

// run is the whole command; it returns the process exit status
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "aureo: %v\n", err)
		return 2
	}

	logger := logging.NewDefaultLoggerWithWriters(stderr, stderr)
	logger.SetLevel(opts.logLevel)
	logging.SetGlobalLogger(logger)
	if !opts.noColor && isTerminal(stderr) {
		logging.EnableColors()
	} else {
		logging.DisableColors()
	}

	var store *history.Store
	if opts.historyDir != "" {
		store, err = history.Open(history.Options{Dir: opts.historyDir})
		if err != nil {
			fmt.Fprintf(stderr, "aureo: %v\n", err)
			return 1
		}
		defer store.Close()
	}

	if opts.list {
		if err := printHistory(stdout, store, opts.format); err != nil {
			fmt.Fprintf(stderr, "aureo: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := config.LoadAnalysisConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "aureo: %v\n", err)
		return 2
	}
	analyzer, err := analysis.NewAnalyzer(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "aureo: %v\n", err)
		return 2
	}

	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			fmt.Fprintf(stderr, "aureo: %v\n", err)
			return 1
		}
	}

	results := analyzeAll(ctx, analyzer, opts.files, opts.workers, stderr)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(stderr, "aureo: %s: %v\n", r.path, r.err)
			continue
		}

		printSummary(stdout, r.result, opts.format)

		if opts.outDir != "" {
			if err := exportResult(opts.outDir, r.result); err != nil {
				failed++
				fmt.Fprintf(stderr, "aureo: %s: %v\n", r.path, err)
			}
		}
		if store != nil {
			if _, err := store.Put(r.result); err != nil {
				failed++
				fmt.Fprintf(stderr, "aureo: %s: %v\n", r.path, err)
			}
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// analyzeAll runs files through a worker pool; results keep the input order
func analyzeAll(ctx context.Context, analyzer *analysis.Analyzer, files []string, workers int, progress io.Writer) []fileResult {
	p := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(progress))
	bar := p.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Analyzing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	results := make([]fileResult, len(files))
	jobs := make(chan int, len(files))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = analyzeFile(ctx, analyzer, files[i])
				bar.Increment()
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// a cancelled run leaves the bar incomplete
	if !bar.Completed() {
		bar.Abort(false)
	}
	p.Wait()

	return results
}

func analyzeFile(ctx context.Context, analyzer *analysis.Analyzer, path string) fileResult {
	out := fileResult{path: path}

	if !transcode.IsSupported(path) {
		out.err = fmt.Errorf("%w: unsupported file type %q (supported: %s)",
			transcode.ErrDecode, filepath.Ext(path), strings.Join(transcode.SupportedFormats(), ", "))
		return out
	}

	audio, err := transcode.OpenSource(path, nil).Decode(ctx, path)
	if err != nil {
		out.err = err
		return out
	}
	buf, err := analysis.FromAudioData(audio)
	if err != nil {
		out.err = err
		return out
	}
	out.result, out.err = analyzer.Analyze(ctx, buf)
	return out
}

func printSummary(w io.Writer, r *analysis.Result, format analysis.TimeFormat) {
	fmt.Fprintf(w, "%s\n", r.FileName)
	fmt.Fprintf(w, "  duration:        %s\n", analysis.FormatTime(r.Duration, format))
	fmt.Fprintf(w, "  golden points:   %s  %s\n",
		analysis.FormatTime(r.GoldenPoints[0], format),
		analysis.FormatTime(r.GoldenPoints[1], format))

	peaks := make([]string, len(r.Peaks))
	for i, p := range r.Peaks {
		peaks[i] = fmt.Sprintf("%s (%.2f)", analysis.FormatTime(p.Time, format), p.Energy)
	}
	if len(peaks) == 0 {
		peaks = append(peaks, "none")
	}
	fmt.Fprintf(w, "  peaks:           %s\n", strings.Join(peaks, ", "))
	fmt.Fprintf(w, "  proximity score: %.2f (%s alignment, lower is better)\n",
		r.ProximityScore, analysis.RateAlignment(r.ProximityScore))
}

func exportResult(dir string, r *analysis.Result) error {
	path := filepath.Join(dir, analysis.ExportFileName(r.FileName))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export %s: %w", path, err)
	}
	return f.Close()
}

func printHistory(w io.Writer, store *history.Store, format analysis.TimeFormat) error {
	entries, err := store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no analyses recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-40s  %s  score %.2f\n",
			e.AnalyzedAt.Local().Format("2006-01-02 15:04"),
			e.Result.FileName,
			analysis.FormatTime(e.Result.Duration, format),
			e.Result.ProximityScore)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
