package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-barcode-lookup/config"
	"github.com/aluiziolira/go-barcode-lookup/decoder"
	"github.com/aluiziolira/go-barcode-lookup/lookup"
	"github.com/aluiziolira/go-barcode-lookup/metrics"
	"github.com/aluiziolira/go-barcode-lookup/models"
	"github.com/aluiziolira/go-barcode-lookup/render"
	"github.com/aluiziolira/go-barcode-lookup/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Lookup API base URL")
	flag.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Lookup API key (empty uses the trial endpoint)")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Lookup request timeout")
	flag.StringVar(&cfg.Input, "input", cfg.Input, "Scanner input: device or file path, - for stdin")
	flag.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: text, json, or csv")
	flag.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file for json and csv formats")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.DurationVar(&cfg.DebounceWindow, "debounce", cfg.DebounceWindow, "Ignore repeated scans of the same code within this window (0 disables)")
	flag.BoolVar(&cfg.Bell, "bell", cfg.Bell, "Ring the terminal bell when a code is detected")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	symbologies := flag.String("symbologies", strings.Join(cfg.Symbologies, ","), "Comma-separated symbologies to accept (empty accepts all)")
	symbols := flag.String("symbol", "", "Comma-separated payloads to look up instead of reading the scanner")
	once := flag.Bool("once", false, "Exit after the first scan")

	flag.Parse()

	cfg.Symbologies = splitList(*symbologies)
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	stats := &summary{}
	err = run(ctx, cfg, splitList(*symbols), *once, stats)
	printSummary(stats, time.Since(startTime), cfg)
	if err != nil {
		slog.Error("scanner stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, symbols []string, once bool, stats *summary) error {
	m := metrics.New()

	client, err := lookup.NewClient(cfg, lookup.WithMetrics(m), lookup.WithLogger(slog.Default()))
	if err != nil {
		return errors.Wrap(err, "initialise lookup client")
	}

	dec, closeDecoder, err := createDecoder(cfg, symbols)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDecoder(); err != nil {
			slog.Error("close decoder", slog.Any("error", err))
		}
	}()

	out, err := createRenderer(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return errors.Wrap(err, "create renderer")
	}
	defer func() {
		if err := out.Close(); err != nil {
			slog.Error("close renderer", slog.Any("error", err))
		}
	}()

	opts := []session.Option{
		session.WithMetrics(m),
		session.WithLogger(slog.Default()),
		session.WithLookupTimeout(cfg.Timeout),
	}
	if cfg.Bell {
		opts = append(opts, session.WithDetectHook(ringBell(os.Stderr)))
	}
	ctrl := session.NewController(dec, client, opts...)

	slog.Info("scanner ready",
		slog.String("endpoint", cfg.LookupURL()),
		slog.String("input", describeInput(cfg, symbols)),
		slog.String("format", cfg.OutputFormat),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	g.Go(func() error {
		watchUpdates(gctx, ctrl.Updates())
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return scanLoop(gctx, ctrl, out, once, stats)
	})

	return g.Wait()
}

// scanLoop runs one capture cycle per scan until input runs out, once is
// satisfied, or ctx is cancelled.
func scanLoop(ctx context.Context, ctrl *session.Controller, out render.Renderer, once bool, stats *summary) error {
	for ctx.Err() == nil {
		id, err := ctrl.Begin(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				slog.Info("scanner input exhausted")
				return nil
			case ctx.Err() != nil:
				return nil
			}
			snap := ctrl.Current()
			stats.record(snap)
			if renderErr := out.Render(snap); renderErr != nil {
				slog.Error("render result", slog.Any("error", renderErr))
			}
			return err
		}

		// Cancelling ctx cancels the cycle, so the cancelled snapshot still arrives.
		snap, err := ctrl.Wait(context.WithoutCancel(ctx), id)
		if err != nil {
			return errors.Wrap(err, "wait for scan")
		}

		if snap.Outcome == session.Unavailable && errors.Is(snap.Err, io.EOF) {
			slog.Info("scanner input exhausted")
			return nil
		}
		if snap.Outcome == session.Cancelled {
			return nil
		}

		stats.record(snap)
		if err := out.Render(snap); err != nil {
			return errors.Wrap(err, "render result")
		}
		if snap.Outcome == session.Unavailable {
			return snap.Err
		}
		if once {
			return nil
		}
	}
	return nil
}

// ringBell returns a detection cue that writes the terminal bell to w.
func ringBell(w io.Writer) func(models.SymbolEvent) {
	return func(models.SymbolEvent) {
		fmt.Fprint(w, "\a")
	}
}

func watchUpdates(ctx context.Context, updates <-chan session.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			slog.Debug("session update",
				slog.String("session", snap.Session),
				slog.String("state", snap.State.String()),
				slog.String("outcome", snap.Outcome.String()),
			)
		}
	}
}

func createDecoder(cfg *config.Config, symbols []string) (session.Decoder, func() error, error) {
	if len(symbols) > 0 {
		return decoder.NewStatic(symbols...), func() error { return nil }, nil
	}

	symbologies, err := decoder.ParseSymbologies(cfg.Symbologies)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse symbologies")
	}
	line := decoder.Open(cfg.Input,
		decoder.WithSymbologies(symbologies),
		decoder.WithDebounce(cfg.DebounceWindow, cfg.DebounceSize),
		decoder.WithLogger(slog.Default()),
	)
	return line, line.Close, nil
}

func createRenderer(format, filename string) (render.Renderer, error) {
	text := render.NewText(os.Stdout)
	switch format {
	case "text":
		return text, nil
	case "json":
		file, err := render.NewJSONFile(filename)
		if err != nil {
			return nil, err
		}
		return render.NewMulti(text, file), nil
	case "csv":
		file, err := render.NewCSVFile(filename)
		if err != nil {
			return nil, err
		}
		return render.NewMulti(text, file), nil
	default:
		return nil, errors.Errorf("unsupported format: %s", format)
	}
}

func describeInput(cfg *config.Config, symbols []string) string {
	switch {
	case len(symbols) > 0:
		return "flag"
	case cfg.Input == "-":
		return "stdin"
	default:
		return cfg.Input
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type summary struct {
	sessions    int
	matches     int
	noMatches   int
	failures    int
	unavailable int
}

func (s *summary) record(snap session.Snapshot) {
	s.sessions++
	switch snap.Outcome {
	case session.Match:
		s.matches++
	case session.NoMatch:
		s.noMatches++
	case session.Failed:
		s.failures++
	case session.Unavailable:
		s.unavailable++
	}
}

func printSummary(s *summary, duration time.Duration, cfg *config.Config) {
	fmt.Println(separator)
	fmt.Println("Scan summary")
	fmt.Printf("  Scans:         %d\n", s.sessions)
	fmt.Printf("  Matches:       %d\n", s.matches)
	fmt.Printf("  Not found:     %d\n", s.noMatches)
	fmt.Printf("  Failed:        %d\n", s.failures)
	if s.unavailable > 0 {
		fmt.Printf("  Unavailable:   %d\n", s.unavailable)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if cfg.OutputFormat != "text" {
		fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Println(separator)
}

const separator = "--------------------------------------------------"

// newLogger writes to stderr so stdout stays free for results.
func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
