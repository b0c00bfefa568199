// Command bench drives simulated scrolling viewers and a continuous feed
// against one segment cache, and exposes optional pprof/Prometheus endpoints.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	fileatomic "github.com/natefinch/atomic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/continuous"
	"github.com/IvanBrykalov/pagecache/internal/config"
	"github.com/IvanBrykalov/pagecache/internal/setup"
	pmet "github.com/IvanBrykalov/pagecache/metrics/prom"
	"github.com/IvanBrykalov/pagecache/viewport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		os.Exit(1)
	}
}

// report is the JSON summary written with --report.
type report struct {
	Config   config.Config `json:"config"`
	Elapsed  string        `json:"elapsed"`
	Scrolls  uint64        `json:"scrolls"`
	Windows  uint64        `json:"windows"`
	Items    uint64        `json:"items"`
	Missing  uint64        `json:"missing"`
	Feed     int           `json:"feed_items"`
	Fetches  uint64        `json:"source_fetches"`
	Stats    cache.Stats   `json:"cache_stats"`
	Failures []string      `json:"failure_titles,omitempty"`
}

func run(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "", "JSONC config file")
	pprofAddr := fs.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	var staged config.Config
	config.RegisterFlags(fs, &staged)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if err := config.ApplyFlags(fs, &cfg, staged); err != nil {
		return err
	}
	log, err := setup.Logger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Info("pprof: serving", "addr", *pprofAddr)
			log.Warn("pprof server stopped", "error", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (own registry and mux) ----
	reg := prometheus.NewRegistry()
	metrics := pmet.New(reg, "pagecache", "bench", nil)
	feedMetrics := pmet.NewContinuous(reg, "pagecache", "feed", nil)
	if cfg.Bench.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Info("metrics: serving", "addr", cfg.Bench.MetricsAddr)
			log.Warn("metrics server stopped", "error", http.ListenAndServe(cfg.Bench.MetricsAddr, mux))
		}()
	}

	var failMu sync.Mutex
	failures := map[string]bool{}
	handleError := func(title, message string) {
		log.Debug("fetch failed", "title", title, "message", message)
		failMu.Lock()
		failures[title] = true
		failMu.Unlock()
	}

	// ---- Build cache ----
	src := setup.Source(cfg)
	fetch := setup.Fetch(cfg, src)
	c := cache.New(cache.Options[string]{
		Fetch:              fetch,
		HandleError:        handleError,
		SegmentSize:        cfg.Cache.SegmentSize,
		MaxSegments:        cfg.Cache.MaxSegments,
		Policy:             setup.Policy(cfg),
		MaxConcurrentLoads: cfg.Cache.MaxConcurrentLoads,
		Metrics:            metrics,
		Logger:             log,
	})
	feed := continuous.New(continuous.Options[string]{
		Fetch:       fetch,
		HandleError: handleError,
		InitSize:    cfg.Cache.SegmentSize,
		Metrics:     feedMetrics,
		Logger:      log,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Bench.Duration.Duration)
	defer cancel()

	var w workload
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for id := range cfg.Bench.Viewers {
		g.Go(func() error { return w.viewer(gctx, c, cfg, uint64(id)) })
	}
	g.Go(func() error { return runFeed(gctx, feed, log) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	elapsed := time.Since(start)

	// ---- Report ----
	stats := c.Stats()
	r := report{
		Config:  cfg,
		Elapsed: elapsed.String(),
		Scrolls: w.scrolls.Load(),
		Windows: w.windows.Load(),
		Items:   w.items.Load(),
		Missing: w.missing.Load(),
		Feed:    len(feed.Data().Result),
		Fetches: src.Calls(),
		Stats:   stats,
	}
	failMu.Lock()
	for title := range failures {
		r.Failures = append(r.Failures, title)
	}
	failMu.Unlock()
	slices.Sort(r.Failures)

	fmt.Printf("viewers=%d items=%d segment=%d max_segments=%d policy=%s dur=%v\n",
		cfg.Bench.Viewers, cfg.Source.Items, cfg.Cache.SegmentSize, cfg.Cache.MaxSegments, cfg.Cache.Policy, elapsed)
	fmt.Printf("scrolls=%d (%.0f/s)  windows=%d  items=%d  missing=%d\n",
		r.Scrolls, float64(r.Scrolls)/elapsed.Seconds(), r.Windows, r.Items, r.Missing)
	fmt.Printf("fetches=%d  loads=%d  failures=%d  resident=%d segments / %d items  feed=%d\n",
		r.Fetches, stats.Loads, stats.Failures, stats.Segments, stats.Items, r.Feed)

	if cfg.Bench.Report != "" {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		if err := fileatomic.WriteFile(cfg.Bench.Report, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info("report written", "path", cfg.Bench.Report)
	}
	return nil
}

// workload counts what the viewers did.
type workload struct {
	scrolls, windows, items, missing atomic.Uint64
}

// viewer scrolls a viewport engine at random and loads every window it
// proposes: mostly short wheel steps, now and then a jump.
func (w *workload) viewer(ctx context.Context, c cache.Instance[string], cfg config.Config, id uint64) error {
	r := rand.New(rand.NewPCG(uint64(cfg.Bench.Seed), id))
	windows := make(chan viewport.Window, 1)
	eng := viewport.New(viewport.Config{
		RowHeight:      cfg.Viewport.RowHeight,
		ColumnCount:    cfg.Viewport.Columns,
		BufferRows:     cfg.Viewport.BufferRows,
		MinUpdateDelta: cfg.Viewport.MinUpdateDelta,
	})
	eng.Updates().Subscribe(func(win viewport.Window) {
		// keep only the newest window
		select {
		case <-windows:
		default:
		}
		windows <- win
	})
	eng.Resize(80, cfg.Bench.Height)

	top := 0.0
	for {
		select {
		case win := <-windows:
			w.windows.Add(1)
			items, err := c.QueryRange(ctx, win.Offset, win.Limit)
			if err != nil {
				return err
			}
			w.items.Add(uint64(len(items)))
			if total, ok := c.Count(); ok {
				want := max(min(win.Offset+win.Limit, total)-win.Offset, 0)
				w.missing.Add(uint64(max(want-len(items), 0)))
				eng.SetData(total, win.Offset, len(items))
			}
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		maxTop := eng.Actual().TotalHeight - cfg.Bench.Height
		if r.IntN(50) == 0 {
			top = r.Float64() * max(maxTop, 0)
		} else {
			top += float64(r.IntN(7)-2) * cfg.Viewport.RowHeight
		}
		top = max(min(top, maxTop), 0)
		eng.Scroll(top)
		w.scrolls.Add(1)
	}
}

// runFeed pages through the whole list with Next, then starts over.
func runFeed(ctx context.Context, feed *continuous.Cache[string], log *slog.Logger) error {
	for ctx.Err() == nil {
		if err := feed.Refresh(ctx); err != nil && ctx.Err() == nil {
			log.Debug("feed refresh failed", "error", err)
			continue
		}
		for ctx.Err() == nil {
			d := feed.Data()
			if len(d.Result) >= d.Total {
				break
			}
			if err := feed.Next(ctx); err != nil && ctx.Err() == nil {
				log.Debug("feed next failed", "error", err)
			}
		}
	}
	return ctx.Err()
}
