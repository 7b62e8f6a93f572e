package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swind/go-job-center/config"
	"github.com/Swind/go-job-center/core"
	obs "github.com/Swind/go-job-center/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

type runSummary struct {
	Center        string           `json:"center"`
	Workers       int              `json:"workers"`
	Jobs          int              `json:"jobs"`
	Completed     int64            `json:"completed"`
	Rejected      int64            `json:"rejected"`
	PerCategory   map[string]int64 `json:"per_category"`
	Violations    int64            `json:"violations"`
	OffMainThread int64            `json:"off_main_thread"`
	Frames        uint64           `json:"frames"`
	Elapsed       time.Duration    `json:"elapsed_ns"`
}

func newRunCommand() *cobra.Command {
	shape := graphShape{Layers: 4, Width: 8, Work: time.Millisecond, MainEvery: 4}
	var (
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a layered fan-out/fan-in graph of synthetic jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := runGraph(cmd.Context(), configFrom(cmd.Context()), shape, timeout)
			if summary != nil {
				if perr := printSummary(cmd.OutOrStdout(), summary, asJSON); perr != nil {
					return errors.Join(err, perr)
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&shape.Layers, "layers", shape.Layers, "Number of graph layers")
	cmd.Flags().IntVar(&shape.Width, "width", shape.Width, "Jobs per layer")
	cmd.Flags().DurationVar(&shape.Work, "work", shape.Work, "Simulated work per job")
	cmd.Flags().IntVar(&shape.MainEvery, "main-every", shape.MainEvery, "Route every Nth job to the main thread (0 disables)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Maximum time to wait for the graph")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func runGraph(ctx context.Context, cfg config.Config, shape graphShape, timeout time.Duration) (*runSummary, error) {
	centerCfg, err := cfg.ToCenterConfig()
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *prom.Registry
	if cfg.Metrics.Addr != "" {
		reg = prom.NewRegistry()
		exporter, err := obs.NewMetricsExporter("", reg, obs.ExporterOptions{})
		if err != nil {
			return nil, err
		}
		centerCfg.Metrics = exporter
	}

	center, err := core.NewCenter(centerCfg)
	if err != nil {
		return nil, err
	}

	if reg != nil {
		poller, err := obs.NewSnapshotPoller(reg, cfg.Metrics.Poll)
		if err != nil {
			return nil, err
		}
		poller.AddCenter(center.Name(), center)
		poller.Start(ctx)
		defer poller.Stop()

		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if err := center.Startup(ctx); err != nil {
		return nil, err
	}
	loop := core.NewFrameLoop(center, nil,
		core.WithFrameInterval(cfg.Frame.Interval),
		core.WithFrameBudget(cfg.Frame.Budget),
		core.WithFrameContext(context.WithoutCancel(ctx)),
	)

	shutdown := func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return loop.Shutdown(sctx)
	}

	graph, err := buildGraph(center, shape)
	if err != nil {
		return nil, errors.Join(err, shutdown())
	}

	log.Info().Str("center", center.Name()).Int("jobs", shape.jobCount()).Int("workers", center.WorkerCount()).Msg("dispatching job graph")

	start := time.Now()
	if err := graph.dispatch(); err != nil {
		return nil, errors.Join(err, shutdown())
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var waitErr error
	select {
	case <-graph.sink.Completed():
	case <-waitCtx.Done():
		waitErr = fmt.Errorf("waiting for job graph: %w", waitCtx.Err())
	}
	elapsed := time.Since(start)

	shutdownErr := shutdown()
	stats := center.Stats()

	summary := &runSummary{
		Center:        center.Name(),
		Workers:       stats.Workers,
		Jobs:          shape.jobCount(),
		Completed:     stats.Completed,
		Rejected:      stats.Rejected,
		PerCategory:   make(map[string]int64, core.CategoryCount),
		Violations:    graph.violations.Load(),
		OffMainThread: graph.offMainThread.Load(),
		Frames:        loop.Frames(),
		Elapsed:       elapsed,
	}
	for i := range graph.perCategory {
		summary.PerCategory[core.Category(i).String()] = graph.perCategory[i].Load()
	}

	log.Info().Str("center", center.Name()).Dur("elapsed", elapsed).Int64("completed", stats.Completed).Msg("job graph finished")
	return summary, errors.Join(waitErr, shutdownErr)
}

func serveMetrics(addr string, reg *prom.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

func printSummary(w io.Writer, s *runSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	_, err := fmt.Fprintf(w,
		"center %s: %d/%d jobs completed in %s on %d workers (%d frames)\n",
		s.Center, s.Completed, s.Jobs, s.Elapsed.Round(time.Microsecond), s.Workers, s.Frames)
	if err != nil {
		return err
	}
	for i := range core.CategoryCount {
		name := core.Category(i).String()
		if _, err := fmt.Fprintf(w, "  %-12s %d\n", name, s.PerCategory[name]); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "  rejected=%d order_violations=%d off_main_thread=%d\n",
		s.Rejected, s.Violations, s.OffMainThread)
	return err
}
