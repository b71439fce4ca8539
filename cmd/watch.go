package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/feedtrack/internal/feeding"
	"github.com/Tiliavir/feedtrack/internal/metrics"
	"github.com/Tiliavir/feedtrack/internal/refresh"
	"github.com/Tiliavir/feedtrack/internal/timecalc"
	"github.com/Tiliavir/feedtrack/internal/tracker"
)

var watchDays int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the last feeding and recent history on screen",
	Long: `Redraws the last feeding card and the most recent days every
refresh.interval. Press Enter to refresh immediately, Ctrl+C to quit.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchDays, "days", 2, "Number of most recent days to show (0 = all)")
}

// views is what one watch redraw reads.
type views interface {
	LastFeeding(ctx context.Context) (tracker.Last, error)
	History(ctx context.Context) (tracker.History, error)
}

func runWatch(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewPrometheus()
	t, err := newTracker(ctx, rec)
	if err != nil {
		exitOn(err, 1)
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv = serveMetrics(cfg.Metrics.Addr, rec)
	}

	sched := refresh.NewScheduler(cfg.Refresh.Interval, func(ctx context.Context) {
		renderWatch(ctx, os.Stdout, t, watchDays, cfg.Refresh.Interval)
	}, log)
	sched.Start(ctx)

	go triggerOnEnter(os.Stdin, sched.Trigger)

	<-ctx.Done()
	sched.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	log.Info().Msg("watch stopped")
	return nil
}

func serveMetrics(addr string, rec metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

// triggerOnEnter calls trigger for every line read from r until EOF.
func triggerOnEnter(r io.Reader, trigger func()) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		trigger()
	}
}

// renderWatch draws one frame. Fetch failures are shown in place of the
// affected section so the loop keeps running.
func renderWatch(ctx context.Context, w io.Writer, v views, days int, interval time.Duration) {
	fmt.Fprintln(w, "================================================")

	last, err := v.LastFeeding(ctx)
	switch {
	case errors.Is(err, feeding.ErrNoQualifyingRecord):
		printNoFeeding(w)
	case err != nil:
		fmt.Fprintf(w, "Could not load last feeding: %v\n", err)
	default:
		printLast(w, last)
	}
	fmt.Fprintln(w)

	h, err := v.History(ctx)
	if err != nil {
		fmt.Fprintf(w, "Could not load history: %v\n", err)
	} else {
		h.Groups = limitDays(h.Groups, days)
		printHistory(w, h)
	}

	fmt.Fprintf(w, "\nNext refresh in %s. Enter refreshes now, Ctrl+C quits.\n",
		timecalc.FormatDuration(int64(interval/time.Second)))
}
