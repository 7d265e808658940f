package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/five82/logdeck/internal/config"
	"github.com/five82/logdeck/internal/ctxfilter"
	"github.com/five82/logdeck/internal/dispatch"
	"github.com/five82/logdeck/internal/logging"
	"github.com/five82/logdeck/internal/mdc"
	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/prefs"
	"github.com/five82/logdeck/internal/server"
	"github.com/five82/logdeck/internal/source"
	"github.com/five82/logdeck/internal/source/filetail"
	"github.com/five82/logdeck/internal/source/kafka"
	"github.com/five82/logdeck/internal/source/poller"
	"github.com/five82/logdeck/internal/state"
	"github.com/five82/logdeck/internal/ui"
)

// storeDestination is the dispatcher destination name of the event store.
const storeDestination = "store"

// Options configure a logdeck run. Non-empty overrides replace the
// corresponding config file values.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/logdeck/prefs.toml
	Headless   bool   // run producers and the listener without the TUI

	Listen string   // overrides listen.addr
	Poll   string   // overrides poll.url
	Files  []string // added to files.paths

	// LogOutput receives logs in headless mode; nil means stderr.
	LogOutput io.Writer
}

func (o Options) apply(cfg *config.Config) {
	if addr := strings.TrimSpace(o.Listen); addr != "" {
		cfg.Listen.Addr = addr
	}
	if url := strings.TrimSpace(o.Poll); url != "" {
		cfg.Poll.URL = url
	}
	if len(o.Files) > 0 {
		cfg.Files.Paths = append(cfg.Files.Paths, o.Files...)
	}
}

// App owns every service of one logdeck process. New constructs them
// without any cross-service subscription; Start wires subscriptions and
// starts producers.
type App struct {
	cfg     config.Config
	logger  *logging.Logger
	metrics *metrics.Prometheus

	Store      *state.Store
	Index      *mdc.Index
	Filter     *ctxfilter.Filter
	Dispatcher *dispatch.Dispatcher
	Watchdog   *dispatch.Watchdog

	producers []source.Producer
	started   []source.Producer
}

// New constructs the services described by cfg.
func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	prom := metrics.NewPrometheus()

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: prom,
		Store: state.New(state.Options{
			MaxEntries:    cfg.Store.MaxEntries,
			TrimThreshold: cfg.Store.TrimThreshold,
			TrimTarget:    cfg.Store.TrimTarget,
		}, logger.Component("store"), prom),
		Index:  mdc.NewIndex(logger.Component("index"), prom),
		Filter: ctxfilter.New(logger.Component("filter"), prom),
		Dispatcher: dispatch.New(dispatch.Options{
			QueueCap:      cfg.Dispatch.QueueCap,
			BatchSize:     cfg.Dispatch.BatchSize,
			FlushInterval: cfg.Dispatch.FlushInterval.Duration,
			SlowDelivery:  cfg.Dispatch.SlowDelivery.Duration,
		}, logger.Component("dispatch"), prom),
		Watchdog: dispatch.NewWatchdog(
			cfg.Dispatch.LivenessInterval.Duration,
			cfg.Dispatch.StallMultiple,
			logger.Component("watchdog"),
			prom,
		),
	}
	a.Watchdog.Monitor(a.Dispatcher)

	producers, err := a.buildProducers()
	if err != nil {
		return nil, err
	}
	a.producers = producers
	return a, nil
}

// buildProducers creates one producer per configured source.
func (a *App) buildProducers() ([]source.Producer, error) {
	cfg := a.cfg
	var out []source.Producer

	if cfg.Listen.Addr != "" {
		out = append(out, server.New("listener", cfg.Listen.Addr, server.Deps{
			Dispatcher: a.Dispatcher,
			Store:      a.Store,
			Watchdog:   a.Watchdog,
			Metrics:    a.metrics.Handler(),
		}, a.logger.Component("server"), a.metrics))
	}

	if cfg.Poll.URL != "" {
		client, err := poller.NewClient(cfg.Poll.URL)
		if err != nil {
			return nil, fmt.Errorf("init poller: %w", err)
		}
		out = append(out, poller.New("poll", client, cfg.Poll.Interval.Duration,
			a.Dispatcher, a.logger.Component("poller"), a.metrics))
	}

	if len(cfg.Files.Paths) > 0 {
		out = append(out, filetail.New("files", filetail.Options{
			Patterns:  cfg.Files.Paths,
			TailLines: cfg.Files.TailLines,
			Follow:    cfg.Files.Follow,
		}, a.Dispatcher, a.logger.Component("files"), a.metrics))
	}

	if len(cfg.Kafka.Brokers) > 0 || cfg.Kafka.Topic != "" {
		out = append(out, kafka.New("kafka", kafka.Options{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Group:   cfg.Kafka.Group,
		}, a.Dispatcher, a.logger.Component("kafka"), a.metrics))
	}

	return out, nil
}

// Producers returns the configured producers.
func (a *App) Producers() []source.Producer {
	return a.producers
}

// Start wires the index to the store and the store to the dispatcher, then
// starts every producer. If a producer fails to start, the ones already
// running are stopped and the error is returned.
func (a *App) Start(ctx context.Context) error {
	a.Index.Start(a.Store)
	if err := a.Dispatcher.AddDestination(storeDestination, a.Store); err != nil {
		return fmt.Errorf("wire store: %w", err)
	}

	for _, p := range a.producers {
		if err := p.Start(ctx); err != nil {
			a.Stop()
			return fmt.Errorf("start %s: %w", p.Name(), err)
		}
		a.started = append(a.started, p)
		a.logger.Info("producer started", "producer", p.Name())
	}
	return nil
}

// Stop stops every started producer in reverse start order.
func (a *App) Stop() {
	for i := len(a.started) - 1; i >= 0; i-- {
		a.started[i].Stop()
	}
	a.started = nil
}

// Serve runs the dispatcher and watchdog loops until front returns or ctx
// is cancelled. Producers are stopped before the dispatcher's final flush.
func (a *App) Serve(ctx context.Context, front func(ctx context.Context) error) error {
	loopCtx, stopLoops := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Dispatcher.Run(loopCtx) })
	g.Go(func() error { return a.Watchdog.Run(loopCtx) })
	g.Go(func() error {
		defer stopLoops()
		defer a.Stop()
		return front(gctx)
	})
	return g.Wait()
}

// loadPrefs falls back to the defaults on any error and logs it.
func loadPrefs(path string, logger *slog.Logger) prefs.Prefs {
	p, err := prefs.Load(path)
	if err != nil {
		logger.Warn("load prefs, using defaults", "error", err)
	}
	return p
}

// Run boots logdeck until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(&cfg)

	logger, closeLog, err := setupLogging(cfg, opts)
	if err != nil {
		return err
	}
	defer closeLog()
	logging.SetDefault(logger)

	a, err := New(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	if opts.Headless {
		if len(a.producers) == 0 {
			a.Stop()
			return errors.New("nothing to ingest: configure a listener, poller, files or kafka")
		}
		return a.Serve(ctx, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
	}

	userPrefs := loadPrefs(opts.PrefsPath, logger.Logger)
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	return a.Serve(ctx, func(ctx context.Context) error {
		return ui.Run(ctx, ui.Options{
			Store:      a.Store,
			Index:      a.Index,
			Filter:     a.Filter,
			Dispatcher: a.Dispatcher,
			Watchdog:   a.Watchdog,
			Prefs:      userPrefs,
			PrefsPath:  prefsPath,
			Logger:     logger.Component("ui"),
		})
	})
}

// setupLogging writes to stderr in headless mode and to the configured log
// file while the TUI owns the terminal.
func setupLogging(cfg config.Config, opts Options) (*logging.Logger, func(), error) {
	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Headless {
		w := opts.LogOutput
		if w == nil {
			w = os.Stderr
		}
		return logging.New(level, cfg.LogFormat, w), func() {}, nil
	}
	if cfg.LogFile == "" {
		return logging.New(level, cfg.LogFormat, io.Discard), func() {}, nil
	}
	f, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(level, cfg.LogFormat, f), func() { _ = f.Close() }, nil
}
