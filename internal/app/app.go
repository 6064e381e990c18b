package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"NewsAtlas/internal/api"
	"NewsAtlas/internal/config"
	"NewsAtlas/internal/geo"
	"NewsAtlas/internal/geotag"
	"NewsAtlas/internal/infrastructure/llm"
	"NewsAtlas/internal/infrastructure/parser"
	"NewsAtlas/internal/infrastructure/queue"
	"NewsAtlas/internal/infrastructure/scheduler"
	"NewsAtlas/internal/infrastructure/storage"
	"NewsAtlas/internal/logging"
	"NewsAtlas/internal/metrics"
	"NewsAtlas/internal/ports"
	"NewsAtlas/internal/usecase"
)

const stopTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics

	tasks   []task
	closers []func() error
}

type task struct {
	name string
	run  func(ctx context.Context) error
}

func newApplication(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		reg:     reg,
		metrics: metrics.New(reg),
	}
}

// NewEnricher builds the queue consumer that classifies and stores feed items.
func NewEnricher(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.ValidateEnricher(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := newApplication(cfg, baseLogger)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	q, err := a.connectQueue(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	if err := a.addEnricher(store, q); err != nil {
		return nil, a.abort(err)
	}
	a.addHTTP("metrics", cfg.Metrics.Addr, a.metricsHandler())
	return a, nil
}

// NewFeeder builds the poller that publishes feed items on the queue.
func NewFeeder(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.ValidateFeeder(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := newApplication(cfg, baseLogger)

	q, err := a.connectQueue(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	a.addFeeder(q)
	a.addHTTP("metrics", cfg.Feeder.MetricsAddr, a.metricsHandler())
	return a, nil
}

// NewDashboard builds the read-only HTTP API over the record store.
func NewDashboard(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.ValidateDashboard(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := newApplication(cfg, baseLogger)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	if err := a.addDashboard(store); err != nil {
		return nil, a.abort(err)
	}
	return a, nil
}

// NewStandalone runs feeder, enricher and dashboard in one process sharing a
// single store and queue connection. It is the only mode where the memory
// driver is useful.
func NewStandalone(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := errors.Join(cfg.ValidateEnricher(), cfg.ValidateFeeder(), cfg.ValidateDashboard()); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := newApplication(cfg, baseLogger)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	q, err := a.connectQueue(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	if err := a.addEnricher(store, q); err != nil {
		return nil, a.abort(err)
	}
	a.addFeeder(q)
	if err := a.addDashboard(store); err != nil {
		return nil, a.abort(err)
	}
	return a, nil
}

// Run starts every task and blocks until ctx is done or one of them fails.
// Resources are released before it returns.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range a.tasks {
		g.Go(func() error {
			a.logger.Debug("task started", "task", t.name)
			if err := t.run(gctx); err != nil {
				return fmt.Errorf("%s: %w", t.name, err)
			}
			a.logger.Debug("task stopped", "task", t.name)
			return nil
		})
	}

	err := g.Wait()
	return errors.Join(err, a.Close())
}

// Close releases resources in reverse order of acquisition.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) abort(err error) error {
	return errors.Join(err, a.Close())
}

func (a *Application) openStore(ctx context.Context) (ports.RecordStore, error) {
	store, closeFn, err := storage.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, closeFn)
	a.logger.Info("record store ready", "driver", a.cfg.Database.Driver)
	return store, nil
}

func (a *Application) connectQueue(ctx context.Context) (*queue.JetStream, error) {
	q, err := queue.Connect(ctx, a.cfg.NATS, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, q.Close)
	return q, nil
}

func (a *Application) addEnricher(store ports.RecordStore, consumer ports.Consumer) error {
	table, err := geo.LoadTable()
	if err != nil {
		return fmt.Errorf("load country table: %w", err)
	}
	classifier, err := llm.New(a.cfg.Classifier)
	if err != nil {
		return err
	}

	enricher := usecase.NewEnricher(usecase.EnricherDeps{
		Resolver:   geo.NewResolver(table),
		Classifier: classifier,
		Store:      store,
		Metrics:    a.metrics,
		Logger:     a.logger.With("component", "enricher"),
		Retry: usecase.RetryPolicy{
			MaxAttempts:     a.cfg.Retry.MaxAttempts,
			InitialInterval: a.cfg.Retry.InitialInterval,
			MaxInterval:     a.cfg.Retry.MaxInterval,
		},
		Timeout: a.cfg.Classifier.Timeout,
	})

	a.tasks = append(a.tasks, task{name: "enricher", run: func(ctx context.Context) error {
		return consumer.Consume(ctx, enricher.Handle)
	}})
	return nil
}

func (a *Application) addFeeder(publisher ports.Publisher) {
	source := parser.NewFeedSource(
		parser.NewRSSReader(nil),
		geotag.NewRegistry(),
		a.cfg.Feeds,
		a.logger.With("component", "source"),
	)
	poller := usecase.NewPoller(
		scheduler.NewCronScheduler(a.cfg.Feeder.Schedule, a.logger),
		source,
		publisher,
		a.metrics,
		a.logger,
	)

	a.tasks = append(a.tasks, task{name: "feeder", run: func(ctx context.Context) error {
		if err := poller.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		return poller.Stop(stopCtx)
	}})
}

func (a *Application) addDashboard(store ports.RecordStore) error {
	table, err := geo.LoadTable()
	if err != nil {
		return fmt.Errorf("load country table: %w", err)
	}

	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := a.logger.With("component", "api")
	handlers := api.NewHandlers(store, table, a.cfg.Dashboard.Jitter, log)
	router := api.NewRouter(handlers, a.cfg.Dashboard.CORSOrigins, a.metricsHandler(), log)
	a.addHTTP("dashboard", a.cfg.Dashboard.Addr, router)
	return nil
}

func (a *Application) addHTTP(name, addr string, handler http.Handler) {
	if addr == "" {
		return
	}
	srv := api.NewServer(addr, handler, a.logger.With("component", name))
	a.tasks = append(a.tasks, task{name: name, run: srv.Run})
}

func (a *Application) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{Registry: a.reg})
}
