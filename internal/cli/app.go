package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AngelCh415/quasr/internal/config"
	"github.com/AngelCh415/quasr/internal/httpx"
	"github.com/AngelCh415/quasr/internal/metrics"
	"github.com/AngelCh415/quasr/internal/sqlgen"
	"github.com/AngelCh415/quasr/internal/store"
)

// App is a configured query service together with its database handle.
type App struct {
	Service *metrics.Service
	ready   func(context.Context) error
	close   func() error
}

// OpenApp connects the store selected by cfg.DBDriver. The memory driver
// serves store.DemoRows.
func OpenApp(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...metrics.ServiceOption) (*App, error) {
	var (
		exec    store.Executor
		ready   = func(context.Context) error { return nil }
		closeFn = func() error { return nil }
	)
	if cfg.DBDriver == "memory" || cfg.DBDriver == "" {
		exec = store.NewMemoryStore(store.DemoRows()...)
		log.Warn("no database configured, serving demo rows")
	} else {
		st, err := store.Open(ctx, store.Options{
			Driver:       cfg.DBDriver,
			DSN:          cfg.DatabaseURL,
			MaxOpenConns: cfg.DBMaxOpenConns,
			PingRetries:  3,
			PingBackoff:  500 * time.Millisecond,
		}, log)
		if err != nil {
			return nil, err
		}
		exec, ready, closeFn = st, st.Ping, st.Close
	}

	opts = append([]metrics.ServiceOption{
		metrics.WithBuilder(sqlgen.NewBuilder(sqlgen.WithPlatformTag(cfg.PlatformTag))),
	}, opts...)
	return &App{
		Service: metrics.NewService(exec, log, opts...),
		ready:   ready,
		close:   closeFn,
	}, nil
}

func (a *App) Close() error { return a.close() }

// NewServer opens the app and wraps it in an HTTP server exposing the
// router. Collectors are registered on reg and served from gather.
func NewServer(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, gather prometheus.Gatherer) (*http.Server, *App, error) {
	inst := httpx.NewInstruments(reg)
	app, err := OpenApp(ctx, cfg, log, metrics.WithObserver(inst))
	if err != nil {
		return nil, nil, err
	}
	r := httpx.NewRouter(log, app.Service, inst, httpx.Options{
		QueryTimeout:   cfg.QueryTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		CORSOrigins:    cfg.CORSOrigins,
		Ready:          app.ready,
		Gatherer:       gather,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.QueryTimeout + cfg.HTTPTimeout,
	}
	return srv, app, nil
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, log *slog.Logger, grace time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(sctx)
}
