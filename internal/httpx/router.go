package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/quasr/internal/dsl"
	"github.com/AngelCh415/quasr/internal/export"
	"github.com/AngelCh415/quasr/internal/metrics"
	"github.com/AngelCh415/quasr/internal/models"
	"github.com/AngelCh415/quasr/internal/utils"
)

const maxBodyBytes = 1 << 20

type Options struct {
	QueryTimeout   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	// Ready reports whether the database is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

type handler struct {
	log  *slog.Logger
	svc  *metrics.Service
	inst *Instruments
	opts Options
}

func NewRouter(log *slog.Logger, svc *metrics.Service, inst *Instruments, opts Options) http.Handler {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	h := &handler{log: log, svc: svc, inst: inst, opts: opts}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", h.readyz)
	mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	mux.Group(func(r chi.Router) {
		r.Use(utils.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
		r.Post("/", h.query)
		r.Post("/query", h.query)
		r.Post("/sql", h.sql)
	})

	return mux
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
	w.Write([]byte("ready"))
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if h.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.QueryTimeout)
		defer cancel()
	}

	rows, err := h.svc.Run(ctx, q)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, metrics.ErrMissingDate) {
			status = http.StatusInternalServerError
		}
		h.inst.countQuery(strconv.Itoa(status))
		h.log.Error("query failed",
			slog.String("rid", utils.RID(r.Context())),
			slog.String("org_id", q.OrgID),
			slog.String("err", err.Error()))
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		h.inst.countQuery("500")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.inst.countQuery("200")
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Vary", "Accept-Encoding")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *handler) sql(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decode(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.svc.SQL(q)))
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request) (models.Query, bool) {
	q, err := dsl.Parse(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.inst.countQuery("400")
		h.log.Warn("rejected query", slog.String("rid", utils.RID(r.Context())), slog.String("err", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return models.Query{}, false
	}
	return q, true
}
