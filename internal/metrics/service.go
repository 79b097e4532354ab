package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AngelCh415/quasr/internal/models"
	"github.com/AngelCh415/quasr/internal/sqlgen"
	"github.com/AngelCh415/quasr/internal/store"
)

// Observer receives per-stage timings and result sizes.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveRows(in, out int)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) ObserveRows(int, int)               {}

type Service struct {
	exec    store.Executor
	builder *sqlgen.Builder
	log     *slog.Logger
	obs     Observer
}

type ServiceOption func(*Service)

func WithBuilder(b *sqlgen.Builder) ServiceOption {
	return func(s *Service) { s.builder = b }
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.obs = o }
}

func NewService(exec store.Executor, log *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{exec: exec, builder: sqlgen.NewBuilder(), log: log, obs: nopObserver{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) SQL(q models.Query) string { return s.builder.Build(q) }

// Run compiles q, executes it once and returns the sorted output rows.
// Execution errors are returned wrapped and are never retried.
func (s *Service) Run(ctx context.Context, q models.Query) ([]models.OutputDataRow, error) {
	start := time.Now()
	stmt := s.builder.Build(q)
	s.obs.ObserveStage("build", time.Since(start))
	s.log.Debug("compiled query", slog.String("org_id", q.OrgID), slog.String("sql", stmt))

	start = time.Now()
	in, err := s.exec.Load(ctx, stmt)
	s.obs.ObserveStage("execute", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	start = time.Now()
	out, err := Transform(q, in)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	SortRows(out)
	s.obs.ObserveStage("transform", time.Since(start))
	s.obs.ObserveRows(len(in), len(out))

	s.log.Info("query complete",
		slog.String("org_id", q.OrgID),
		slog.Int("metrics", len(q.Metrics)),
		slog.Int("rows_in", len(in)),
		slog.Int("rows_out", len(out)))
	return out, nil
}
