package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/AngelCh415/quasr/internal/models"
	"github.com/AngelCh415/quasr/internal/utils"
)

// Executor runs a compiled statement and returns its rows.
type Executor interface {
	Load(ctx context.Context, query string) ([]models.InputDataRow, error)
}

var ErrUnknownDriver = errors.New("unknown database driver")

type Options struct {
	Driver       string // mysql or sqlite3
	DSN          string
	MaxOpenConns int
	PingRetries  int
	PingBackoff  time.Duration
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// Open connects and pings the database, retrying the ping with
// exponential backoff.
func Open(ctx context.Context, opts Options, log *slog.Logger) (*SQLStore, error) {
	dsn := opts.DSN
	switch opts.Driver {
	case "mysql":
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	case "sqlite3":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	b := utils.NewBackoff(opts.PingBackoff, opts.PingRetries)
	err = b.Do(ctx, func(i int) error {
		err := db.PingContext(ctx)
		if err != nil {
			log.Warn("database ping failed", slog.Int("attempt", i+1), slog.String("err", err.Error()))
		}
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}
	return &SQLStore{db: db}, nil
}

// mysqlDSN forces parseTime so DATE columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }

// Load maps result columns by name: sourceValue, qdate, name,
// marketing_node and ad_platform. A NULL sourceValue counts as 0.
func (s *SQLStore) Load(ctx context.Context, query string) ([]models.InputDataRow, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var (
		value    sql.NullFloat64
		date     dateValue
		name     string
		node     sql.NullString
		platform string
		discard  sql.RawBytes
	)
	dest := make([]any, len(cols))
	for i, c := range cols {
		switch c {
		case "sourceValue":
			dest[i] = &value
		case "qdate":
			dest[i] = &date
		case "name":
			dest[i] = &name
		case "marketing_node":
			dest[i] = &node
		case "ad_platform":
			dest[i] = &platform
		default:
			dest[i] = &discard
		}
	}

	var out []models.InputDataRow
	for rows.Next() {
		value, date, node = sql.NullFloat64{}, dateValue{}, sql.NullString{}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := models.InputDataRow{
			Value:      value.Float64,
			MetricName: name,
			AdPlatform: platform,
		}
		if date.valid {
			r.Date = models.Ptr(date.d)
		}
		if node.Valid {
			r.MarketingNode = models.Ptr(node.String)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// dateValue scans a nullable DATE delivered either as time.Time or as
// YYYY-MM-DD text, depending on driver and DSN settings.
type dateValue struct {
	d     civil.Date
	valid bool
}

func (v *dateValue) Scan(src any) error {
	switch t := src.(type) {
	case nil:
		*v = dateValue{}
		return nil
	case time.Time:
		*v = dateValue{d: civil.DateOf(t), valid: true}
		return nil
	case []byte:
		return v.parse(string(t))
	case string:
		return v.parse(t)
	}
	return fmt.Errorf("unsupported date value %T", src)
}

func (v *dateValue) parse(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return err
	}
	*v = dateValue{d: d, valid: true}
	return nil
}
