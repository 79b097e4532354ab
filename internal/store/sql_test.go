package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/quasr/internal/models"
	"github.com/AngelCh415/quasr/internal/sqlgen"
)

var resultColumns = []string{"sourceValue", "name", "ad_platform", "marketing_node", "qdate"}

func TestSQLStore_LoadMapsNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	const stmt = "SELECT 1"
	mock.ExpectQuery(stmt).WillReturnRows(sqlmock.NewRows(resultColumns).
		AddRow(1.5, "Cost", "Twitter", "n1", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)).
		AddRow(nil, "Install", "Twitter", nil, nil).
		AddRow(3.0, "Click", "Twitter", "n2", []byte("2020-01-03")))

	rows, err := NewSQLStore(db).Load(context.Background(), stmt)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1.5, rows[0].Value)
	assert.Equal(t, "Cost", rows[0].MetricName)
	assert.Equal(t, "Twitter", rows[0].AdPlatform)
	require.NotNil(t, rows[0].MarketingNode)
	assert.Equal(t, "n1", *rows[0].MarketingNode)
	require.NotNil(t, rows[0].Date)
	assert.Equal(t, civil.Date{Year: 2020, Month: 1, Day: 2}, *rows[0].Date)

	assert.Equal(t, 0.0, rows[1].Value, "NULL sourceValue counts as zero")
	assert.Nil(t, rows[1].MarketingNode)
	assert.Nil(t, rows[1].Date)

	require.NotNil(t, rows[2].Date)
	assert.Equal(t, civil.Date{Year: 2020, Month: 1, Day: 3}, *rows[2].Date)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LoadPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT").WillReturnError(boom)

	_, err = NewSQLStore(db).Load(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle"}, discardLogger())
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := mysqlDSN("user:pw@tcp(localhost:3306)/ads")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = mysqlDSN("not a dsn")
	assert.Error(t, err)
}

func TestSQLStore_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ads.sqlite")
	s, err := Open(ctx, Options{Driver: "sqlite3", DSN: path}, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	seedSQLite(t, s.db)

	q := models.Query{
		OrgID:         "org1",
		StartDate:     civil.Date{Year: 2020, Month: 1, Day: 1},
		EndDate:       civil.Date{Year: 2020, Month: 1, Day: 2},
		NodeBreakdown: models.Ptr(models.Ad),
		TimeBreakdown: models.TimeBreakdownDay,
		Metrics:       []models.Metric{models.UpperFunnelMetric{Name: "Cost"}},
	}
	rows, err := s.Load(ctx, sqlgen.Build(q))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byDate := map[civil.Date]float64{}
	for _, r := range rows {
		require.NotNil(t, r.Date)
		require.NotNil(t, r.MarketingNode)
		assert.Equal(t, "ad1", *r.MarketingNode)
		assert.Equal(t, "Cost", r.MetricName)
		byDate[*r.Date] = r.Value
	}
	assert.Equal(t, 3.0, byDate[civil.Date{Year: 2020, Month: 1, Day: 1}])
	assert.Equal(t, 5.0, byDate[civil.Date{Year: 2020, Month: 1, Day: 2}])
}

func seedSQLite(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE UpperFunnelMetricFields (id TEXT PRIMARY KEY, name TEXT NOT NULL, organizationId TEXT NOT NULL)`,
		`CREATE TABLE Properties (id TEXT PRIMARY KEY, campaignId TEXT, adSetId TEXT, adId TEXT)`,
		`CREATE TABLE UpperFunnelMetricValues (id TEXT PRIMARY KEY, date DATE NOT NULL, upperFunnelMetricFieldId TEXT NOT NULL, propertyId TEXT NOT NULL, sourceValue REAL)`,
		`INSERT INTO UpperFunnelMetricFields VALUES ('f1', 'Cost', 'org1'), ('f2', 'Install', 'org1'), ('f3', 'Cost', 'org2')`,
		`INSERT INTO Properties VALUES ('p1', 'c1', 's1', 'ad1')`,
		`INSERT INTO UpperFunnelMetricValues VALUES
			('v1', '2020-01-01', 'f1', 'p1', 1.0),
			('v2', '2020-01-01', 'f1', 'p1', 2.0),
			('v3', '2020-01-02', 'f1', 'p1', 5.0),
			('v4', '2020-01-02', 'f2', 'p1', 7.0),
			('v5', '2020-01-02', 'f3', 'p1', 11.0),
			('v6', '2020-01-03', 'f1', 'p1', 13.0)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
