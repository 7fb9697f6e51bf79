package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rewired-gh/alertbell/internal/logger"
	"github.com/rewired-gh/alertbell/internal/models"
)

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPostgresPool creates a connection pool from a connection string and
// verifies it with a ping.
func NewPostgresPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to history database (max_conns=%d)", poolConfig.MaxConns)
	return pool, nil
}

// Postgres reads histories from a table with columns
// (symbol TEXT, metric TEXT, ts TIMESTAMPTZ, value DOUBLE PRECISION).
type Postgres struct {
	db           Querier
	table        string
	metric       string
	lookbackDays int
	now          func() time.Time
}

// NewPostgres returns a provider reading metric for the last lookbackDays
// days. A non-positive lookbackDays reads the whole history.
func NewPostgres(db Querier, table, metric string, lookbackDays int) *Postgres {
	return &Postgres{
		db:           db,
		table:        table,
		metric:       metric,
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

func (p *Postgres) query() string {
	return fmt.Sprintf(
		`SELECT ts, value FROM %s WHERE symbol = $1 AND metric = $2 AND ts >= $3 ORDER BY ts`,
		pgx.Identifier{p.table}.Sanitize(),
	)
}

func (p *Postgres) since() time.Time {
	if p.lookbackDays <= 0 {
		return time.Unix(0, 0).UTC()
	}
	return p.now().AddDate(0, 0, -p.lookbackDays)
}

func (p *Postgres) History(ctx context.Context, symbol models.Symbol) (*models.Frame, error) {
	rows, err := p.db.Query(ctx, p.query(), symbol.Name(), p.metric, p.since())
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", symbol.Name(), err)
	}
	defer rows.Close()

	var points []models.HistoryPoint
	for rows.Next() {
		var point models.HistoryPoint
		if err := rows.Scan(&point.Timestamp, &point.Value); err != nil {
			return nil, fmt.Errorf("failed to scan history row for %s: %w", symbol.Name(), err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", symbol.Name(), err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return models.NewFrame(p.metric, points), nil
}
