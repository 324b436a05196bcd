package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

// Repository persists fetched chart bars in Postgres. Bars are keyed on
// (symbol, resolution, epoch); refetching a range overwrites in place.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// EnsureSchema creates the bar table when it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS chart_bars (
			symbol      TEXT             NOT NULL,
			resolution  TEXT             NOT NULL,
			epoch       BIGINT           NOT NULL,
			open        DOUBLE PRECISION NOT NULL,
			high        DOUBLE PRECISION NOT NULL,
			low         DOUBLE PRECISION NOT NULL,
			close       DOUBLE PRECISION NOT NULL,
			volume      DOUBLE PRECISION NOT NULL,
			fetched_at  TIMESTAMPTZ      NOT NULL,
			PRIMARY KEY (symbol, resolution, epoch)
		)`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure chart_bars schema: %w", err)
	}
	return nil
}

// Bars

const upsertBarQuery = `
	INSERT INTO chart_bars (symbol, resolution, epoch, open, high, low, close, volume, fetched_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (symbol, resolution, epoch) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		fetched_at = EXCLUDED.fetched_at`

func (r *Repository) SaveBars(ctx context.Context, symbol, resolution string, bars []marketdata.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	fetchedAt := time.Now().UTC()

	batch := &pgx.Batch{}
	for _, bar := range bars {
		batch.Queue(upsertBarQuery,
			symbol,
			resolution,
			bar.Epoch,
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			bar.Volume,
			fetchedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save bars %s/%s: %w", symbol, resolution, err)
		}
	}
	return nil
}

func (r *Repository) GetBarsBetween(ctx context.Context, symbol, resolution string, from, to time.Time) ([]marketdata.Bar, error) {
	const query = `
		SELECT epoch, open, high, low, close, volume
		FROM chart_bars
		WHERE symbol=$1 AND resolution=$2 AND epoch >= $3 AND epoch <= $4
		ORDER BY epoch ASC`
	rows, err := r.pool.Query(ctx, query, symbol, resolution, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []marketdata.Bar
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

func (r *Repository) GetLastBars(ctx context.Context, symbol, resolution string, limit int) ([]marketdata.Bar, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	const query = `
		SELECT epoch, open, high, low, close, volume
		FROM chart_bars
		WHERE symbol=$1 AND resolution=$2
		ORDER BY epoch DESC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, symbol, resolution, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []marketdata.Bar
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

func scanBar(row pgx.Row) (marketdata.Bar, error) {
	bar := marketdata.Bar{}
	err := row.Scan(
		&bar.Epoch,
		&bar.Open,
		&bar.High,
		&bar.Low,
		&bar.Close,
		&bar.Volume,
	)
	if err != nil {
		return marketdata.Bar{}, err
	}
	return bar, nil
}
