package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"backtester/internal/model"
)

// PostgresRepository is a CandleRepository backed by a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

var _ CandleRepository = (*PostgresRepository)(nil)

// NewPostgresRepository connects to dsn and verifies the connection.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS candles (
	symbol     VARCHAR(20) NOT NULL,
	timeframe  VARCHAR(4)  NOT NULL,
	open_time  BIGINT      NOT NULL,
	open       NUMERIC     NOT NULL,
	high       NUMERIC     NOT NULL,
	low        NUMERIC     NOT NULL,
	close      NUMERIC     NOT NULL,
	volume     NUMERIC     NOT NULL,
	PRIMARY KEY (symbol, timeframe, open_time)
);

CREATE TABLE IF NOT EXISTS candle_fetches (
	id         SERIAL PRIMARY KEY,
	symbol     VARCHAR(20) NOT NULL,
	timeframe  VARCHAR(4)  NOT NULL,
	start_time BIGINT      NOT NULL,
	end_time   BIGINT      NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS candle_fetches_lookup
	ON candle_fetches (symbol, timeframe, start_time, end_time);`

// Migrate creates the cache tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveCandles upserts candles and records the fetched range in one transaction.
func (r *PostgresRepository) SaveCandles(ctx context.Context, symbol, interval string, startMs, endMs int64, candles []model.Candle) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(candles) > 0 {
		batch := &pgx.Batch{}
		for _, c := range candles {
			batch.Queue(`
				INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT DO NOTHING`,
				symbol, interval, c.Timestamp,
				c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String(),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert candles: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO candle_fetches (symbol, timeframe, start_time, end_time) VALUES ($1, $2, $3, $4)`,
		symbol, interval, startMs, endMs,
	)
	if err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadCandles reads cached candles in [startMs, endMs).
func (r *PostgresRepository) LoadCandles(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]model.Candle, bool, error) {
	var covered bool
	err := r.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM candle_fetches
			WHERE symbol = $1 AND timeframe = $2 AND start_time <= $3 AND end_time >= $4
		)`,
		symbol, interval, startMs, endMs,
	).Scan(&covered)
	if err != nil {
		return nil, false, fmt.Errorf("check coverage: %w", err)
	}
	if !covered {
		return nil, false, nil
	}

	rows, err := r.Pool.Query(ctx, `
		SELECT open_time, open::text, high::text, low::text, close::text, volume::text
		FROM candles
		WHERE symbol = $1 AND timeframe = $2 AND open_time >= $3 AND open_time < $4
		ORDER BY open_time`,
		symbol, interval, startMs, endMs,
	)
	if err != nil {
		return nil, false, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var (
			c      model.Candle
			fields [5]string
		)
		if err := rows.Scan(&c.Timestamp, &fields[0], &fields[1], &fields[2], &fields[3], &fields[4]); err != nil {
			return nil, false, fmt.Errorf("scan candle: %w", err)
		}
		values := make([]decimal.Decimal, len(fields))
		for i, f := range fields {
			if values[i], err = decimal.NewFromString(f); err != nil {
				return nil, false, fmt.Errorf("parse candle %d: %w", c.Timestamp, err)
			}
		}
		c.Open, c.High, c.Low, c.Close, c.Volume = values[0], values[1], values[2], values[3], values[4]
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("read candles: %w", err)
	}
	return candles, true, nil
}
