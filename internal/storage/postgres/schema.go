package postgres

import "context"

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS engine_events (
	seq        BIGINT PRIMARY KEY,
	event_name TEXT NOT NULL,
	event_ts   BIGINT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_snapshots (
	token0            TEXT NOT NULL,
	token1            TEXT NOT NULL,
	seq               BIGINT NOT NULL,
	total_reserve0    NUMERIC NOT NULL,
	total_reserve1    NUMERIC NOT NULL,
	position_reserve0 NUMERIC NOT NULL,
	position_reserve1 NUMERIC NOT NULL,
	spot_sqrtprice    DOUBLE PRECISION NOT NULL,
	liquidities       TEXT[] NOT NULL,
	positions         INTEGER NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (token0, token1)
);

CREATE TABLE IF NOT EXISTS pool_summaries (
	token0           TEXT NOT NULL,
	token1           TEXT NOT NULL,
	swap_count       BIGINT NOT NULL,
	volume0          NUMERIC NOT NULL,
	volume1          NUMERIC NOT NULL,
	fee0             NUMERIC NOT NULL,
	fee1             NUMERIC NOT NULL,
	reserve0         NUMERIC NOT NULL,
	reserve1         NUMERIC NOT NULL,
	fee_rate0        NUMERIC,
	fee_rate1        NUMERIC,
	apr              NUMERIC,
	positions_opened BIGINT NOT NULL,
	positions_closed BIGINT NOT NULL,
	tick_crossings   BIGINT NOT NULL,
	spot_sqrtprice   DOUBLE PRECISION NOT NULL,
	first_seq        BIGINT NOT NULL,
	last_seq         BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (token0, token1)
);

CREATE TABLE IF NOT EXISTS engine_state (
	name       TEXT PRIMARY KEY,
	last_seq   BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}
