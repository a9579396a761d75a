package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/model"
)

// Store provides Postgres persistence for engine events and pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WriteEvents inserts events keyed by sequence number. Pool state updates
// also refresh the pool_snapshots row of their pool.
func (s *Store) WriteEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		record, err := ev.Record()
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO engine_events (seq, event_name, event_ts, data, created_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(record.Seq),
			string(record.Name),
			int64(record.Timestamp),
			[]byte(record.Data),
		)
		if update, ok := ev.Data.(model.UpdatePoolStateEventData); ok {
			snap := update.Snapshot
			snap.Seq = ev.Seq
			queueSnapshot(batch, snap)
		}
	}
	return s.exec(ctx, batch)
}

// UpsertPoolSnapshots inserts or updates pool snapshot rows.
func (s *Store) UpsertPoolSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		queueSnapshot(batch, snap)
	}
	return s.exec(ctx, batch)
}

func queueSnapshot(batch *pgx.Batch, snap model.PoolSnapshot) {
	liquidities := make([]string, 0, len(snap.Liquidities))
	for _, l := range snap.Liquidities {
		liquidities = append(liquidities, l.String())
	}
	batch.Queue(`
		INSERT INTO pool_snapshots (
			token0, token1, seq, total_reserve0, total_reserve1, position_reserve0,
			position_reserve1, spot_sqrtprice, liquidities, positions, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
		ON CONFLICT (token0, token1)
		DO UPDATE SET
			seq = EXCLUDED.seq,
			total_reserve0 = EXCLUDED.total_reserve0,
			total_reserve1 = EXCLUDED.total_reserve1,
			position_reserve0 = EXCLUDED.position_reserve0,
			position_reserve1 = EXCLUDED.position_reserve1,
			spot_sqrtprice = EXCLUDED.spot_sqrtprice,
			liquidities = EXCLUDED.liquidities,
			positions = EXCLUDED.positions,
			updated_at = now()
		WHERE pool_snapshots.seq <= EXCLUDED.seq
	`,
		snap.Token0,
		snap.Token1,
		int64(snap.Seq),
		snap.TotalReserve0,
		snap.TotalReserve1,
		snap.PositionReserve0,
		snap.PositionReserve1,
		snap.SpotSqrtprice,
		liquidities,
		snap.Positions,
	)
}

// WriteSummaries upserts one pool_summaries row per pool.
func (s *Store) WriteSummaries(ctx context.Context, summaries []model.PoolSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range summaries {
		batch.Queue(`
			INSERT INTO pool_summaries (
				token0, token1, swap_count, volume0, volume1, fee0, fee1, reserve0, reserve1,
				fee_rate0, fee_rate1, apr, positions_opened, positions_closed, tick_crossings,
				spot_sqrtprice, first_seq, last_seq, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (token0, token1)
			DO UPDATE SET
				swap_count = EXCLUDED.swap_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				apr = EXCLUDED.apr,
				positions_opened = EXCLUDED.positions_opened,
				positions_closed = EXCLUDED.positions_closed,
				tick_crossings = EXCLUDED.tick_crossings,
				spot_sqrtprice = EXCLUDED.spot_sqrtprice,
				first_seq = LEAST(pool_summaries.first_seq, EXCLUDED.first_seq),
				last_seq = EXCLUDED.last_seq,
				updated_at = now()
		`,
			m.Token0,
			m.Token1,
			int64(m.SwapCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.Reserve0,
			m.Reserve1,
			m.FeeRate0,
			m.FeeRate1,
			m.APR,
			int64(m.PositionsOpened),
			int64(m.PositionsClosed),
			int64(m.TickCrossings),
			m.SpotSqrtprice,
			int64(m.FirstSeq),
			int64(m.LastSeq),
		)
	}
	return s.exec(ctx, batch)
}

func (s *Store) exec(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_seq for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq uint64
	row := s.pool.QueryRow(ctx, `SELECT last_seq FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seq, true, nil
}

// SaveState upserts last_seq for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, last_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, updated_at = now()
	`, name, seq)
	return err
}

// Checkpoint binds the engine_state row of one run name.
type Checkpoint struct {
	Store *Store
	Name  string
}

func (c Checkpoint) Load(ctx context.Context) (uint64, bool, error) {
	return c.Store.LoadState(ctx, c.Name)
}

func (c Checkpoint) Save(ctx context.Context, lastSeq uint64) error {
	return c.Store.SaveState(ctx, c.Name, lastSeq)
}
