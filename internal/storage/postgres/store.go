package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairPool/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	sender        TEXT NOT NULL,
	sell_asset    TEXT NOT NULL,
	buy_asset     TEXT NOT NULL DEFAULT '',
	amount_in     NUMERIC(78, 0) NOT NULL,
	amount_out    NUMERIC(78, 0) NOT NULL,
	payout_status TEXT NOT NULL,
	payout_error  TEXT NOT NULL DEFAULT '',
	chain_id      BIGINT,
	block_number  BIGINT,
	tx_hash       TEXT,
	log_index     BIGINT,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS pool_snapshots (
	name       TEXT PRIMARY KEY,
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS watcher_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE watcher_state ADD COLUMN IF NOT EXISTS last_log_index BIGINT NOT NULL DEFAULT 0;
ALTER TABLE watcher_state ADD COLUMN IF NOT EXISTS partial BOOLEAN NOT NULL DEFAULT false;
`

// Store provides Postgres persistence for settlements, snapshots and watcher state.
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

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutSettlements inserts settlements or updates their payout status.
func (s *Store) PutSettlements(ctx context.Context, settlements []model.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, st := range settlements {
		var (
			chainID, block, logIndex *int64
			txHash                   *string
		)
		if src := st.Source; src != nil {
			c, b, l := int64(src.ChainID), int64(src.BlockNumber), int64(src.LogIndex)
			chainID, block, logIndex, txHash = &c, &b, &l, &src.TxHash
		}
		batch.Queue(`
			INSERT INTO settlements (
				id, kind, sender, sell_asset, buy_asset, amount_in, amount_out,
				payout_status, payout_error, chain_id, block_number, tx_hash, log_index,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id)
			DO UPDATE SET
				payout_status = EXCLUDED.payout_status,
				payout_error = EXCLUDED.payout_error,
				updated_at = EXCLUDED.updated_at
		`,
			st.ID,
			st.Kind,
			st.Sender,
			st.SellAsset,
			st.BuyAsset,
			st.AmountIn,
			st.AmountOut,
			st.PayoutStatus,
			st.PayoutError,
			chainID,
			block,
			txHash,
			logIndex,
			parseTime(st.CreatedAt),
			parseTime(st.UpdatedAt),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range settlements {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert settlement: %w", err)
		}
	}
	return nil
}

// SaveSnapshot upserts the snapshot stored under name.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.PoolSnapshot) error {
	if name == "" {
		return fmt.Errorf("snapshot name required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (name, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, name, data)
	return err
}

// LoadSnapshot returns the snapshot stored under name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.PoolSnapshot, bool, error) {
	var snap model.PoolSnapshot
	if name == "" {
		return snap, false, fmt.Errorf("snapshot name required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM pool_snapshots WHERE name=$1`, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snap, false, nil
		}
		return snap, false, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// LoadState returns the watcher cursor stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (model.Cursor, bool, error) {
	if name == "" {
		return model.Cursor{}, false, fmt.Errorf("state name required")
	}
	var (
		block, index int64
		partial      bool
	)
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block, last_log_index, partial FROM watcher_state WHERE name=$1`, name)
	if err := row.Scan(&block, &index, &partial); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Cursor{}, false, nil
		}
		return model.Cursor{}, false, err
	}
	return model.Cursor{Block: uint64(block), LogIndex: uint64(index), Partial: partial}, true, nil
}

// SaveState upserts the watcher cursor for name.
func (s *Store) SaveState(ctx context.Context, name string, cursor model.Cursor) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watcher_state (name, last_processed_block, last_log_index, partial, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block,
			last_log_index = EXCLUDED.last_log_index,
			partial = EXCLUDED.partial,
			updated_at = now()
	`, name, int64(cursor.Block), int64(cursor.LogIndex), cursor.Partial)
	return err
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Now().UTC()
	}
	return ts
}
