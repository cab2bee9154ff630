package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crashengine/game"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Archive keeps every settled round in PostgreSQL, well past the in-memory history.
type Archive struct {
	pool *pgxpool.Pool
}

// RoundRecord is one archived round.
type RoundRecord struct {
	game.HistoryEntry
	MainBet    float64         `json:"mainBet"`
	SideBet    string          `json:"sideBet"`
	SideWager  float64         `json:"sideWager"`
	CashedOut  bool            `json:"cashedOut"`
	Payout     *float64        `json:"payout"`
	Settlement game.Settlement `json:"settlement"`
	Balance    float64         `json:"balance"`
}

// NewArchive connects to databaseURL and creates the schema if needed.
func NewArchive(ctx context.Context, databaseURL string) (*Archive, error) {
	slog.Info("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return nil, errors.New("database URL not set")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("✅ PostgreSQL connected successfully")

	a := &Archive{pool: pool}
	if err := a.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return a, nil
}

func (a *Archive) Close() {
	slog.Info("🔌 Closing PostgreSQL connection...")
	a.pool.Close()
}

func (a *Archive) initSchema(ctx context.Context) error {
	slog.Info("📋 Initializing database schema...")

	schema := `
	CREATE TABLE IF NOT EXISTS round_history (
		id SERIAL PRIMARY KEY,
		round_id TEXT NOT NULL UNIQUE,
		nonce BIGINT NOT NULL,
		crash_multiplier DOUBLE PRECISION NOT NULL,
		server_seed TEXT NOT NULL,
		server_seed_hash TEXT NOT NULL,
		client_seed TEXT NOT NULL,
		main_bet DOUBLE PRECISION NOT NULL,
		side_bet TEXT NOT NULL,
		side_wager DOUBLE PRECISION NOT NULL,
		cashed_out BOOLEAN NOT NULL,
		payout DOUBLE PRECISION,
		settlement JSONB NOT NULL,
		balance DOUBLE PRECISION NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_round_history_ended_at ON round_history(ended_at DESC);
	`
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create round_history table: %w", err)
	}

	slog.Info("✅ Database schema initialized")
	return nil
}

// Record archives a settled round. Re-recording the same round is a no-op.
func (a *Archive) Record(ctx context.Context, res game.RoundResult) error {
	settlementJSON, err := json.Marshal(res.Settlement)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement: %w", err)
	}

	fd := res.Entry.Fairness
	query := `
		INSERT INTO round_history
		(round_id, nonce, crash_multiplier, server_seed, server_seed_hash, client_seed,
		 main_bet, side_bet, side_wager, cashed_out, payout, settlement, balance, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (round_id) DO NOTHING
	`
	if _, err := a.pool.Exec(ctx, query,
		res.Entry.ID,
		int64(fd.Nonce),
		res.Entry.CrashMultiplier,
		fd.ServerSeed,
		fd.ServerSeedHash,
		fd.ClientSeed,
		res.MainBet,
		string(res.SideBet),
		res.SideWager,
		res.CashedOut,
		res.Payout,
		settlementJSON,
		res.Balance,
		res.Entry.EndedAt,
	); err != nil {
		return fmt.Errorf("failed to store round: %w", err)
	}

	slog.Debug("✅ Archived round", "id", res.Entry.ID, "crash", res.Entry.CrashMultiplier)
	return nil
}

const roundColumns = `
	round_id, nonce, crash_multiplier, server_seed, server_seed_hash, client_seed,
	main_bet, side_bet, side_wager, cashed_out, payout, settlement, balance, ended_at`

func scanRound(row pgx.Row) (*RoundRecord, error) {
	var (
		rec            RoundRecord
		nonce          int64
		settlementJSON []byte
	)
	if err := row.Scan(
		&rec.ID,
		&nonce,
		&rec.CrashMultiplier,
		&rec.Fairness.ServerSeed,
		&rec.Fairness.ServerSeedHash,
		&rec.Fairness.ClientSeed,
		&rec.MainBet,
		&rec.SideBet,
		&rec.SideWager,
		&rec.CashedOut,
		&rec.Payout,
		&settlementJSON,
		&rec.Balance,
		&rec.EndedAt,
	); err != nil {
		return nil, err
	}
	rec.Fairness.Nonce = uint64(nonce)

	if err := json.Unmarshal(settlementJSON, &rec.Settlement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}
	return &rec, nil
}

// GetRound returns nil when the round was never archived.
func (a *Archive) GetRound(ctx context.Context, id string) (*RoundRecord, error) {
	query := `SELECT ` + roundColumns + ` FROM round_history WHERE round_id = $1`

	rec, err := scanRound(a.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return rec, nil
}

// GetRecent returns up to limit rounds, newest first.
func (a *Archive) GetRecent(ctx context.Context, limit int) ([]*RoundRecord, error) {
	query := `SELECT ` + roundColumns + ` FROM round_history ORDER BY ended_at DESC LIMIT $1`

	rows, err := a.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query round history: %w", err)
	}
	defer rows.Close()

	records := []*RoundRecord{}
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// HealthCheck pings the pool.
func (a *Archive) HealthCheck(ctx context.Context) error {
	return a.pool.Ping(ctx)
}
