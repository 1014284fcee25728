package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/shopspring/decimal"

	"cointrader/internal/domain"
)

// Well-known metadata keys.
const (
	MetaSessionStart  = "session_started_at"
	MetaSessionEnd    = "session_ended_at"
	MetaOptimizerBest = "optimizer_best"
)

// TradeStore persists closed trades in SQLite.
type TradeStore struct {
	db *sql.DB
}

// NewTradeStore opens (or creates) the trade database with WAL mode enabled.
func NewTradeStore(dbPath string) (*TradeStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	// Metadata table for KV state (session markers, optimizer results).
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	// Prices are stored as decimal strings to keep exact values.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			size TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			pnl_pct TEXT NOT NULL,
			reason TEXT NOT NULL,
			closed_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create trades table: %w", err)
	}

	return &TradeStore{db: db}, nil
}

// RecordTrade appends one closed trade.
func (s *TradeStore) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trades (symbol, side, size, entry_price, exit_price, pnl_pct, reason, closed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.Symbol, rec.Side.String(), rec.Size.String(), rec.EntryPrice.String(),
		rec.ExitPrice.String(), rec.PnLPct.String(), string(rec.Reason), rec.ClosedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// LoadTrades returns all trades for a symbol in close order. An empty
// symbol loads every trade.
func (s *TradeStore) LoadTrades(ctx context.Context, symbol string) ([]domain.TradeRecord, error) {
	query := "SELECT symbol, side, size, entry_price, exit_price, pnl_pct, reason, closed_at FROM trades"
	args := []any{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return trades, nil
}

func scanTrade(rows *sql.Rows) (domain.TradeRecord, error) {
	var (
		rec                                  domain.TradeRecord
		side, size, entry, exit, pnl, reason string
		closedAt                             int64
	)
	if err := rows.Scan(&rec.Symbol, &side, &size, &entry, &exit, &pnl, &reason, &closedAt); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("failed to scan trade: %w", err)
	}

	parsed, err := parseDecimals(size, entry, exit, pnl)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("corrupt trade row: %w", err)
	}
	rec.Side = domain.SideFromString(side)
	rec.Size, rec.EntryPrice, rec.ExitPrice, rec.PnLPct = parsed[0], parsed[1], parsed[2], parsed[3]
	rec.Reason = domain.CloseReason(reason)
	rec.ClosedAt = time.UnixMilli(closedAt)
	return rec, nil
}

func parseDecimals(vals ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// CumulativePnLPct sums the recorded percentage P&L for a symbol.
func (s *TradeStore) CumulativePnLPct(ctx context.Context, symbol string) (decimal.Decimal, error) {
	trades, err := s.LoadTrades(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rec := range trades {
		total = total.Add(rec.PnLPct)
	}
	return total, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *TradeStore) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys
// return an empty string.
func (s *TradeStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (s *TradeStore) Close() error {
	return s.db.Close()
}
