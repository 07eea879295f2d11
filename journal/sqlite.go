package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/bintrader/market"
)

// Schema is applied on open. Money columns are TEXT so decimals round-trip
// without float rounding.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id    TEXT PRIMARY KEY,
	timestamp   DATETIME NOT NULL,
	asset       TEXT NOT NULL,
	direction   TEXT NOT NULL,
	stake       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	profit_loss TEXT NOT NULL,
	daily_pnl   TEXT NOT NULL,
	policy      TEXT NOT NULL,
	cycle_level INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
`

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Append(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, timestamp, asset, direction, stake, outcome, profit_loss, daily_pnl, policy, cycle_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Time.UTC(), t.Asset, t.Direction.String(), t.Stake,
		t.Outcome.String(), t.PnL, t.DailyPnL, t.Policy, t.Level,
	)
	return err
}

// ListBetween returns trades with timestamp in [start, end), oldest first.
func (j *SQLiteJournal) ListBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, timestamp, asset, direction, stake, outcome, profit_loss, daily_pnl, policy, cycle_level
		FROM trades
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, trade_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec       TradeRecord
			direction string
			outcome   string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Time,
			&rec.Asset,
			&direction,
			&rec.Stake,
			&outcome,
			&rec.PnL,
			&rec.DailyPnL,
			&rec.Policy,
			&rec.Level,
		); err != nil {
			return nil, err
		}
		if rec.Direction, err = market.ParseDirection(direction); err != nil {
			return nil, err
		}
		if rec.Outcome, err = market.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
