// Package checkpoint records which (court, date) work units have been
// fully harvested so later runs can skip them. A unit is marked done only
// after every row discovered for it has been committed; re-marking an
// already-done unit is a no-op.
package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/ngm-data/causelist/internal/db"
)

// Summary captures what one completed work unit yielded.
type Summary struct {
	Benches int  `json:"benches"`
	Cases   int  `json:"cases"`
	NoData  bool `json:"no_data,omitempty"`
}

// Entry is one ledger row.
type Entry struct {
	CourtID   string
	DateBS    string
	Summary   Summary
	ScrapedAt time.Time
}

// Ledger reads and writes the scrape_log table.
type Ledger struct {
	pool db.Pool
}

// NewLedger creates a Ledger on the given pool.
func NewLedger(pool db.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// IsDone reports whether the (court, date) unit has already been marked.
func (l *Ledger) IsDone(ctx context.Context, courtID, dateBS string) (bool, error) {
	var done bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scrape_log WHERE court_id = $1 AND date_bs = $2)`,
		courtID, dateBS,
	).Scan(&done)
	if err != nil {
		return false, eris.Wrapf(err, "checkpoint: query done state for %s %s", courtID, dateBS)
	}
	return done, nil
}

// DoneDates returns the set of dates already marked for a court. The
// calendar iterator consults this once per run instead of probing per
// date.
func (l *Ledger) DoneDates(ctx context.Context, courtID string) (map[string]struct{}, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT date_bs FROM scrape_log WHERE court_id = $1`, courtID)
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: query done dates for %s", courtID)
	}
	defer rows.Close()

	done := make(map[string]struct{})
	for rows.Next() {
		var dateBS string
		if err := rows.Scan(&dateBS); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan done date")
		}
		done[dateBS] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: iterate done dates for %s", courtID)
	}
	return done, nil
}

// MarkDone records a completed unit. Idempotent: a concurrent or repeated
// mark for the same unit leaves the first entry in place.
func (l *Ledger) MarkDone(ctx context.Context, courtID, dateBS string, sum Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode summary")
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO scrape_log (court_id, date_bs, summary) VALUES ($1, $2, $3)
		 ON CONFLICT (court_id, date_bs) DO NOTHING`,
		courtID, dateBS, payload)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: mark %s %s", courtID, dateBS)
	}
	return nil
}

// MarkDoneTx is MarkDone inside an existing transaction, so the mark
// commits atomically with the unit's case rows.
func (l *Ledger) MarkDoneTx(ctx context.Context, tx pgx.Tx, courtID, dateBS string, sum Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode summary")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO scrape_log (court_id, date_bs, summary) VALUES ($1, $2, $3)
		 ON CONFLICT (court_id, date_bs) DO NOTHING`,
		courtID, dateBS, payload)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: mark %s %s", courtID, dateBS)
	}
	return nil
}

// List returns the most recent ledger entries for a court, newest first.
func (l *Ledger) List(ctx context.Context, courtID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT court_id, date_bs, summary, scraped_at FROM scrape_log
		 WHERE court_id = $1 ORDER BY date_bs DESC LIMIT $2`,
		courtID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: list entries for %s", courtID)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			payload []byte
		)
		if err := rows.Scan(&e.CourtID, &e.DateBS, &payload, &e.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan entry")
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Summary); err != nil {
				return nil, eris.Wrapf(err, "checkpoint: decode summary for %s %s", e.CourtID, e.DateBS)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: iterate entries for %s", courtID)
	}
	return entries, nil
}
