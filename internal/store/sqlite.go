package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ngm-data/causelist/internal/checkpoint"
	"github.com/ngm-data/causelist/internal/model"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS court_cases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_number TEXT NOT NULL,
		court_id TEXT NOT NULL,
		registration_date_bs TEXT NOT NULL DEFAULT '',
		registration_date_ad DATE,
		case_type TEXT NOT NULL DEFAULT '',
		division TEXT NOT NULL DEFAULT '',
		plaintiff TEXT NOT NULL DEFAULT '',
		defendant TEXT NOT NULL DEFAULT '',
		enrichment_status TEXT NOT NULL DEFAULT 'pending',
		registration_number TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		case_status TEXT NOT NULL DEFAULT '',
		verdict_date_bs TEXT NOT NULL DEFAULT '',
		verdict_date_ad DATE,
		verdict_judge TEXT NOT NULL DEFAULT '',
		hearing_count TEXT NOT NULL DEFAULT '',
		extra_data TEXT,
		enriched_at TIMESTAMP,
		first_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (case_number, court_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_court_cases_enrichment
		ON court_cases (court_id, enrichment_status)`,
	`CREATE TABLE IF NOT EXISTS case_hearings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_number TEXT NOT NULL,
		court_id TEXT NOT NULL,
		hearing_date_bs TEXT NOT NULL,
		hearing_date_ad DATE,
		bench TEXT NOT NULL DEFAULT '',
		bench_type TEXT NOT NULL DEFAULT '',
		judge_names TEXT NOT NULL DEFAULT '',
		lawyer_names TEXT NOT NULL DEFAULT '',
		serial_no TEXT NOT NULL DEFAULT '',
		case_status TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT '',
		extra_data TEXT,
		scraped_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (case_number, court_id, hearing_date_bs, bench)
	)`,
	`CREATE TABLE IF NOT EXISTS case_entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_number TEXT NOT NULL,
		court_id TEXT NOT NULL,
		side TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		UNIQUE (case_number, court_id, side, name, address)
	)`,
	`CREATE TABLE IF NOT EXISTS scrape_log (
		court_id TEXT NOT NULL,
		date_bs TEXT NOT NULL,
		summary TEXT,
		scraped_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (court_id, date_bs)
	)`,
	`CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		courts TEXT NOT NULL DEFAULT '[]',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		units_done INTEGER NOT NULL DEFAULT 0,
		units_blocked INTEGER NOT NULL DEFAULT 0,
		cases_upserted INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	)`,
}

// SQLiteStore backs single-machine runs with an embedded database.
type SQLiteStore struct {
	sdb *sql.DB
	log *zap.Logger
}

// OpenSQLite opens (or creates) the database file. ":memory:" works for
// tests.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.L()
	}
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open sqlite at %s", path)
	}
	// WAL lets the enrichment pass read while a crawl writes. A single
	// writer avoids SQLITE_BUSY churn.
	sdb.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := sdb.ExecContext(ctx, pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "store: apply %s", pragma)
		}
	}
	return &SQLiteStore{sdb: sdb, log: log.Named("store")}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteMigrations {
		if _, err := s.sdb.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: run migration")
		}
	}
	return nil
}

func (s *SQLiteStore) Close() {
	if err := s.sdb.Close(); err != nil {
		s.log.Warn("closing sqlite", zap.Error(err))
	}
}

const sqliteCaseUpsert = `INSERT INTO court_cases
	(case_number, court_id, registration_date_bs, registration_date_ad,
	 case_type, division, plaintiff, defendant, enrichment_status, extra_data, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (case_number, court_id) DO UPDATE SET
	 registration_date_bs = CASE WHEN court_cases.registration_date_bs = '' THEN excluded.registration_date_bs ELSE court_cases.registration_date_bs END,
	 registration_date_ad = COALESCE(court_cases.registration_date_ad, excluded.registration_date_ad),
	 case_type = CASE WHEN court_cases.case_type = '' THEN excluded.case_type ELSE court_cases.case_type END,
	 division = CASE WHEN court_cases.division = '' THEN excluded.division ELSE court_cases.division END,
	 plaintiff = CASE WHEN court_cases.plaintiff = '' THEN excluded.plaintiff ELSE court_cases.plaintiff END,
	 defendant = CASE WHEN court_cases.defendant = '' THEN excluded.defendant ELSE court_cases.defendant END,
	 extra_data = COALESCE(court_cases.extra_data, excluded.extra_data),
	 updated_at = excluded.updated_at`

const sqliteHearingInsert = `INSERT OR IGNORE INTO case_hearings
	(case_number, court_id, hearing_date_bs, hearing_date_ad, bench, bench_type,
	 judge_names, lawyer_names, serial_no, case_status, remarks, extra_data, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) CommitUnit(ctx context.Context, courtID, dateBS string, cases []*model.CaseRecord, sum checkpoint.Summary) (int64, error) {
	tx, err := s.sdb.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: commit unit: begin tx")
	}
	defer tx.Rollback()

	var written int64
	now := time.Now().UTC()
	for _, c := range cases {
		res, err := tx.ExecContext(ctx, sqliteCaseUpsert,
			c.Key.Number, c.Key.CourtID, c.RegistrationDateBS, c.RegistrationDateAD,
			c.CaseType, c.Division, c.Plaintiff, c.Defendant,
			string(model.EnrichmentPending), encodeExtra(c.ExtraData), now)
		if err != nil {
			return 0, eris.Wrapf(err, "store: upsert case %s at %s", c.Key.Number, c.Key.CourtID)
		}
		n, _ := res.RowsAffected()
		written += n

		for _, h := range c.Hearings {
			if _, err := tx.ExecContext(ctx, sqliteHearingInsert, hearingRow(h)...); err != nil {
				return 0, eris.Wrapf(err, "store: insert hearing for %s at %s", h.Key.Number, h.Key.CourtID)
			}
		}
	}

	payload, err := json.Marshal(sum)
	if err != nil {
		return 0, eris.Wrap(err, "store: encode summary")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO scrape_log (court_id, date_bs, summary, scraped_at) VALUES (?, ?, ?, ?)`,
		courtID, dateBS, string(payload), now); err != nil {
		return 0, eris.Wrapf(err, "store: mark %s %s", courtID, dateBS)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "store: commit unit %s %s", courtID, dateBS)
	}
	return written, nil
}

func (s *SQLiteStore) DoneDates(ctx context.Context, courtID string) (map[string]struct{}, error) {
	rows, err := s.sdb.QueryContext(ctx,
		`SELECT date_bs FROM scrape_log WHERE court_id = ?`, courtID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: query done dates for %s", courtID)
	}
	defer rows.Close()

	done := make(map[string]struct{})
	for rows.Next() {
		var dateBS string
		if err := rows.Scan(&dateBS); err != nil {
			return nil, eris.Wrap(err, "store: scan done date")
		}
		done[dateBS] = struct{}{}
	}
	return done, rows.Err()
}

func (s *SQLiteStore) Checkpoints(ctx context.Context, courtID string, limit int) ([]checkpoint.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sdb.QueryContext(ctx,
		`SELECT court_id, date_bs, summary, scraped_at FROM scrape_log
		 WHERE court_id = ? ORDER BY date_bs DESC LIMIT ?`, courtID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list checkpoints for %s", courtID)
	}
	defer rows.Close()

	var entries []checkpoint.Entry
	for rows.Next() {
		var (
			e       checkpoint.Entry
			payload sql.NullString
		)
		if err := rows.Scan(&e.CourtID, &e.DateBS, &payload, &e.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan checkpoint")
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Summary); err != nil {
				return nil, eris.Wrapf(err, "store: decode summary for %s %s", e.CourtID, e.DateBS)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const sqliteCaseSelect = `SELECT case_number, court_id, registration_date_bs, registration_date_ad,
	case_type, division, plaintiff, defendant, enrichment_status,
	registration_number, subject, case_status, verdict_date_bs, verdict_date_ad,
	verdict_judge, hearing_count, extra_data, enriched_at, updated_at
	FROM court_cases`

func (s *SQLiteStore) GetCase(ctx context.Context, key model.CaseKey) (*model.CaseRecord, error) {
	row := s.sdb.QueryRowContext(ctx,
		sqliteCaseSelect+` WHERE case_number = ? AND court_id = ?`,
		key.Number, key.CourtID)
	c, err := scanCase(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "case %s at %s", key.Number, key.CourtID)
		}
		return nil, eris.Wrapf(err, "store: load case %s at %s", key.Number, key.CourtID)
	}
	return c, nil
}

func (s *SQLiteStore) PendingEnrichment(ctx context.Context, courtID string, limit int) ([]model.CaseRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sdb.QueryContext(ctx,
		sqliteCaseSelect+` WHERE court_id = ? AND enrichment_status = ?
		 ORDER BY registration_date_bs DESC LIMIT ?`,
		courtID, string(model.EnrichmentPending), limit)
	if err != nil {
		return nil, eris.Wrapf(err, "store: query pending enrichment for %s", courtID)
	}
	defer rows.Close()

	var out []model.CaseRecord
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan pending case")
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ApplyEnrichment(ctx context.Context, c *model.CaseRecord, entities []model.EntityRecord, hearings []model.HearingRecord) error {
	tx, err := s.sdb.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: apply enrichment: begin tx")
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT enrichment_status FROM court_cases WHERE case_number = ? AND court_id = ?`,
		c.Key.Number, c.Key.CourtID).Scan(&status)
	if err != nil {
		return eris.Wrapf(err, "store: apply enrichment: load case %s at %s", c.Key.Number, c.Key.CourtID)
	}
	if status == string(model.EnrichmentEnriched) {
		return ErrAlreadyEnriched
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE court_cases SET
			enrichment_status = ?, registration_number = ?, subject = ?,
			case_status = ?, verdict_date_bs = ?, verdict_date_ad = ?,
			verdict_judge = ?, hearing_count = ?, extra_data = ?,
			enriched_at = ?, updated_at = ?
		 WHERE case_number = ? AND court_id = ?`,
		string(model.EnrichmentEnriched), c.RegistrationNumber, c.Subject,
		c.CaseStatus, c.VerdictDateBS, c.VerdictDateAD, c.VerdictJudge,
		c.HearingCount, encodeExtra(c.ExtraData), now, now,
		c.Key.Number, c.Key.CourtID)
	if err != nil {
		return eris.Wrapf(err, "store: apply enrichment: update case %s at %s", c.Key.Number, c.Key.CourtID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM case_entities WHERE case_number = ? AND court_id = ?`,
		c.Key.Number, c.Key.CourtID); err != nil {
		return eris.Wrapf(err, "store: clear entities for %s at %s", c.Key.Number, c.Key.CourtID)
	}
	for _, e := range entities {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO case_entities (case_number, court_id, side, name, address)
			 VALUES (?, ?, ?, ?, ?)`,
			c.Key.Number, c.Key.CourtID, string(e.Side), e.Name, e.Address); err != nil {
			return eris.Wrapf(err, "store: insert entity for %s at %s", c.Key.Number, c.Key.CourtID)
		}
	}

	for _, h := range hearings {
		if _, err := tx.ExecContext(ctx, sqliteHearingInsert, hearingRow(h)...); err != nil {
			return eris.Wrapf(err, "store: insert detail hearing for %s at %s", h.Key.Number, h.Key.CourtID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "store: apply enrichment: commit for %s at %s", c.Key.Number, c.Key.CourtID)
	}
	return nil
}

func (s *SQLiteStore) MarkEnrichmentFailed(ctx context.Context, key model.CaseKey) error {
	_, err := s.sdb.ExecContext(ctx,
		`UPDATE court_cases SET enrichment_status = ?, updated_at = ?
		 WHERE case_number = ? AND court_id = ? AND enrichment_status <> ?`,
		string(model.EnrichmentFailed), time.Now().UTC(),
		key.Number, key.CourtID, string(model.EnrichmentEnriched))
	if err != nil {
		return eris.Wrapf(err, "store: mark enrichment failed for %s at %s", key.Number, key.CourtID)
	}
	return nil
}

func (s *SQLiteStore) ResetEnrichment(ctx context.Context, courtID string) (int64, error) {
	query := `UPDATE court_cases SET enrichment_status = ?, updated_at = ? WHERE enrichment_status = ?`
	args := []any{string(model.EnrichmentPending), time.Now().UTC(), string(model.EnrichmentFailed)}
	if courtID != "" {
		query += ` AND court_id = ?`
		args = append(args, courtID)
	}
	res, err := s.sdb.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "store: reset enrichment")
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.sdb.QueryRowContext(ctx, `SELECT
		(SELECT count(*) FROM court_cases),
		(SELECT count(*) FROM case_hearings),
		(SELECT count(*) FROM case_entities),
		(SELECT count(*) FROM court_cases WHERE enrichment_status = 'pending'),
		(SELECT count(*) FROM court_cases WHERE enrichment_status = 'enriched'),
		(SELECT count(*) FROM court_cases WHERE enrichment_status = 'failed'),
		(SELECT count(*) FROM scrape_log)`,
	).Scan(&st.Cases, &st.Hearings, &st.Entities, &st.Pending, &st.Enriched,
		&st.Failed, &st.UnitsDone)
	if err != nil {
		return Stats{}, eris.Wrap(err, "store: query stats")
	}

	var last time.Time
	err = s.sdb.QueryRowContext(ctx,
		`SELECT scraped_at FROM scrape_log ORDER BY scraped_at DESC LIMIT 1`).Scan(&last)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return Stats{}, eris.Wrap(err, "store: query last scrape time")
	default:
		st.LastScrapedAt = &last
	}
	return st, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, run *RunRecord) error {
	courts, err := json.Marshal(run.Courts)
	if err != nil {
		return eris.Wrap(err, "store: encode run courts")
	}
	_, err = s.sdb.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, kind, courts, started_at) VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.Kind, string(courts), run.StartedAt)
	if err != nil {
		return eris.Wrapf(err, "store: record run %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *RunRecord) error {
	_, err := s.sdb.ExecContext(ctx,
		`UPDATE crawl_runs SET finished_at = ?, units_done = ?, units_blocked = ?,
		 cases_upserted = ?, notes = ? WHERE id = ?`,
		run.FinishedAt, run.UnitsDone, run.UnitsBlocked, run.CasesUpserted,
		run.Notes, run.ID.String())
	if err != nil {
		return eris.Wrapf(err, "store: finish run %s", run.ID)
	}
	return nil
}
