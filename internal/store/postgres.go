package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/checkpoint"
	"github.com/ngm-data/causelist/internal/db"
	"github.com/ngm-data/causelist/internal/model"
)

// Schema statements are executed one at a time and are all idempotent.
var pgMigrations = []string{
	`CREATE TABLE IF NOT EXISTS court_cases (
		id BIGSERIAL PRIMARY KEY,
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
		extra_data JSONB,
		enriched_at TIMESTAMPTZ,
		first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (case_number, court_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_court_cases_enrichment
		ON court_cases (court_id, enrichment_status)`,
	`CREATE TABLE IF NOT EXISTS case_hearings (
		id BIGSERIAL PRIMARY KEY,
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
		extra_data JSONB,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (case_number, court_id, hearing_date_bs, bench)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_case_hearings_case
		ON case_hearings (court_id, case_number)`,
	`CREATE TABLE IF NOT EXISTS case_entities (
		id BIGSERIAL PRIMARY KEY,
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
		summary JSONB,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (court_id, date_bs)
	)`,
	`CREATE TABLE IF NOT EXISTS crawl_runs (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		courts TEXT[] NOT NULL DEFAULT '{}',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		units_done INT NOT NULL DEFAULT 0,
		units_blocked INT NOT NULL DEFAULT 0,
		cases_upserted BIGINT NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	)`,
}

var caseColumns = []string{
	"case_number", "court_id", "registration_date_bs", "registration_date_ad",
	"case_type", "division", "plaintiff", "defendant", "enrichment_status",
	"extra_data", "updated_at",
}

var hearingColumns = []string{
	"case_number", "court_id", "hearing_date_bs", "hearing_date_ad",
	"bench", "bench_type", "judge_names", "lawyer_names", "serial_no",
	"case_status", "remarks", "extra_data", "scraped_at",
}

// PostgresStore is the production backend.
type PostgresStore struct {
	pool   db.Pool
	ledger *checkpoint.Ledger
	log    *zap.Logger
}

// NewPostgres wraps an existing pool. Used directly by tests with pgxmock.
func NewPostgres(pool db.Pool, log *zap.Logger) *PostgresStore {
	if log == nil {
		log = zap.L()
	}
	return &PostgresStore{
		pool:   pool,
		ledger: checkpoint.NewLedger(pool),
		log:    log.Named("store"),
	}
}

// OpenPostgres connects and pings.
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse postgres dsn")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return NewPostgres(pool, log), nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range pgMigrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: run migration")
		}
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CommitUnit(ctx context.Context, courtID, dateBS string, cases []*model.CaseRecord, sum checkpoint.Summary) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: commit unit: begin tx")
	}
	defer tx.Rollback(ctx)

	var written int64
	if len(cases) > 0 {
		caseRows := make([][]any, 0, len(cases))
		var hearingRows [][]any
		now := time.Now().UTC()
		for _, c := range cases {
			caseRows = append(caseRows, []any{
				c.Key.Number, c.Key.CourtID, c.RegistrationDateBS, c.RegistrationDateAD,
				c.CaseType, c.Division, c.Plaintiff, c.Defendant, string(model.EnrichmentPending),
				encodeExtra(c.ExtraData), now,
			})
			for _, h := range c.Hearings {
				hearingRows = append(hearingRows, hearingRow(h))
			}
		}

		written, err = db.BulkUpsertTx(ctx, tx, db.UpsertConfig{
			Table:        "court_cases",
			Columns:      caseColumns,
			ConflictKeys: []string{"case_number", "court_id"},
			UpdateCols:   []string{"updated_at"},
			FillEmptyCols: []string{
				"registration_date_bs", "registration_date_ad", "case_type",
				"division", "plaintiff", "defendant", "extra_data",
			},
		}, caseRows)
		if err != nil {
			return 0, err
		}

		if _, err := db.BulkUpsertTx(ctx, tx, db.UpsertConfig{
			Table:        "case_hearings",
			Columns:      hearingColumns,
			ConflictKeys: []string{"case_number", "court_id", "hearing_date_bs", "bench"},
			DoNothing:    true,
		}, hearingRows); err != nil {
			return 0, err
		}
	}

	if err := s.ledger.MarkDoneTx(ctx, tx, courtID, dateBS, sum); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "store: commit unit %s %s", courtID, dateBS)
	}
	return written, nil
}

func (s *PostgresStore) DoneDates(ctx context.Context, courtID string) (map[string]struct{}, error) {
	return s.ledger.DoneDates(ctx, courtID)
}

func (s *PostgresStore) Checkpoints(ctx context.Context, courtID string, limit int) ([]checkpoint.Entry, error) {
	return s.ledger.List(ctx, courtID, limit)
}

const caseSelectColumns = `case_number, court_id, registration_date_bs, registration_date_ad,
	case_type, division, plaintiff, defendant, enrichment_status,
	registration_number, subject, case_status, verdict_date_bs, verdict_date_ad,
	verdict_judge, hearing_count, extra_data, enriched_at, updated_at`

func (s *PostgresStore) GetCase(ctx context.Context, key model.CaseKey) (*model.CaseRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+caseSelectColumns+` FROM court_cases WHERE case_number = $1 AND court_id = $2`,
		key.Number, key.CourtID)
	c, err := scanCase(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "case %s at %s", key.Number, key.CourtID)
		}
		return nil, eris.Wrapf(err, "store: load case %s at %s", key.Number, key.CourtID)
	}
	return c, nil
}

func (s *PostgresStore) PendingEnrichment(ctx context.Context, courtID string, limit int) ([]model.CaseRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+caseSelectColumns+` FROM court_cases
		 WHERE court_id = $1 AND enrichment_status = $2
		 ORDER BY registration_date_bs DESC LIMIT $3`,
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
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "store: iterate pending cases for %s", courtID)
	}
	return out, nil
}

func (s *PostgresStore) ApplyEnrichment(ctx context.Context, c *model.CaseRecord, entities []model.EntityRecord, hearings []model.HearingRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: apply enrichment: begin tx")
	}
	defer tx.Rollback(ctx)

	// Lock the row and re-check: a concurrent enrichment pass may have
	// finished this case between our read and now.
	var status string
	err = tx.QueryRow(ctx,
		`SELECT enrichment_status FROM court_cases
		 WHERE case_number = $1 AND court_id = $2 FOR UPDATE`,
		c.Key.Number, c.Key.CourtID).Scan(&status)
	if err != nil {
		return eris.Wrapf(err, "store: apply enrichment: lock case %s at %s", c.Key.Number, c.Key.CourtID)
	}
	if status == string(model.EnrichmentEnriched) {
		return ErrAlreadyEnriched
	}

	_, err = tx.Exec(ctx,
		`UPDATE court_cases SET
			enrichment_status = $3, registration_number = $4, subject = $5,
			case_status = $6, verdict_date_bs = $7, verdict_date_ad = $8,
			verdict_judge = $9, hearing_count = $10, extra_data = $11,
			enriched_at = now(), updated_at = now()
		 WHERE case_number = $1 AND court_id = $2`,
		c.Key.Number, c.Key.CourtID, string(model.EnrichmentEnriched),
		c.RegistrationNumber, c.Subject, c.CaseStatus, c.VerdictDateBS,
		c.VerdictDateAD, c.VerdictJudge, c.HearingCount, encodeExtra(c.ExtraData))
	if err != nil {
		return eris.Wrapf(err, "store: apply enrichment: update case %s at %s", c.Key.Number, c.Key.CourtID)
	}

	if err := s.replaceEntities(ctx, tx, c.Key, entities); err != nil {
		return err
	}

	if len(hearings) > 0 {
		rows := make([][]any, 0, len(hearings))
		for _, h := range hearings {
			rows = append(rows, hearingRow(h))
		}
		if _, err := db.BulkUpsertTx(ctx, tx, db.UpsertConfig{
			Table:        "case_hearings",
			Columns:      hearingColumns,
			ConflictKeys: []string{"case_number", "court_id", "hearing_date_bs", "bench"},
			DoNothing:    true,
		}, rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "store: apply enrichment: commit for %s at %s", c.Key.Number, c.Key.CourtID)
	}
	return nil
}

// replaceEntities reconciles the stored party set against the freshly
// parsed one: rows no longer present are deleted, new ones inserted,
// unchanged ones left alone so their ids stay stable.
func (s *PostgresStore) replaceEntities(ctx context.Context, tx pgx.Tx, key model.CaseKey, entities []model.EntityRecord) error {
	rows, err := tx.Query(ctx,
		`SELECT id, side, name, address FROM case_entities
		 WHERE case_number = $1 AND court_id = $2`,
		key.Number, key.CourtID)
	if err != nil {
		return eris.Wrapf(err, "store: load entities for %s at %s", key.Number, key.CourtID)
	}

	type entityKey struct{ side, name, address string }
	existing := map[entityKey]int64{}
	for rows.Next() {
		var (
			id                  int64
			side, name, address string
		)
		if err := rows.Scan(&id, &side, &name, &address); err != nil {
			rows.Close()
			return eris.Wrap(err, "store: scan entity")
		}
		existing[entityKey{side, name, address}] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrapf(err, "store: iterate entities for %s at %s", key.Number, key.CourtID)
	}

	wanted := map[entityKey]bool{}
	for _, e := range entities {
		k := entityKey{string(e.Side), e.Name, e.Address}
		wanted[k] = true
		if _, ok := existing[k]; ok {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO case_entities (case_number, court_id, side, name, address)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
			key.Number, key.CourtID, string(e.Side), e.Name, e.Address); err != nil {
			return eris.Wrapf(err, "store: insert entity for %s at %s", key.Number, key.CourtID)
		}
	}

	for k, id := range existing {
		if wanted[k] {
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM case_entities WHERE id = $1`, id); err != nil {
			return eris.Wrapf(err, "store: delete stale entity %d", id)
		}
	}
	return nil
}

func (s *PostgresStore) MarkEnrichmentFailed(ctx context.Context, key model.CaseKey) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE court_cases SET enrichment_status = $3, updated_at = now()
		 WHERE case_number = $1 AND court_id = $2 AND enrichment_status <> $4`,
		key.Number, key.CourtID, string(model.EnrichmentFailed), string(model.EnrichmentEnriched))
	if err != nil {
		return eris.Wrapf(err, "store: mark enrichment failed for %s at %s", key.Number, key.CourtID)
	}
	return nil
}

func (s *PostgresStore) ResetEnrichment(ctx context.Context, courtID string) (int64, error) {
	sql := `UPDATE court_cases SET enrichment_status = $1, updated_at = now()
	        WHERE enrichment_status = $2`
	args := []any{string(model.EnrichmentPending), string(model.EnrichmentFailed)}
	if courtID != "" {
		sql += ` AND court_id = $3`
		args = append(args, courtID)
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrap(err, "store: reset enrichment")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT count(*) FROM court_cases),
		(SELECT count(*) FROM case_hearings),
		(SELECT count(*) FROM case_entities),
		(SELECT count(*) FROM court_cases WHERE enrichment_status = 'pending'),
		(SELECT count(*) FROM court_cases WHERE enrichment_status = 'enriched'),
		(SELECT count(*) FROM court_cases WHERE enrichment_status = 'failed'),
		(SELECT count(*) FROM scrape_log),
		(SELECT max(scraped_at) FROM scrape_log)`,
	).Scan(&st.Cases, &st.Hearings, &st.Entities, &st.Pending, &st.Enriched,
		&st.Failed, &st.UnitsDone, &st.LastScrapedAt)
	if err != nil {
		return Stats{}, eris.Wrap(err, "store: query stats")
	}
	return st, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, run *RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_runs (id, kind, courts, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Kind, run.Courts, run.StartedAt)
	if err != nil {
		return eris.Wrapf(err, "store: record run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE crawl_runs SET finished_at = $2, units_done = $3, units_blocked = $4,
		 cases_upserted = $5, notes = $6 WHERE id = $1`,
		run.ID, run.FinishedAt, run.UnitsDone, run.UnitsBlocked, run.CasesUpserted, run.Notes)
	if err != nil {
		return eris.Wrapf(err, "store: finish run %s", run.ID)
	}
	return nil
}

type caseScanner interface {
	Scan(dest ...any) error
}

func scanCase(row caseScanner) (*model.CaseRecord, error) {
	var (
		c      model.CaseRecord
		extra  []byte
		status string
	)
	err := row.Scan(
		&c.Key.Number, &c.Key.CourtID, &c.RegistrationDateBS, &c.RegistrationDateAD,
		&c.CaseType, &c.Division, &c.Plaintiff, &c.Defendant, &status,
		&c.RegistrationNumber, &c.Subject, &c.CaseStatus, &c.VerdictDateBS,
		&c.VerdictDateAD, &c.VerdictJudge, &c.HearingCount, &extra,
		&c.EnrichedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.EnrichmentStatus(status)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &c.ExtraData); err != nil {
			return nil, eris.Wrap(err, "store: decode extra_data")
		}
	}
	return &c, nil
}

func hearingRow(h model.HearingRecord) []any {
	scrapedAt := h.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}
	return []any{
		h.Key.Number, h.Key.CourtID, h.HearingDateBS, h.HearingDateAD,
		h.Bench, h.BenchType, h.JudgeNames, h.LawyerNames, h.SerialNo,
		h.CaseStatus, h.Remarks, encodeExtra(h.ExtraData), scrapedAt,
	}
}

// encodeExtra marshals the free-form payload, or NULL when empty.
func encodeExtra(extra map[string]any) []byte {
	if len(extra) == 0 {
		return nil
	}
	payload, err := json.Marshal(extra)
	if err != nil {
		return nil
	}
	return payload
}
