// Package store persists cases, hearings, entities, and crawl bookkeeping.
// Two backends implement the same interface: PostgreSQL for production and
// SQLite for single-machine runs.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ngm-data/causelist/internal/checkpoint"
	"github.com/ngm-data/causelist/internal/model"
)

// ErrAlreadyEnriched is returned by ApplyEnrichment when another writer
// enriched the case first. Callers treat it as a skip, not a failure.
var ErrAlreadyEnriched = eris.New("store: case already enriched")

// ErrNotFound is returned by GetCase when no case matches the key.
var ErrNotFound = eris.New("store: case not found")

// Stats summarizes store contents for the status command and the HTTP
// status endpoint.
type Stats struct {
	Cases     int64 `json:"cases"`
	Hearings  int64 `json:"hearings"`
	Entities  int64 `json:"entities"`
	Pending   int64 `json:"pending_enrichment"`
	Enriched  int64 `json:"enriched"`
	Failed    int64 `json:"failed_enrichment"`
	UnitsDone int64 `json:"units_done"`

	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
}

// RunRecord is one crawl or enrichment run, for the crawl_runs audit log.
type RunRecord struct {
	ID            uuid.UUID
	Kind          string // "crawl" or "enrich"
	Courts        []string
	StartedAt     time.Time
	FinishedAt    *time.Time
	UnitsDone     int
	UnitsBlocked  int
	CasesUpserted int64
	Notes         string
}

// Store is the persistence surface the crawl and enrichment engines run
// against.
type Store interface {
	// Migrate creates or updates the schema. Idempotent.
	Migrate(ctx context.Context) error

	// CommitUnit writes a completed work unit's merged cases, their
	// hearing observations, and the checkpoint mark in one transaction.
	// Returns the number of case rows written.
	CommitUnit(ctx context.Context, courtID, dateBS string, cases []*model.CaseRecord, sum checkpoint.Summary) (int64, error)

	// DoneDates returns the checkpointed dates for a court.
	DoneDates(ctx context.Context, courtID string) (map[string]struct{}, error)

	// Checkpoints lists recent ledger entries for a court, newest first.
	Checkpoints(ctx context.Context, courtID string, limit int) ([]checkpoint.Entry, error)

	// GetCase loads one case by natural key, without hearings.
	GetCase(ctx context.Context, key model.CaseKey) (*model.CaseRecord, error)

	// PendingEnrichment returns a court's cases still awaiting the detail
	// pass, newest registration first.
	PendingEnrichment(ctx context.Context, courtID string, limit int) ([]model.CaseRecord, error)

	// ApplyEnrichment writes the detail-pass fields, reconciles the
	// party entities, and appends detail hearings, atomically. Returns
	// ErrAlreadyEnriched when a concurrent writer got there first.
	ApplyEnrichment(ctx context.Context, c *model.CaseRecord, entities []model.EntityRecord, hearings []model.HearingRecord) error

	// MarkEnrichmentFailed records a permanently failed detail pass so
	// the case is not retried every run.
	MarkEnrichmentFailed(ctx context.Context, key model.CaseKey) error

	// ResetEnrichment moves a court's failed cases back to pending.
	// Empty courtID resets all courts. Returns affected rows.
	ResetEnrichment(ctx context.Context, courtID string) (int64, error)

	Stats(ctx context.Context) (Stats, error)

	StartRun(ctx context.Context, run *RunRecord) error
	FinishRun(ctx context.Context, run *RunRecord) error

	Close()
}
