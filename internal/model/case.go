// Package model defines the persisted record types: court cases, hearings,
// and the party entities attached to a case.
package model

import (
	"time"

	"github.com/ngm-data/causelist/internal/nepcal"
)

// EnrichmentStatus tracks whether a case has been through the detail
// enrichment pass. Transitions are pending -> {enriched, failed}; the only
// way back to pending is an explicit reset.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// EntitySide tags a party as plaintiff or defendant.
type EntitySide string

const (
	SidePlaintiff EntitySide = "plaintiff"
	SideDefendant EntitySide = "defendant"
)

// CaseKey is the natural key of a case: the case number together with the
// court it was observed at. Unique across the store.
type CaseKey struct {
	Number  string `json:"case_number"`
	CourtID string `json:"court_id"`
}

// CaseRecord is one logical court case. Mutable fields are upserted by
// natural key, never duplicated.
type CaseRecord struct {
	Key                CaseKey          `json:"key"`
	RegistrationDateBS string           `json:"registration_date_bs,omitempty"`
	RegistrationDateAD *time.Time       `json:"registration_date_ad,omitempty"`
	CaseType           string           `json:"case_type,omitempty"`
	Division           string           `json:"division,omitempty"`
	Plaintiff          string           `json:"plaintiff,omitempty"`
	Defendant          string           `json:"defendant,omitempty"`
	Status             EnrichmentStatus `json:"status,omitempty"`

	// Enrichment fields, populated by the detail pass.
	RegistrationNumber string     `json:"registration_number,omitempty"`
	Subject            string     `json:"subject,omitempty"`
	CaseStatus         string     `json:"case_status,omitempty"`
	VerdictDateBS      string     `json:"verdict_date_bs,omitempty"`
	VerdictDateAD      *time.Time `json:"verdict_date_ad,omitempty"`
	VerdictJudge       string     `json:"verdict_judge,omitempty"`
	HearingCount       string     `json:"hearing_count,omitempty"`

	ExtraData map[string]any `json:"extra_data,omitempty"`

	EnrichedAt *time.Time `json:"enriched_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`

	Hearings []HearingRecord `json:"hearings,omitempty"`
}

// HearingRecord is one observation of a case on a daily cause list.
// Append-only: a hearing on a given date is a historical fact.
type HearingRecord struct {
	Key           CaseKey        `json:"key"`
	HearingDateBS string         `json:"hearing_date_bs"`
	HearingDateAD *time.Time     `json:"hearing_date_ad,omitempty"`
	Bench         string         `json:"bench,omitempty"`
	BenchType     string         `json:"bench_type,omitempty"`
	JudgeNames    string         `json:"judge_names,omitempty"`
	LawyerNames   string         `json:"lawyer_names,omitempty"`
	SerialNo      string         `json:"serial_no,omitempty"`
	CaseStatus    string         `json:"case_status,omitempty"`
	Remarks       string         `json:"remarks,omitempty"`
	ScrapedAt     time.Time      `json:"scraped_at"`
	ExtraData     map[string]any `json:"extra_data,omitempty"`
}

// EntityRecord is one party (person or organization) attached to a case.
type EntityRecord struct {
	Key     CaseKey    `json:"key"`
	Side    EntitySide `json:"side"`
	Name    string     `json:"name"`
	Address string     `json:"address,omitempty"`
}

// Merge folds a later observation of the same case into c. Scalar fields
// are fill-empty only (the first observation wins); hearings append.
func (c *CaseRecord) Merge(other *CaseRecord) {
	if other == nil {
		return
	}
	if c.RegistrationDateBS == "" {
		c.RegistrationDateBS = other.RegistrationDateBS
		c.RegistrationDateAD = other.RegistrationDateAD
	}
	if c.CaseType == "" {
		c.CaseType = other.CaseType
	}
	if c.Division == "" {
		c.Division = other.Division
	}
	if c.Plaintiff == "" {
		c.Plaintiff = other.Plaintiff
	}
	if c.Defendant == "" {
		c.Defendant = other.Defendant
	}
	c.Hearings = append(c.Hearings, other.Hearings...)
}

// ADDate converts a BS date string to Gregorian, returning nil when the
// date is missing or unparseable.
func ADDate(dateBS string) *time.Time {
	d, err := nepcal.ParseDate(dateBS)
	if err != nil {
		return nil
	}
	ad, err := d.Gregorian()
	if err != nil {
		return nil
	}
	return &ad
}
