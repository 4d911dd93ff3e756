// Package enrich runs the detail pass: for district court cases still
// pending, it posts the case number to the case detail endpoint and folds
// the response into the stored record. Each case resolves to enriched or
// failed; a reset is the only way back to pending.
package enrich

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ngm-data/causelist/internal/metrics"
	"github.com/ngm-data/causelist/internal/model"
	"github.com/ngm-data/causelist/internal/normalize"
	"github.com/ngm-data/causelist/internal/parse"
	"github.com/ngm-data/causelist/internal/resilience"
	"github.com/ngm-data/causelist/internal/sources"
	"github.com/ngm-data/causelist/internal/store"
	"github.com/ngm-data/causelist/internal/transport"
)

// Config shapes one enrichment run.
type Config struct {
	BaseURL          string
	Limit            int // cases per court per run
	CourtConcurrency int
}

// Engine drives enrichment runs.
type Engine struct {
	cfg     Config
	fetcher transport.Fetcher
	store   store.Store
	parser  *parse.Parser
	log     *zap.Logger
}

// New creates an Engine. A nil logger falls back to the global.
func New(cfg Config, fetcher transport.Fetcher, st store.Store, log *zap.Logger) *Engine {
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}
	if cfg.CourtConcurrency <= 0 {
		cfg.CourtConcurrency = 2
	}
	if log == nil {
		log = zap.L()
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		parser:  parse.New(log),
		log:     log.Named("enrich"),
	}
}

// Run enriches pending cases for the given courts. Only district courts
// carry a detail endpoint; others are skipped with a warning.
func (e *Engine) Run(ctx context.Context, courts []sources.Court) (*store.RunRecord, error) {
	ids := make([]string, len(courts))
	for i, c := range courts {
		ids[i] = c.ID
	}
	run := &store.RunRecord{
		ID:        uuid.New(),
		Kind:      "enrich",
		Courts:    ids,
		StartedAt: time.Now().UTC(),
	}
	if err := e.store.StartRun(ctx, run); err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		ok     int
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.CourtConcurrency)
	for _, court := range courts {
		if court.Kind != sources.KindDistrict || court.DistrictID == 0 {
			e.log.Warn("court has no detail endpoint, skipping", zap.String("court", court.ID))
			continue
		}
		court := court
		g.Go(func() error {
			courtOK, courtFailed := e.enrichCourt(gctx, court)
			mu.Lock()
			ok += courtOK
			failed += courtFailed
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return run, err
	}

	run.UnitsDone = ok
	run.UnitsBlocked = failed
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err := e.store.FinishRun(ctx, run); err != nil {
		return run, err
	}
	e.log.Info("enrichment run finished",
		zap.String("run_id", run.ID.String()),
		zap.Int("enriched", ok),
		zap.Int("failed", failed))
	return run, nil
}

// enrichCourt walks one court's pending queue, newest registrations
// first. A firewall block abandons the court; per-case failures are
// recorded and the walk continues.
func (e *Engine) enrichCourt(ctx context.Context, court sources.Court) (ok, failed int) {
	log := e.log.With(zap.String("court", court.ID))

	pending, err := e.store.PendingEnrichment(ctx, court.ID, e.cfg.Limit)
	if err != nil {
		log.Error("loading pending queue", zap.Error(err))
		return 0, 0
	}
	for i := range pending {
		if ctx.Err() != nil {
			return ok, failed
		}
		c := &pending[i]
		err := e.enrichCase(ctx, court, c)
		switch {
		case resilience.IsBlocked(err):
			log.Warn("firewall block, abandoning court for this run", zap.Error(err))
			return ok, failed
		case err != nil && ctx.Err() != nil:
			// Shutdown mid-case: leave it pending for the next run
			// rather than recording a failure it never had.
			return ok, failed
		case err != nil:
			failed++
			metrics.EnrichmentsFailed.WithLabelValues(court.ID).Inc()
			log.Debug("case enrichment failed",
				zap.String("case", c.Key.Number), zap.Error(err))
			if err := e.store.MarkEnrichmentFailed(ctx, c.Key); err != nil {
				log.Error("marking enrichment failed", zap.Error(err))
			}
		default:
			ok++
			metrics.EnrichmentsOK.WithLabelValues(court.ID).Inc()
		}
	}
	return ok, failed
}

func (e *Engine) enrichCase(ctx context.Context, court sources.Court, c *model.CaseRecord) error {
	resp, err := e.fetcher.Fetch(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    e.cfg.BaseURL + court.DetailPath(),
		// The endpoint only answers for Devanagari case numbers.
		Form: url.Values{"mudda_no": {normalize.ToDevanagariDigits(c.Key.Number)}},
	})
	if err != nil {
		return err
	}

	detail, found := e.parser.CaseDetail(resp.Body)
	if !found {
		return eris.Errorf("enrich: no detail served for case %s at %s", c.Key.Number, court.ID)
	}

	applyDetail(c, detail)
	entities := detailEntities(c.Key, detail)
	hearings := detailHearings(c.Key, detail)

	err = e.store.ApplyEnrichment(ctx, c, entities, hearings)
	if err != nil {
		if eris.Is(err, store.ErrAlreadyEnriched) {
			// Another run enriched it while we were fetching.
			e.log.Debug("case enriched concurrently, skipping",
				zap.String("case", c.Key.Number))
			return nil
		}
		return err
	}
	return nil
}

// applyDetail folds parsed detail fields into the case record.
func applyDetail(c *model.CaseRecord, d *parse.Detail) {
	c.RegistrationNumber = d.RegistrationNumber
	c.Subject = d.Subject
	c.CaseStatus = d.CaseStatus
	c.VerdictDateBS = d.VerdictDateBS
	c.VerdictDateAD = model.ADDate(d.VerdictDateBS)
	c.VerdictJudge = d.VerdictJudge
	c.HearingCount = d.HearingCount
	if len(d.Timeline) > 0 {
		if c.ExtraData == nil {
			c.ExtraData = map[string]any{}
		}
		timeline := make([]map[string]string, 0, len(d.Timeline))
		for _, t := range d.Timeline {
			timeline = append(timeline, map[string]string{"date_bs": t.DateBS, "type": t.Type})
		}
		c.ExtraData["timeline"] = timeline
	}
}

func detailEntities(key model.CaseKey, d *parse.Detail) []model.EntityRecord {
	out := make([]model.EntityRecord, 0, len(d.Entities))
	for _, e := range d.Entities {
		out = append(out, model.EntityRecord{
			Key:     key,
			Side:    model.EntitySide(e.Side),
			Name:    e.Name,
			Address: e.Address,
		})
	}
	return out
}

func detailHearings(key model.CaseKey, d *parse.Detail) []model.HearingRecord {
	out := make([]model.HearingRecord, 0, len(d.Hearings))
	for _, h := range d.Hearings {
		out = append(out, model.HearingRecord{
			Key:           key,
			HearingDateBS: h.DateBS,
			HearingDateAD: model.ADDate(h.DateBS),
			BenchType:     h.Division,
			JudgeNames:    h.Judge,
			CaseStatus:    h.Type,
			Remarks:       h.Order,
			ScrapedAt:     time.Now().UTC(),
		})
	}
	return out
}
