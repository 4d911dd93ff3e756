// Package crawl walks the (court, date) work units of a run: it fans out
// over each date's benches, merges the discovered case rows, and commits
// every unit atomically with its checkpoint mark. Units interrupted by a
// firewall block stay unmarked so a later run picks them up.
package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ngm-data/causelist/internal/calendar"
	"github.com/ngm-data/causelist/internal/checkpoint"
	"github.com/ngm-data/causelist/internal/metrics"
	"github.com/ngm-data/causelist/internal/model"
	"github.com/ngm-data/causelist/internal/nepcal"
	"github.com/ngm-data/causelist/internal/normalize"
	"github.com/ngm-data/causelist/internal/parse"
	"github.com/ngm-data/causelist/internal/resilience"
	"github.com/ngm-data/causelist/internal/sources"
	"github.com/ngm-data/causelist/internal/store"
	"github.com/ngm-data/causelist/internal/transport"
)

// Config shapes one crawl run.
type Config struct {
	BaseURL          string
	Lookback         int
	Offset           int
	CourtConcurrency int
	BenchConcurrency int

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Engine orchestrates crawl runs.
type Engine struct {
	cfg     Config
	fetcher transport.Fetcher
	store   store.Store
	parser  *parse.Parser
	log     *zap.Logger
}

// New creates an Engine. A nil logger falls back to the global.
func New(cfg Config, fetcher transport.Fetcher, st store.Store, log *zap.Logger) *Engine {
	if cfg.CourtConcurrency <= 0 {
		cfg.CourtConcurrency = 4
	}
	if cfg.BenchConcurrency <= 0 {
		cfg.BenchConcurrency = 4
	}
	if log == nil {
		log = zap.L()
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		parser:  parse.New(log),
		log:     log.Named("crawl"),
	}
}

type courtTally struct {
	unitsDone    int
	unitsBlocked int
	cases        int64
}

// Run crawls the given courts and returns the recorded run. Per-court
// failures are contained: one court going dark never aborts the others.
func (e *Engine) Run(ctx context.Context, courts []sources.Court) (*store.RunRecord, error) {
	ids := make([]string, len(courts))
	for i, c := range courts {
		ids[i] = c.ID
	}
	run := &store.RunRecord{
		ID:        uuid.New(),
		Kind:      "crawl",
		Courts:    ids,
		StartedAt: time.Now().UTC(),
	}
	if err := e.store.StartRun(ctx, run); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.CourtConcurrency)
	for _, court := range courts {
		court := court
		g.Go(func() error {
			tally := e.crawlCourt(gctx, court)
			mu.Lock()
			run.UnitsDone += tally.unitsDone
			run.UnitsBlocked += tally.unitsBlocked
			run.CasesUpserted += tally.cases
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return run, err
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err := e.store.FinishRun(ctx, run); err != nil {
		return run, err
	}
	e.log.Info("run finished",
		zap.String("run_id", run.ID.String()),
		zap.Int("units_done", run.UnitsDone),
		zap.Int("units_blocked", run.UnitsBlocked),
		zap.Int64("cases_upserted", run.CasesUpserted))
	return run, nil
}

// crawlCourt walks one court's pending dates, newest first. A firewall
// block abandons the court for the rest of the run; other unit failures
// leave just that date unmarked.
func (e *Engine) crawlCourt(ctx context.Context, court sources.Court) courtTally {
	log := e.log.With(zap.String("court", court.ID))
	var tally courtTally

	done, err := e.store.DoneDates(ctx, court.ID)
	if err != nil {
		log.Error("loading checkpoint ledger", zap.Error(err))
		return tally
	}
	it := calendar.New(calendar.Config{
		Lookback: e.cfg.Lookback,
		Offset:   e.cfg.Offset,
		Now:      e.cfg.Now,
	}, log)
	it.SkipDone(done)

	for date, ok := it.Next(); ok; date, ok = it.Next() {
		if ctx.Err() != nil {
			return tally
		}
		n, err := e.processUnit(ctx, court, date)
		switch {
		case resilience.IsBlocked(err):
			tally.unitsBlocked++
			metrics.UnitsBlocked.WithLabelValues(court.ID).Inc()
			log.Warn("firewall block, abandoning court for this run",
				zap.String("date", date.String()), zap.Error(err))
			return tally
		case err != nil:
			log.Warn("unit failed, left unmarked",
				zap.String("date", date.String()), zap.Error(err))
		default:
			tally.unitsDone++
			tally.cases += n
		}
	}
	return tally
}

// processUnit harvests one (court, date) unit end to end. The returned
// count is case rows committed; an error means the unit stays unmarked.
func (e *Engine) processUnit(ctx context.Context, court sources.Court, date nepcal.Date) (int64, error) {
	if court.Kind == sources.KindSpecial {
		return e.processSpecialUnit(ctx, court, date)
	}

	b := newBarrier()
	if err := b.firstRequestSent(); err != nil {
		return 0, err
	}

	benchListURL := e.cfg.BaseURL + court.BenchListPath()
	resp, err := e.fetcher.Fetch(ctx, transport.Request{
		URL:   benchListURL,
		Query: url.Values{"pesi_date": {date.URLValue()}},
	})
	if err != nil {
		return 0, err
	}

	result := e.parser.BenchList(resp.Body)
	if result.Kind == parse.NotFound {
		if err := b.firstResponse(0); err != nil {
			return 0, err
		}
		return 0, e.commitNoData(ctx, court, date)
	}
	if err := b.firstResponse(len(result.Benches)); err != nil {
		return 0, err
	}

	cache := newDedupCache()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BenchConcurrency)
	for _, bench := range result.Benches {
		bench := bench
		g.Go(func() error {
			rows, benchType, err := e.fetchBench(gctx, court, date, bench, benchListURL)
			if err != nil {
				// A block aborts the whole unit; anything else
				// resolves the sub-unit as empty so the barrier
				// still closes.
				if resilience.IsBlocked(err) {
					return err
				}
				metrics.SubunitsFailed.WithLabelValues(court.ID).Inc()
				e.log.Warn("bench fetch failed, counted as empty",
					zap.String("court", court.ID),
					zap.String("date", date.String()),
					zap.String("bench", bench.ID),
					zap.Error(err))
				_, berr := b.subUnitResolved()
				return berr
			}
			metrics.SubunitsFetched.WithLabelValues(court.ID).Inc()
			for _, row := range rows {
				cache.add(buildCase(court, date, bench, benchType, row))
			}
			_, berr := b.subUnitResolved()
			return berr
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if !b.complete() {
		return 0, eris.Errorf("crawl: barrier left open for %s %s", court.ID, date)
	}
	return e.commitUnit(ctx, court, date, len(result.Benches), cache)
}

// processSpecialUnit harvests one special court date. The special court
// publishes through a single report endpoint: a showbench POST returns
// the bench_type options for the date, then each bench is fetched with a
// show POST echoing the form's hidden yo token.
func (e *Engine) processSpecialUnit(ctx context.Context, court sources.Court, date nepcal.Date) (int64, error) {
	b := newBarrier()
	if err := b.firstRequestSent(); err != nil {
		return 0, err
	}

	reportURL := e.cfg.BaseURL + court.SpecialListPath()
	form := specialDateForm(date)
	form.Set("mode", "showbench")
	resp, err := e.fetcher.Fetch(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    reportURL,
		Form:   form,
	})
	if err != nil {
		return 0, err
	}

	benchForm, found := e.parser.SpecialBenchForm(resp.Body)
	if !found || len(benchForm.Benches) == 0 {
		if err := b.firstResponse(0); err != nil {
			return 0, err
		}
		return 0, e.commitNoData(ctx, court, date)
	}
	if err := b.firstResponse(len(benchForm.Benches)); err != nil {
		return 0, err
	}

	cache := newDedupCache()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BenchConcurrency)
	for _, bench := range benchForm.Benches {
		bench := bench
		g.Go(func() error {
			rows, sitting, err := e.fetchSpecialBench(gctx, court, date, bench, benchForm.Yo, reportURL)
			if err != nil {
				if resilience.IsBlocked(err) {
					return err
				}
				metrics.SubunitsFailed.WithLabelValues(court.ID).Inc()
				e.log.Warn("bench fetch failed, counted as empty",
					zap.String("court", court.ID),
					zap.String("date", date.String()),
					zap.String("bench", bench.Value),
					zap.Error(err))
				_, berr := b.subUnitResolved()
				return berr
			}
			metrics.SubunitsFetched.WithLabelValues(court.ID).Inc()
			for _, row := range rows {
				cache.add(buildSpecialCase(court, date, bench, sitting, row))
			}
			_, berr := b.subUnitResolved()
			return berr
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if !b.complete() {
		return 0, eris.Errorf("crawl: barrier left open for %s %s", court.ID, date)
	}
	return e.commitUnit(ctx, court, date, len(benchForm.Benches), cache)
}

// commitUnit closes out a harvested unit: cases, hearings and checkpoint
// in one transaction, then the run counters.
func (e *Engine) commitUnit(ctx context.Context, court sources.Court, date nepcal.Date, benches int, cache *dedupCache) (int64, error) {
	records := cache.records()
	n, err := e.store.CommitUnit(ctx, court.ID, date.String(), records,
		checkpoint.Summary{Benches: benches, Cases: len(records)})
	if err != nil {
		return 0, err
	}
	metrics.UnitsCompleted.WithLabelValues(court.ID).Inc()
	metrics.CasesUpserted.WithLabelValues(court.ID).Add(float64(len(records)))
	return n, nil
}

// commitNoData checkpoints a date the court published nothing for.
func (e *Engine) commitNoData(ctx context.Context, court sources.Court, date nepcal.Date) error {
	if _, err := e.store.CommitUnit(ctx, court.ID, date.String(), nil,
		checkpoint.Summary{NoData: true}); err != nil {
		return err
	}
	metrics.UnitsNoData.WithLabelValues(court.ID).Inc()
	metrics.UnitsCompleted.WithLabelValues(court.ID).Inc()
	return nil
}

func (e *Engine) fetchBench(ctx context.Context, court sources.Court, date nepcal.Date, bench parse.Bench, referer string) ([]parse.CaseRow, string, error) {
	resp, err := e.fetcher.Fetch(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    e.cfg.BaseURL + court.CauseListPath(),
		Form: url.Values{
			"bench_id":     {bench.ID},
			"bench_no":     {bench.No},
			"hearing_date": {date.Compact()},
		},
		Referer: referer,
	})
	if err != nil {
		return nil, "", err
	}
	res := e.parser.CauseList(resp.Body)
	return res.Rows, res.BenchType, nil
}

func (e *Engine) fetchSpecialBench(ctx context.Context, court sources.Court, date nepcal.Date, bench parse.SpecialBench, yo, referer string) ([]parse.SpecialCaseRow, parse.SpecialSitting, error) {
	form := specialDateForm(date)
	form.Set("mode", "show")
	form.Set("bench_type", bench.Value)
	form.Set("yo", yo)
	resp, err := e.fetcher.Fetch(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     e.cfg.BaseURL + court.SpecialListPath(),
		Form:    form,
		Referer: referer,
	})
	if err != nil {
		return nil, parse.SpecialSitting{}, err
	}
	rows, sitting := e.parser.SpecialCauseList(resp.Body)
	return rows, sitting, nil
}

// specialDateForm encodes a BS date the way the special court's report
// form expects it, zero-padded and split across three fields.
func specialDateForm(date nepcal.Date) url.Values {
	return url.Values{
		"syy": {fmt.Sprintf("%04d", date.Year)},
		"smm": {fmt.Sprintf("%02d", date.Month)},
		"sdd": {fmt.Sprintf("%02d", date.Day)},
	}
}

// buildCase turns one cause list row into a case record carrying its
// single hearing observation for the unit's date.
func buildCase(court sources.Court, date nepcal.Date, bench parse.Bench, benchType string, row parse.CaseRow) *model.CaseRecord {
	key := model.CaseKey{Number: row.CaseNumber, CourtID: court.ID}
	return &model.CaseRecord{
		Key:                key,
		RegistrationDateBS: row.RegistrationDateBS,
		RegistrationDateAD: model.ADDate(row.RegistrationDateBS),
		CaseType:           row.CaseType,
		Division:           row.Division,
		Plaintiff:          row.Plaintiff,
		Defendant:          row.Defendant,
		Hearings: []model.HearingRecord{{
			Key:           key,
			HearingDateBS: date.String(),
			HearingDateAD: model.ADDate(date.String()),
			Bench:         normalize.ToASCIIDigits(bench.No),
			BenchType:     benchType,
			JudgeNames:    bench.JudgeName,
			LawyerNames:   row.LawyerNames,
			SerialNo:      row.SerialNo,
			CaseStatus:    row.Status,
			Remarks:       row.Remarks,
			ScrapedAt:     time.Now().UTC(),
		}},
	}
}

// buildSpecialCase turns one special court table row into a case record.
// The original case number and decision type ride along as extra data;
// the sitting heading goes on the hearing observation.
func buildSpecialCase(court sources.Court, date nepcal.Date, bench parse.SpecialBench, sitting parse.SpecialSitting, row parse.SpecialCaseRow) *model.CaseRecord {
	key := model.CaseKey{Number: row.CaseNumber, CourtID: court.ID}
	c := &model.CaseRecord{
		Key:                key,
		RegistrationDateBS: row.RegistrationDateBS,
		RegistrationDateAD: model.ADDate(row.RegistrationDateBS),
		CaseType:           row.CaseType,
		Division:           row.Category,
		Plaintiff:          row.Plaintiff,
		Defendant:          row.Defendant,
		Hearings: []model.HearingRecord{{
			Key:           key,
			HearingDateBS: date.String(),
			HearingDateAD: model.ADDate(date.String()),
			Bench:         normalize.ToASCIIDigits(sitting.CourtNumber),
			BenchType:     bench.Label,
			JudgeNames:    sitting.Judges,
			SerialNo:      row.SerialNo,
			CaseStatus:    row.Status,
			Remarks:       row.Remarks,
			ScrapedAt:     time.Now().UTC(),
		}},
	}
	if row.OriginalCaseNumber != "" || row.DecisionType != "" {
		c.ExtraData = map[string]any{}
		if row.OriginalCaseNumber != "" {
			c.ExtraData["original_case_number"] = row.OriginalCaseNumber
		}
		if row.DecisionType != "" {
			c.ExtraData["decision_type"] = row.DecisionType
		}
	}
	return c
}
