// Package calendar produces the descending Bikram Sambat date window a
// crawl run walks. The most recent days are still settling upstream, so
// the window trails today by the offset and runs backwards over the
// lookback horizon, skipping dates already in the checkpoint ledger.
package calendar

import (
	"time"

	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/nepcal"
)

const (
	// DefaultLookback is how many dates a run covers.
	DefaultLookback = 30
	// DefaultOffset is how many days behind today the window starts.
	// Crawling a date too early checkpoints it before its data settles.
	DefaultOffset = 2
)

// Config shapes the date window.
type Config struct {
	Lookback int
	Offset   int
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Iterator yields BS dates newest first.
type Iterator struct {
	dates []nepcal.Date
	skip  map[string]struct{}
	pos   int
}

// New builds the window. Days that fall outside the supported BS range
// are dropped with a warning rather than failing the run.
func New(cfg Config, log *zap.Logger) *Iterator {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Offset < 0 {
		cfg.Offset = DefaultOffset
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.L()
	}

	start := cfg.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -cfg.Offset)
	dates := make([]nepcal.Date, 0, cfg.Lookback)
	for i := 0; i < cfg.Lookback; i++ {
		day := start.AddDate(0, 0, -i)
		bs, err := nepcal.FromGregorian(day)
		if err != nil {
			log.Warn("calendar: date outside supported range, skipping",
				zap.Time("day", day), zap.Error(err))
			continue
		}
		dates = append(dates, bs)
	}
	return &Iterator{dates: dates, skip: map[string]struct{}{}}
}

// SkipDone excludes dates already recorded in the ledger.
func (it *Iterator) SkipDone(done map[string]struct{}) {
	for d := range done {
		it.skip[d] = struct{}{}
	}
}

// Next returns the next pending date, newest first. The second return is
// false when the window is exhausted.
func (it *Iterator) Next() (nepcal.Date, bool) {
	for it.pos < len(it.dates) {
		d := it.dates[it.pos]
		it.pos++
		if _, skipped := it.skip[d.String()]; skipped {
			continue
		}
		return d, true
	}
	return nepcal.Date{}, false
}

// Remaining returns the dates not yet yielded or skipped, for reporting.
func (it *Iterator) Remaining() []nepcal.Date {
	var out []nepcal.Date
	for _, d := range it.dates[it.pos:] {
		if _, skipped := it.skip[d.String()]; skipped {
			continue
		}
		out = append(out, d)
	}
	return out
}
