package crawl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/checkpoint"
	"github.com/ngm-data/causelist/internal/model"
	"github.com/ngm-data/causelist/internal/resilience"
	"github.com/ngm-data/causelist/internal/sources"
	"github.com/ngm-data/causelist/internal/store"
	"github.com/ngm-data/causelist/internal/transport"
)

type cannedResponse struct {
	body string
	err  error
}

// fakeFetcher serves canned bodies keyed by path plus the date or bench
// being requested.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]cannedResponse
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[string]cannedResponse{}}
}

func fetchKey(req transport.Request) string {
	key := req.URL
	switch {
	case req.Form.Get("mode") != "":
		key += "#mode=" + req.Form.Get("mode")
		if bt := req.Form.Get("bench_type"); bt != "" {
			key += "&bench_type=" + bt
		}
	case req.Form != nil:
		key += "#bench=" + req.Form.Get("bench_id")
	case req.Query != nil:
		key += "?pesi_date=" + req.Query.Get("pesi_date")
	}
	return key
}

func (f *fakeFetcher) set(key, body string) {
	f.responses[key] = cannedResponse{body: body}
}

func (f *fakeFetcher) fail(key string, err error) {
	f.responses[key] = cannedResponse{err: err}
}

func (f *fakeFetcher) Fetch(_ context.Context, req transport.Request) (*transport.Response, error) {
	key := fetchKey(req)
	f.mu.Lock()
	f.calls = append(f.calls, key)
	r, ok := f.responses[key]
	f.mu.Unlock()
	if !ok {
		return &transport.Response{StatusCode: 404, Body: []byte("<html></html>"), URL: req.URL}, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return &transport.Response{StatusCode: 200, Body: []byte(r.body), URL: req.URL}, nil
}

func benchListPage(benches ...string) string {
	var rows strings.Builder
	for i, judge := range benches {
		fmt.Fprintf(&rows,
			`<tr onclick="send_data('%d', '%d', '20800101')"><td>%d</td><td>%s</td><td>५</td></tr>`,
			100+i, i+1, i+1, judge)
	}
	return `<table class="table table-striped table-bordered table-hover"><tbody>` +
		rows.String() +
		`<tr><td colspan="2">जम्माः</td><td>१५</td></tr></tbody></table>`
}

func causeListPage(caseNumbers ...string) string {
	var rows strings.Builder
	for i, num := range caseNumbers {
		fmt.Fprintf(&rows, `<tr class="data_row">
			<td>%d</td><td>फौजदारी</td><td>२०७९-०३-१५</td><td>मुद्दा</td>
			<td>%s</td><td>नेपाल सरकार || राम बहादुर</td><td>--</td><td></td><td>पेशी</td>
		</tr>`, i+1, num)
	}
	return `<h4>एकल इजलास</h4><table class="table table-bordered table-hover"><tbody>` +
		rows.String() + `</tbody></table>`
}

func specialBenchFormPage(benchValues ...string) string {
	var opts strings.Builder
	opts.WriteString(`<option value="">--</option>`)
	for _, v := range benchValues {
		fmt.Fprintf(&opts, `<option value="%s">इजलास नं %s</option>`, v, v)
	}
	return `<form><input type="hidden" name="yo" value="3"><select name="bench_type">` +
		opts.String() + `</select></form>`
}

func specialCauseListPage(courtNo string, caseNumbers ...string) string {
	var rows strings.Builder
	for i, num := range caseNumbers {
		fmt.Fprintf(&rows, `<tr>
			<td>%d</td><td>भ्रष्टाचार</td><td>२०७९-०४-२३</td><td>घुस रिसवत</td>
			<td>%s</td><td>नेपाल सरकार</td><td>हरि बहादुर</td><td></td><td></td><td>हेर्न बाँकी</td><td></td>
		</tr>`, i+1, num)
	}
	return `<font size="3">इजलास नं : ` + courtNo + `</font>
		<table width="100%" border="0"><tr><td><font size="2">अध्यक्ष माननीय न्यायाधीश श्री राम</font></td></tr></table>
		<table width="100%" border="1"><tr><th></th></tr>` + rows.String() + `</table>`
}

var (
	testCourt    = sources.Court{ID: "highcourtpatan", Name: "उच्च अदालत पाटन", Kind: sources.KindHigh}
	specialCourt = sources.Court{ID: "specialcourt", Name: "विशेष अदालत", Kind: sources.KindSpecial}
)

// testNow pins the window to the single BS date 2080-01-01.
func testNow() time.Time {
	return time.Date(2023, time.April, 14, 8, 0, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T, fetcher transport.Fetcher) (*Engine, store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.Migrate(ctx))

	eng := New(Config{Lookback: 1, Now: testNow}, fetcher, st, zap.NewNop())
	return eng, st
}

func TestRunFanOutDedupAndCheckpoint(t *testing.T) {
	fetcher := newFakeFetcher()
	// Bench A lists two cases, bench B is empty, bench C repeats one of
	// A's cases. The unit must commit 2 merged cases under 1 checkpoint.
	fetcher.set("/court/highcourtpatan/bench_list?pesi_date=2080/01/01",
		benchListPage("मा. न्या. एक", "मा. न्या. दुई", "मा. न्या. तीन"))
	fetcher.set("/court/highcourtpatan/cause_list_detail#bench=100",
		causeListPage("077-CR-0001", "077-CR-0002"))
	fetcher.set("/court/highcourtpatan/cause_list_detail#bench=101",
		causeListPage())
	fetcher.set("/court/highcourtpatan/cause_list_detail#bench=102",
		causeListPage("077-CR-0001"))

	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{testCourt})
	require.NoError(t, err)
	assert.Equal(t, 1, run.UnitsDone)
	assert.Zero(t, run.UnitsBlocked)

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Cases)
	assert.Equal(t, int64(3), stats.Hearings, "shared case keeps one hearing per bench")
	assert.Equal(t, int64(1), stats.UnitsDone)

	shared, err := st.GetCase(ctx, model.CaseKey{Number: "077-CR-0001", CourtID: "highcourtpatan"})
	require.NoError(t, err)
	assert.Equal(t, "नेपाल सरकार", shared.Plaintiff)

	done, err := st.DoneDates(ctx, "highcourtpatan")
	require.NoError(t, err)
	assert.Contains(t, done, "2080-01-01")
}

func TestRunSubunitFailureStillClosesBarrier(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("/court/highcourtpatan/bench_list?pesi_date=2080/01/01",
		benchListPage("मा. न्या. एक", "मा. न्या. दुई"))
	fetcher.set("/court/highcourtpatan/cause_list_detail#bench=100",
		causeListPage("077-CR-0001"))
	fetcher.fail("/court/highcourtpatan/cause_list_detail#bench=101",
		resilience.NewTransientError(fmt.Errorf("gateway timeout"), 504))

	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{testCourt})
	require.NoError(t, err)
	assert.Equal(t, 1, run.UnitsDone, "failed sub-unit resolves as empty")

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Cases)
	assert.Equal(t, int64(1), stats.UnitsDone, "unit still checkpointed")
}

func TestRunBlockedUnitStaysUnmarked(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.fail("/court/highcourtpatan/bench_list?pesi_date=2080/01/01",
		&resilience.BlockedError{URL: "/court/highcourtpatan/bench_list"})

	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{testCourt})
	require.NoError(t, err)
	assert.Zero(t, run.UnitsDone)
	assert.Equal(t, 1, run.UnitsBlocked)

	done, err := st.DoneDates(context.Background(), "highcourtpatan")
	require.NoError(t, err)
	assert.Empty(t, done, "blocked unit must be retried by a later run")
}

func TestRunBlockedBenchAbandonsCourt(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("/court/highcourtpatan/bench_list?pesi_date=2080/01/01",
		benchListPage("मा. न्या. एक"))
	fetcher.fail("/court/highcourtpatan/cause_list_detail#bench=100",
		&resilience.BlockedError{URL: "/court/highcourtpatan/cause_list_detail"})

	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{testCourt})
	require.NoError(t, err)
	assert.Equal(t, 1, run.UnitsBlocked)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Cases)
	assert.Zero(t, stats.UnitsDone)
}

func TestRunNoDataDateCheckpointsEmpty(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set("/court/highcourtpatan/bench_list?pesi_date=2080/01/01",
		`<html><body><p>No bench list published</p></body></html>`)

	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{testCourt})
	require.NoError(t, err)
	assert.Equal(t, 1, run.UnitsDone)

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Cases)
	assert.Equal(t, int64(1), stats.UnitsDone)

	entries, err := st.Checkpoints(ctx, "highcourtpatan", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Summary.NoData)
}

func TestRunSkipsCheckpointedDates(t *testing.T) {
	fetcher := newFakeFetcher()
	eng, st := newTestEngine(t, fetcher)
	ctx := context.Background()

	// Pre-mark the only date in the window; the engine must not fetch.
	_, err := st.CommitUnit(ctx, "highcourtpatan", "2080-01-01", nil,
		checkpoint.Summary{NoData: true})
	require.NoError(t, err)

	run, err := eng.Run(ctx, []sources.Court{testCourt})
	require.NoError(t, err)
	assert.Zero(t, run.UnitsDone)
	assert.Empty(t, fetcher.calls)
}

const specialReportURL = "/special/syspublic.php?d=reports&f=daily_public"

func TestRunSpecialCourtFanOutAndCheckpoint(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.set(specialReportURL+"#mode=showbench", specialBenchFormPage("1", "2"))
	fetcher.set(specialReportURL+"#mode=show&bench_type=1",
		specialCauseListPage("१", "०७९-CR-००४५", "०७९-CR-००४६"))
	fetcher.set(specialReportURL+"#mode=show&bench_type=2",
		specialCauseListPage("२", "०७९-CR-००४५"))

	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{specialCourt})
	require.NoError(t, err)
	assert.Equal(t, 1, run.UnitsDone)

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Cases, "case seen on both benches merges")
	assert.Equal(t, int64(3), stats.Hearings)

	shared, err := st.GetCase(ctx, model.CaseKey{Number: "०७९-CR-००४५", CourtID: "specialcourt"})
	require.NoError(t, err)
	assert.Equal(t, "नेपाल सरकार", shared.Plaintiff)
	assert.Equal(t, "भ्रष्टाचार", shared.Division)

	done, err := st.DoneDates(ctx, "specialcourt")
	require.NoError(t, err)
	assert.Contains(t, done, "2080-01-01")
}

func TestRunSpecialCourtUsesReportEndpoint(t *testing.T) {
	fetcher := newFakeFetcher()
	// No canned responses: every fetch serves a 404 shell. The engine must
	// still speak only the report endpoint, never the bench_list layout.
	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{specialCourt})
	require.NoError(t, err)
	assert.Equal(t, 1, run.UnitsDone)

	require.NotEmpty(t, fetcher.calls)
	for _, call := range fetcher.calls {
		assert.Contains(t, call, specialReportURL)
		assert.NotContains(t, call, "bench_list")
	}

	// A shell without the bench form is a no-data date, same as the
	// original flow treats a missing bench select.
	entries, err := st.Checkpoints(context.Background(), "specialcourt", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Summary.NoData)
}

func TestRunSpecialCourtBlockedStaysUnmarked(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.fail(specialReportURL+"#mode=showbench",
		&resilience.BlockedError{URL: specialReportURL})

	eng, st := newTestEngine(t, fetcher)
	run, err := eng.Run(context.Background(), []sources.Court{specialCourt})
	require.NoError(t, err)
	assert.Zero(t, run.UnitsDone)
	assert.Equal(t, 1, run.UnitsBlocked)

	done, err := st.DoneDates(context.Background(), "specialcourt")
	require.NoError(t, err)
	assert.Empty(t, done)
}
