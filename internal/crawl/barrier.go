package crawl

import (
	"sync"

	"github.com/rotisserie/eris"
)

// unitState is the lifecycle of one work unit's fan-out barrier.
type unitState int

const (
	stateIssued unitState = iota
	stateAwaitingFirst
	stateNoData
	stateAwaitingSubunits
	stateComplete
)

func (s unitState) String() string {
	switch s {
	case stateIssued:
		return "issued"
	case stateAwaitingFirst:
		return "awaiting_first_response"
	case stateNoData:
		return "no_data"
	case stateAwaitingSubunits:
		return "awaiting_subunits"
	case stateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// barrier gates a work unit's commit on all of its sub-unit fetches
// having resolved. A failed sub-unit resolves the same as an empty one;
// only a firewall block leaves the barrier open, which in turn leaves the
// unit unmarked for a later run.
type barrier struct {
	mu       sync.Mutex
	state    unitState
	expected int
	resolved int
}

func newBarrier() *barrier {
	return &barrier{state: stateIssued}
}

// firstRequestSent moves the barrier to awaiting the bench list response.
func (b *barrier) firstRequestSent() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateIssued {
		return eris.Errorf("crawl: barrier: first request sent in state %s", b.state)
	}
	b.state = stateAwaitingFirst
	return nil
}

// firstResponse records how many sub-units the bench list announced.
// Zero resolves the unit immediately as a no-data completion.
func (b *barrier) firstResponse(expected int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateAwaitingFirst {
		return eris.Errorf("crawl: barrier: first response in state %s", b.state)
	}
	if expected < 0 {
		return eris.Errorf("crawl: barrier: negative sub-unit count %d", expected)
	}
	if expected == 0 {
		b.state = stateNoData
		return nil
	}
	b.expected = expected
	b.state = stateAwaitingSubunits
	return nil
}

// subUnitResolved counts one finished sub-unit, success or failure alike.
// Returns true when the barrier just closed.
func (b *barrier) subUnitResolved() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateAwaitingSubunits {
		return false, eris.Errorf("crawl: barrier: sub-unit resolved in state %s", b.state)
	}
	b.resolved++
	if b.resolved > b.expected {
		return false, eris.Errorf("crawl: barrier: %d resolutions for %d sub-units", b.resolved, b.expected)
	}
	if b.resolved == b.expected {
		b.state = stateComplete
		return true, nil
	}
	return false, nil
}

// complete reports whether the unit may commit. Both terminal states
// qualify; no-data units commit an empty summary.
func (b *barrier) complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateComplete || b.state == stateNoData
}

func (b *barrier) noData() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateNoData
}
