package crawl

import (
	"sync"

	"github.com/ngm-data/causelist/internal/model"
)

// dedupCache merges case observations within one work unit. The same case
// often appears on several benches' lists for a date; scalar fields keep
// the first observation and hearings accumulate.
type dedupCache struct {
	mu    sync.Mutex
	byKey map[model.CaseKey]*model.CaseRecord
	order []model.CaseKey
}

func newDedupCache() *dedupCache {
	return &dedupCache{byKey: make(map[model.CaseKey]*model.CaseRecord)}
}

func (c *dedupCache) add(rec *model.CaseRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byKey[rec.Key]; ok {
		existing.Merge(rec)
		return
	}
	c.byKey[rec.Key] = rec
	c.order = append(c.order, rec.Key)
}

// records returns the merged cases in first-seen order.
func (c *dedupCache) records() []*model.CaseRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.CaseRecord, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.byKey[k])
	}
	return out
}

func (c *dedupCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
