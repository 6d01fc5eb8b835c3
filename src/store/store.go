package store

import (
	"sort"
	"sync"
	"time"

	"github.com/onemorebsmith/zdt/src/model"
	"github.com/shopspring/decimal"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

type MergeResult struct {
	IsNew   bool
	Updated bool
}

// DonationStore is the canonical record set, keyed by txid. Merging the same
// donation state twice is a no-op; confirmations never decrease. Readers see
// pre- or post-merge state per record, never a partial write.
type DonationStore struct {
	mtx              sync.RWMutex
	donations        map[string]*model.Donation
	minConfirmations int
	lastScan         *time.Time
}

func NewDonationStore(minConfirmations int) *DonationStore {
	if minConfirmations < 0 {
		minConfirmations = 0
	}
	return &DonationStore{
		donations:        map[string]*model.Donation{},
		minConfirmations: minConfirmations,
	}
}

func (ds *DonationStore) Merge(d model.Donation) MergeResult {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()

	existing, exists := ds.donations[d.TxID]
	if !exists {
		d.Pending = d.Confirmations < ds.minConfirmations
		ds.donations[d.TxID] = &d
		return MergeResult{IsNew: true}
	}

	updated := false
	// confirmations only ever move forward, a lower reported count is stale
	if d.Confirmations > existing.Confirmations {
		existing.Confirmations = d.Confirmations
		updated = true
	}
	if existing.Timestamp == nil && d.Timestamp != nil {
		existing.Timestamp = d.Timestamp
		updated = true
	}
	if existing.Memo == nil && d.Memo != nil {
		existing.Memo = d.Memo
		updated = true
	}
	if existing.Pending && existing.Confirmations >= ds.minConfirmations {
		existing.Pending = false
		updated = true
	}
	return MergeResult{Updated: updated}
}

// MarkScanned records the wall clock of a successful scan cycle. Failed
// cycles never touch this, so the last good summary stays visible.
func (ds *DonationStore) MarkScanned(at time.Time) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()
	ds.lastScan = &at
}

// Summary recomputes the aggregate from the confirmed record set on every
// call, so it can never drift from the donations themselves.
func (ds *DonationStore) Summary() model.Summary {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()

	total := decimal.Zero
	count := 0
	for _, d := range ds.donations {
		if d.Pending {
			continue
		}
		total = total.Add(d.Amount)
		count++
	}
	return model.Summary{
		TotalAmount: total,
		TxCount:     count,
		LastUpdated: ds.lastScan,
	}
}

// Recent returns donation copies most-recent-first. Records without a
// timestamp sort last; ties break on txid so the order is deterministic.
func (ds *DonationStore) Recent(limit int) []model.Donation {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	ds.mtx.RLock()
	out := make([]model.Donation, 0, len(ds.donations))
	for _, d := range ds.donations {
		out = append(out, *d)
	}
	ds.mtx.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		switch {
		case a == nil && b == nil:
			return out[i].TxID < out[j].TxID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].TxID < out[j].TxID
		}
		return a.After(*b)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (ds *DonationStore) Size() int {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()
	return len(ds.donations)
}

// Snapshot copies out every donation for persistence
func (ds *DonationStore) Snapshot() []model.Donation {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()
	out := make([]model.Donation, 0, len(ds.donations))
	for _, d := range ds.donations {
		out = append(out, *d)
	}
	return out
}

// Restore merges a persisted snapshot back in. Pending classification is
// re-derived against the current threshold rather than trusted from disk.
func (ds *DonationStore) Restore(donations []model.Donation) {
	for _, d := range donations {
		d.Pending = d.Confirmations < ds.minConfirmations
		ds.Merge(d)
	}
}
