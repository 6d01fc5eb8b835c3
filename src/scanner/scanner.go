package scanner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/onemorebsmith/zdt/src/common"
	"github.com/onemorebsmith/zdt/src/model"
	"github.com/onemorebsmith/zdt/src/store"
	"github.com/onemorebsmith/zdt/src/zcashapi"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrScanInProgress - another scan already holds this store. Concurrent scan
// starts are rejected, never interleaved; the caller retries on its own
// schedule.
var ErrScanInProgress = fmt.Errorf("scan already in progress")

type ScanState string

const (
	ScanStateIdle      ScanState = "idle"
	ScanStateImporting ScanState = "importing"
	ScanStateFetching  ScanState = "fetching"
	ScanStateMerging   ScanState = "merging"
	ScanStateDone      ScanState = "done"
	ScanStateFailed    ScanState = "failed"
)

// Gateway is the node boundary the scanner drives. zcashapi.ZcashApi is the
// real one; tests substitute a fake.
type Gateway interface {
	ImportViewingKey(ctx context.Context, key model.ViewingKey) error
	ListReceived(ctx context.Context, key model.ViewingKey) ([]model.RawReceived, error)
	NodeStatus(ctx context.Context) (*model.NodeStatus, error)
}

type ScanResult struct {
	ID       uuid.UUID
	Added    int
	Updated  int
	Rejected int
	Summary  model.Summary
}

type Scanner struct {
	gateway          Gateway
	store            *store.DonationStore
	key              model.ViewingKey
	minConfirmations int
	logger           *zap.Logger
	inFlight         int32 // CAS flag serializing scans per store
}

func NewScanner(gateway Gateway, donations *store.DonationStore, key model.ViewingKey,
	minConfirmations int, logger *zap.Logger) *Scanner {
	return &Scanner{
		gateway:          gateway,
		store:            donations,
		key:              key,
		minConfirmations: minConfirmations,
		logger:           common.ComponentLogger(logger, "scanner"),
	}
}

// Scan runs one full cycle: import the viewing key, fetch everything the
// node reports for it, merge into the store. Failures before merging leave
// the store untouched; a malformed entry during merging is skipped and
// counted, it does not fail the cycle.
func (sc *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	if !atomic.CompareAndSwapInt32(&sc.inFlight, 0, 1) {
		return nil, ErrScanInProgress
	}
	defer atomic.StoreInt32(&sc.inFlight, 0)

	scanID := uuid.New()
	logger := sc.logger.With(zap.String("scan_id", scanID.String()))
	logger.Info("starting scan cycle", zap.String("state", string(ScanStateImporting)))

	if err := sc.gateway.ImportViewingKey(ctx, sc.key); err != nil {
		RecordScanFailure()
		logger.Error("scan failed importing viewing key",
			zap.String("state", string(ScanStateFailed)), zap.Error(err))
		return nil, errors.Wrap(err, "failed importing viewing key")
	}

	logger.Info("viewing key ready", zap.String("state", string(ScanStateFetching)))
	status, err := sc.gateway.NodeStatus(ctx)
	if err != nil {
		RecordScanFailure()
		logger.Error("scan failed checking node status",
			zap.String("state", string(ScanStateFailed)), zap.Error(err))
		return nil, errors.Wrap(err, "failed checking node status")
	}
	if !status.IsSynced {
		RecordScanFailure()
		logger.Warn("node still syncing, aborting cycle",
			zap.Int64("height", status.SyncedHeight), zap.String("state", string(ScanStateFailed)))
		return nil, errors.Wrapf(zcashapi.ErrNotSynced, "node at height %d", status.SyncedHeight)
	}

	received, err := sc.gateway.ListReceived(ctx, sc.key)
	if err != nil {
		RecordScanFailure()
		logger.Error("scan failed fetching received transactions",
			zap.String("state", string(ScanStateFailed)), zap.Error(err))
		return nil, errors.Wrap(err, "failed fetching received transactions")
	}

	logger.Info("merging fetched entries",
		zap.String("state", string(ScanStateMerging)), zap.Int("entries", len(received)))

	result := &ScanResult{ID: scanID}
	for _, raw := range received {
		donation, err := Normalize(raw, sc.minConfirmations)
		if err != nil {
			result.Rejected++
			RecordRejectedEntry()
			logger.Warn("rejected entry", zap.String("txid", raw.TxID), zap.Error(err))
			continue
		}
		if donation.Amount.IsZero() {
			// change outputs and other zero-value notes are not donations
			logger.Debug("skipping zero-amount entry", zap.String("txid", raw.TxID))
			continue
		}
		merged := sc.store.Merge(*donation)
		if merged.IsNew {
			result.Added++
		} else if merged.Updated {
			result.Updated++
		}
	}

	sc.store.MarkScanned(time.Now().UTC())
	result.Summary = sc.store.Summary()
	RecordScanComplete(sc.store.Size())

	logger.Info("scan cycle complete",
		zap.String("state", string(ScanStateDone)),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", result.Rejected),
		zap.Int("tx_count", result.Summary.TxCount),
		zap.String("total", result.Summary.TotalAmount.String()))
	return result, nil
}
