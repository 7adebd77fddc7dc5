// Package sheetsync keeps an external spreadsheet-like mirror of stored
// transactions incrementally and idempotently up to date.
//
// The protocol is snapshot-then-diff-then-write: one batched read builds
// a fingerprint index of the tab, incoming transactions are partitioned
// into in-place updates and appends, and writes go out in bounded chunks.
// The mirror is eventually consistent, never a source of truth.
package sheetsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/model"
	"github.com/pennyworth/tally/internal/service"
)

// writeChunkSize bounds the payload of a single batched write or append.
// Chunking exists purely to bound request size, not for correctness.
const writeChunkSize = 200

// Target identifies one destination tab of one spreadsheet.
type Target struct {
	SpreadsheetID string
	Tab           string
}

func (t Target) key() string {
	return t.SpreadsheetID + "\x00" + t.Tab
}

// Engine executes incremental syncs against a remote tabular store.
type Engine struct {
	api       service.SheetAPI
	txnStore  service.TransactionStore
	logger    *slog.Logger
	retryOpts service.RetryOptions
	now       func() time.Time

	// targetLocks serializes syncs per destination; two concurrent syncs
	// against the same tab would race on the append offset.
	mu          sync.Mutex
	targetLocks map[string]*sync.Mutex

	// OnChunk, when set, is invoked after each write chunk completes.
	// Used by the CLI for progress reporting.
	OnChunk func(done, total int)
}

// NewEngine creates a sync engine with the default quota retry policy.
func NewEngine(api service.SheetAPI, txnStore service.TransactionStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		api:         api,
		txnStore:    txnStore,
		logger:      logger,
		retryOpts:   common.DefaultRetryOptions(),
		now:         time.Now,
		targetLocks: make(map[string]*sync.Mutex),
	}
}

// SetRetryOptions overrides the retry policy. Intended for tests and for
// callers with provider-specific quota budgets.
func (e *Engine) SetRetryOptions(opts service.RetryOptions) {
	e.retryOpts = opts
}

// update is one planned in-place write.
type update struct {
	txn *model.Transaction
	row int
}

// Sync pushes the given transactions to the target tab: rows whose
// fingerprint already exists in the tab are updated in place, the rest
// are appended after the snapshot's last row.
//
// A chunk failure records that chunk's fingerprints as failed and the
// remaining chunks proceed; only whole-operation preconditions (index
// read, lock acquisition) return an error. Rate-limit failures are
// retried with exponential backoff; any other remote error fails the
// chunk immediately.
func (e *Engine) Sync(ctx context.Context, txns []model.Transaction, target Target) (*model.SyncResult, error) {
	lock := e.lockFor(target)
	lock.Lock()
	defer lock.Unlock()

	result := &model.SyncResult{}

	index, err := e.withRetryIndex(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to build sheet index: %w", err)
	}

	updates, appends := e.partition(txns, index, result)

	e.logger.Info("sync plan computed",
		"spreadsheet", target.SpreadsheetID,
		"tab", target.Tab,
		"updates", len(updates),
		"appends", len(appends),
		"indexed_rows", len(index.Rows))

	totalChunks := chunkCount(len(updates)) + chunkCount(len(appends))
	chunksDone := 0

	e.executeUpdates(ctx, target, updates, result, &chunksDone, totalChunks)
	e.executeAppends(ctx, target, appends, index, result, &chunksDone, totalChunks)

	if len(result.SyncedFingerprints) > 0 && e.txnStore != nil {
		ownerID := txns[0].OwnerID
		if err := e.txnStore.MarkSynced(ctx, ownerID, result.SyncedFingerprints, e.now()); err != nil {
			e.logger.Warn("failed to record sync timestamps", "error", err)
		}
	}

	e.logger.Info("sync complete",
		"updated", result.Updated,
		"appended", result.Appended,
		"failed", len(result.FailedFingerprints),
		"errors", len(result.Errors))

	return result, nil
}

// partition splits transactions into planned updates and appends using
// the index snapshot. Unfingerprintable transactions are excluded and
// recorded, never allowed to crash the batch.
func (e *Engine) partition(txns []model.Transaction, index *SheetIndex, result *model.SyncResult) ([]update, []model.Transaction) {
	var updates []update
	var appends []model.Transaction

	for i := range txns {
		txn := &txns[i]
		if txn.Fingerprint == "" {
			if txn.ComputeFingerprint() == "" {
				result.Errors = append(result.Errors,
					fmt.Sprintf("transaction %s: missing fields required for fingerprinting", txn.ID))
				continue
			}
		}
		if row, exists := index.Rows[txn.Fingerprint]; exists {
			updates = append(updates, update{txn: txn, row: row})
		} else {
			appends = append(appends, *txn)
		}
	}

	// Contiguous runs of updates collapse into single value ranges.
	sort.Slice(updates, func(i, j int) bool { return updates[i].row < updates[j].row })

	return updates, appends
}

func (e *Engine) executeUpdates(ctx context.Context, target Target, updates []update, result *model.SyncResult, chunksDone *int, totalChunks int) {
	for start := 0; start < len(updates); start += writeChunkSize {
		end := min(start+writeChunkSize, len(updates))
		chunk := updates[start:end]

		data := coalesce(target.Tab, chunk)
		err := common.WithRetry(ctx, func() error {
			return e.api.BatchUpdate(ctx, target.SpreadsheetID, data)
		}, common.IsRateLimit, e.retryOpts)

		e.recordChunk(chunk2fingerprints(chunk), err, &result.Updated, result, "update")
		*chunksDone++
		e.notifyChunk(*chunksDone, totalChunks)
	}
}

func (e *Engine) executeAppends(ctx context.Context, target Target, appends []model.Transaction, index *SheetIndex, result *model.SyncResult, chunksDone *int, totalChunks int) {
	if len(appends) == 0 {
		return
	}

	// The planned append offset is only valid while the snapshot is:
	// verify no other writer has grown the tab since the index was built.
	count, err := currentRowCount(ctx, e.api, target.SpreadsheetID, target.Tab)
	if err == nil && count != index.RowCount {
		err = fmt.Errorf("%w: had %d rows at snapshot, now %d", common.ErrSyncConflict, index.RowCount, count)
	}
	if err != nil {
		fingerprints := txns2fingerprints(appends)
		result.FailedFingerprints = append(result.FailedFingerprints, fingerprints...)
		result.Errors = append(result.Errors, err.Error())
		e.logger.Warn("skipping appends", "error", err, "rows", len(appends))
		*chunksDone += chunkCount(len(appends))
		e.notifyChunk(*chunksDone, totalChunks)
		return
	}

	appendRange := fmt.Sprintf("%s!%s%d", target.Tab, firstColumn, index.NextRow)

	for start := 0; start < len(appends); start += writeChunkSize {
		end := min(start+writeChunkSize, len(appends))
		chunk := appends[start:end]

		rows := make([][]any, 0, len(chunk))
		for i := range chunk {
			rows = append(rows, encodeRow(&chunk[i]))
		}

		chunkErr := common.WithRetry(ctx, func() error {
			return e.api.Append(ctx, target.SpreadsheetID, appendRange, rows)
		}, common.IsRateLimit, e.retryOpts)

		e.recordChunk(txns2fingerprints(chunk), chunkErr, &result.Appended, result, "append")
		*chunksDone++
		e.notifyChunk(*chunksDone, totalChunks)
	}
}

// recordChunk books one chunk's outcome: all-or-nothing per chunk, and a
// failure never aborts the chunks that follow.
func (e *Engine) recordChunk(fingerprints []string, err error, succeeded *int, result *model.SyncResult, kind string) {
	if err != nil {
		result.FailedFingerprints = append(result.FailedFingerprints, fingerprints...)
		result.Errors = append(result.Errors, fmt.Sprintf("%s chunk of %d rows: %v", kind, len(fingerprints), err))
		e.logger.Warn("write chunk failed, continuing",
			"kind", kind,
			"rows", len(fingerprints),
			"error", err)
		return
	}
	*succeeded += len(fingerprints)
	result.SyncedFingerprints = append(result.SyncedFingerprints, fingerprints...)
}

func (e *Engine) withRetryIndex(ctx context.Context, target Target) (*SheetIndex, error) {
	var index *SheetIndex
	err := common.WithRetry(ctx, func() error {
		var err error
		index, err = buildIndex(ctx, e.api, target.SpreadsheetID, target.Tab)
		return err
	}, common.IsRateLimit, e.retryOpts)
	return index, err
}

func (e *Engine) lockFor(target Target) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := target.key()
	if _, exists := e.targetLocks[key]; !exists {
		e.targetLocks[key] = &sync.Mutex{}
	}
	return e.targetLocks[key]
}

func (e *Engine) notifyChunk(done, total int) {
	if e.OnChunk != nil {
		e.OnChunk(done, total)
	}
}

// coalesce groups a chunk of planned updates into value ranges, merging
// runs of adjacent rows so contiguous updates ship as one range.
func coalesce(tab string, chunk []update) []service.ValueRange {
	var data []service.ValueRange
	i := 0
	for i < len(chunk) {
		j := i
		for j+1 < len(chunk) && chunk[j+1].row == chunk[j].row+1 {
			j++
		}
		rows := make([][]any, 0, j-i+1)
		for k := i; k <= j; k++ {
			rows = append(rows, encodeRow(chunk[k].txn))
		}
		data = append(data, service.ValueRange{
			Range:  rowRange(tab, chunk[i].row, len(rows)),
			Values: rows,
		})
		i = j + 1
	}
	return data
}

func chunk2fingerprints(chunk []update) []string {
	fingerprints := make([]string, 0, len(chunk))
	for _, u := range chunk {
		fingerprints = append(fingerprints, u.txn.Fingerprint)
	}
	return fingerprints
}

func txns2fingerprints(txns []model.Transaction) []string {
	fingerprints := make([]string, 0, len(txns))
	for i := range txns {
		fingerprints = append(fingerprints, txns[i].Fingerprint)
	}
	return fingerprints
}

func chunkCount(n int) int {
	if n == 0 {
		return 0
	}
	return (n + writeChunkSize - 1) / writeChunkSize
}
