package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/model"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func storedTxn(id, description, amount, date string) model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	txn := model.Transaction{
		ID:          id,
		OwnerID:     "owner-1",
		JobID:       "job-1",
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Date:        d,
		Source:      model.SourceUpload,
		Status:      model.StatusUnreconciled,
	}
	txn.Fingerprint = txn.ComputeFingerprint()
	return txn
}

func storedDoc(id, vendor, total string, date *time.Time) model.Document {
	return model.Document{
		ID:           id,
		OwnerID:      "owner-1",
		VendorName:   vendor,
		TotalAmount:  decimal.RequireFromString(total),
		DocumentDate: date,
		Status:       model.StatusUnreconciled,
	}
}

func TestInsertBatch_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txn := storedTxn("txn-1", "TESCO STORES 1234", "-45.30", "2025-03-10")
	txn.MerchantName = "Tesco"
	txn.Category = "Groceries"

	n, err := store.InsertBatch(ctx, []model.Transaction{txn})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)

	assert.Equal(t, txn.Description, got.Description)
	assert.Equal(t, txn.MerchantName, got.MerchantName)
	assert.Equal(t, txn.Category, got.Category)
	assert.Equal(t, txn.Fingerprint, got.Fingerprint)
	assert.Equal(t, model.SourceUpload, got.Source)
	assert.Equal(t, model.StatusUnreconciled, got.Status)
	assert.True(t, txn.Amount.Equal(got.Amount), "want %s, got %s", txn.Amount, got.Amount)
	assert.Equal(t, "2025-03-10", got.Date.Format("2006-01-02"))
	assert.Nil(t, got.LastSyncedAt)
}

func TestInsertBatch_ComputesMissingFingerprintAndStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txn := storedTxn("txn-1", "spotify", "-9.99", "2025-03-02")
	txn.Fingerprint = ""
	txn.Status = ""

	_, err := store.InsertBatch(ctx, []model.Transaction{txn})
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.Fingerprint("spotify", txn.Amount, txn.Date), got.Fingerprint)
	assert.Equal(t, model.StatusUnreconciled, got.Status)
}

func TestInsertBatch_AllOrNothing(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	batch := []model.Transaction{
		storedTxn("txn-1", "first", "-1.00", "2025-03-01"),
		storedTxn("txn-1", "duplicate id", "-2.00", "2025-03-02"),
	}

	n, err := store.InsertBatch(ctx, batch)
	require.ErrorIs(t, err, common.ErrDuplicateEntry)
	assert.Zero(t, n)

	txns, err := store.TransactionsByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, txns, "a failed batch must leave no rows behind")
}

func TestInsertBatch_IgnoresRowsWithStoredFingerprints(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	n, err := store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-1", "TESCO STORES 1234", "-45.30", "2025-03-10"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Same statement row under a fresh id, as a raced upload or a caller
	// skipping the duplicate check would produce it.
	n, err = store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-2", "TESCO STORES 1234", "-45.30", "2025-03-10"),
		storedTxn("txn-3", "NETFLIX.COM", "-15.99", "2025-03-12"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the new fingerprint lands")

	txns, err := store.TransactionsByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "txn-1", txns[0].ID)
	assert.Equal(t, "txn-3", txns[1].ID)
}

func TestInsertBatch_EmptyIsNoop(t *testing.T) {
	store := newTestStorage(t)

	n, err := store.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFingerprintsByOwner(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mine := storedTxn("txn-1", "netflix", "-15.99", "2025-03-01")
	other := storedTxn("txn-2", "spotify", "-9.99", "2025-03-02")
	other.OwnerID = "owner-2"
	other.JobID = "job-2"

	_, err := store.InsertBatch(ctx, []model.Transaction{mine, other})
	require.NoError(t, err)

	refs, err := store.FingerprintsByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, refs, 1, "fingerprints are scoped per owner")
	assert.Equal(t, mine.Fingerprint, refs[0].Fingerprint)
	assert.Equal(t, "job-1", refs[0].JobID)
}

func TestLinkMatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txn := storedTxn("txn-1", "tesco", "-45.30", "2025-03-10")
	_, err := store.InsertBatch(ctx, []model.Transaction{txn})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", nil),
	}))

	require.NoError(t, store.LinkMatch(ctx, "txn-1", "doc-1"))

	gotTxn, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusMatched, gotTxn.Status)
	assert.Equal(t, "doc-1", gotTxn.MatchedDocumentID)
	assert.Equal(t, int64(1), gotTxn.SyncVersion, "a link must dirty the row for the next sync")

	gotDoc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusMatched, gotDoc.Status)
	assert.Equal(t, "txn-1", gotDoc.MatchedTransactionID)
}

func TestLinkMatch_AlreadyMatchedTransaction(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-1", "tesco", "-45.30", "2025-03-10"),
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", nil),
		storedDoc("doc-2", "Tesco", "45.30", nil),
	}))

	require.NoError(t, store.LinkMatch(ctx, "txn-1", "doc-1"))

	err = store.LinkMatch(ctx, "txn-1", "doc-2")
	assert.ErrorIs(t, err, common.ErrAlreadyMatched)
}

func TestLinkMatch_AlreadyMatchedDocumentRollsBack(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-1", "tesco", "-45.30", "2025-03-10"),
		storedTxn("txn-2", "tesco again", "-45.30", "2025-03-11"),
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", nil),
	}))

	require.NoError(t, store.LinkMatch(ctx, "txn-1", "doc-1"))

	err = store.LinkMatch(ctx, "txn-2", "doc-1")
	require.ErrorIs(t, err, common.ErrAlreadyMatched)

	// The losing transaction must come out untouched.
	got, err := store.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnreconciled, got.Status)
	assert.Empty(t, got.MatchedDocumentID)
	assert.Zero(t, got.SyncVersion)
}

func TestUnlinkMatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-1", "tesco", "-45.30", "2025-03-10"),
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", nil),
	}))
	require.NoError(t, store.LinkMatch(ctx, "txn-1", "doc-1"))

	require.NoError(t, store.UnlinkMatch(ctx, "txn-1"))

	gotTxn, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnreconciled, gotTxn.Status)
	assert.Empty(t, gotTxn.MatchedDocumentID)
	assert.Equal(t, int64(2), gotTxn.SyncVersion)

	gotDoc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnreconciled, gotDoc.Status)
	assert.Empty(t, gotDoc.MatchedTransactionID)
}

func TestUnlinkMatch_NotFound(t *testing.T) {
	store := newTestStorage(t)

	err := store.UnlinkMatch(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUnreconciledTransactions_ExcludesMatched(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-1", "tesco", "-45.30", "2025-03-10"),
		storedTxn("txn-2", "spotify", "-9.99", "2025-03-11"),
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", nil),
	}))
	require.NoError(t, store.LinkMatch(ctx, "txn-1", "doc-1"))

	txns, err := store.UnreconciledTransactions(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "txn-2", txns[0].ID)
}

func TestGetTransaction_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMarkSynced(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first := storedTxn("txn-1", "netflix", "-15.99", "2025-03-01")
	second := storedTxn("txn-2", "spotify", "-9.99", "2025-03-02")
	_, err := store.InsertBatch(ctx, []model.Transaction{first, second})
	require.NoError(t, err)

	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkSynced(ctx, "owner-1", []string{first.Fingerprint}, at))

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, got.LastSyncedAt.Equal(at))

	untouched, err := store.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.Nil(t, untouched.LastSyncedAt)
}

func TestMarkSynced_EmptyIsNoop(t *testing.T) {
	store := newTestStorage(t)

	err := store.MarkSynced(context.Background(), "owner-1", nil, time.Now())
	assert.NoError(t, err)
}

func TestSaveDocuments_Upsert(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", &date),
	}))

	// Re-saving the same id refreshes the document fields but must not
	// clobber reconciliation state.
	_, err := store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-1", "tesco", "-45.30", "2025-03-10"),
	})
	require.NoError(t, err)
	require.NoError(t, store.LinkMatch(ctx, "txn-1", "doc-1"))

	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco Stores Ltd", "45.35", &date),
	}))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Tesco Stores Ltd", got.VendorName)
	assert.True(t, decimal.RequireFromString("45.35").Equal(got.TotalAmount))
	assert.Equal(t, model.StatusMatched, got.Status)
	assert.Equal(t, "txn-1", got.MatchedTransactionID)
}

func TestDocuments_NilDateRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", nil),
	}))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, got.DocumentDate)
}

func TestUnreconciledDocuments(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveDocuments(ctx, []model.Document{
		storedDoc("doc-1", "Tesco", "45.30", &date),
		storedDoc("doc-2", "Spotify", "9.99", nil),
	}))
	_, err := store.InsertBatch(ctx, []model.Transaction{
		storedTxn("txn-1", "tesco", "-45.30", "2025-03-10"),
	})
	require.NoError(t, err)
	require.NoError(t, store.LinkMatch(ctx, "txn-1", "doc-1"))

	docs, err := store.UnreconciledDocuments(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-2", docs[0].ID)
}

func TestJobs_Lifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	job := &model.Job{
		ID:        "job-1",
		OwnerID:   "owner-1",
		Source:    model.SourceUpload,
		FileName:  "march.ofx",
		Status:    model.JobPending,
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	id, err := store.CreateJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", model.JobCompleted, 120, 30, 2))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, got.Status)
	assert.Equal(t, 120, got.Inserted)
	assert.Equal(t, 30, got.Skipped)
	assert.Equal(t, 2, got.ErrorCount)
	assert.Equal(t, "march.ofx", got.FileName)
	assert.Equal(t, model.SourceUpload, got.Source)
}

func TestListJobs_MostRecentFirst(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.CreateJob(ctx, &model.Job{
			ID:        fmt.Sprintf("job-%d", i),
			OwnerID:   "owner-1",
			Source:    model.SourceUpload,
			Status:    model.JobPending,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	jobs, err := store.ListJobs(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "job-0", jobs[2].ID)
}

func TestUpdateJobStatus_NotFound(t *testing.T) {
	store := newTestStorage(t)

	err := store.UpdateJobStatus(context.Background(), "missing", model.JobCompleted, 0, 0, 0)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
