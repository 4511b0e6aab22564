package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		j.Close()
	})
	return j
}

func entryAt(op domain.Operation, target string, at time.Time) domain.JournalEntry {
	return domain.JournalEntry{
		Operation:          op,
		Outcome:            domain.OutcomeOK,
		DeploymentTargetID: target,
		CreatedAt:          at,
	}
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")

	j, err := Open(dsn)
	require.NoError(t, err)
	defer j.Close()

	assert.FileExists(t, dsn)
}

func TestOpen_Reopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), entryAt(domain.OperationCreateVersion, "", time.Now())))
	require.NoError(t, j.Close())

	j, err = Open(dsn)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen_InMemory(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Record(context.Background(), entryAt(domain.OperationCreateVersion, "", time.Now())))
	entries, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen_ConnectionErrorKeepsCause(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db") + "?_txlock=sometimes"

	_, err := Open(dsn)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Contains(t, err.Error(), "sometimes")
}

// =============================================================================
// Record
// =============================================================================

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	j := setupTestJournal(t)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 123456789, time.UTC)
	j.now = func() time.Time { return fixed }

	err := j.Record(context.Background(), domain.JournalEntry{
		Operation:            domain.OperationUpdateDeployment,
		Outcome:              domain.OutcomeFailed,
		DeploymentTargetID:   "t1",
		DeploymentID:         "d1",
		ApplicationID:        "app",
		ApplicationVersionID: "v2",
		PreviousVersionID:    "v1",
		Step:                 "create_deployment",
		Message:              "503",
	})
	require.NoError(t, err)

	entries, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.NotEmpty(t, got.ID)
	assert.True(t, fixed.Equal(got.CreatedAt))
	assert.Equal(t, domain.OutcomeFailed, got.Outcome)
	assert.Equal(t, "v1", got.PreviousVersionID)
	assert.Equal(t, "create_deployment", got.Step)
	assert.Equal(t, "503", got.Message)
}

func TestRecord_RejectsIncompleteEntry(t *testing.T) {
	j := setupTestJournal(t)

	err := j.Record(context.Background(), domain.JournalEntry{Operation: domain.OperationCreateVersion})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "Record", storeErr.Op)
}

func TestRecord_DuplicateID(t *testing.T) {
	j := setupTestJournal(t)
	entry := entryAt(domain.OperationCreateVersion, "", time.Now())
	entry.ID = "fixed"

	require.NoError(t, j.Record(context.Background(), entry))
	assert.Error(t, j.Record(context.Background(), entry))
}

// =============================================================================
// List
// =============================================================================

func TestList_NewestFirst(t *testing.T) {
	j := setupTestJournal(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, target := range []string{"t1", "t2", "t3"} {
		require.NoError(t, j.Record(context.Background(),
			entryAt(domain.OperationUpdateDeployment, target, base.Add(time.Duration(i)*time.Millisecond))))
	}

	entries, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "t3", entries[0].DeploymentTargetID)
	assert.Equal(t, "t1", entries[2].DeploymentTargetID)
}

func TestList_SameTimestampUsesInsertOrder(t *testing.T) {
	j := setupTestJournal(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(context.Background(), entryAt(domain.OperationStatusChange, "first", at)))
	require.NoError(t, j.Record(context.Background(), entryAt(domain.OperationStatusChange, "second", at)))

	entries, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].DeploymentTargetID)
}

func TestList_Limit(t *testing.T) {
	j := setupTestJournal(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(context.Background(),
			entryAt(domain.OperationStatusChange, "t1", base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := j.List(context.Background(), ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestList_Filters(t *testing.T) {
	j := setupTestJournal(t)
	now := time.Now()
	require.NoError(t, j.Record(context.Background(), entryAt(domain.OperationUpdateDeployment, "t1", now)))
	require.NoError(t, j.Record(context.Background(), entryAt(domain.OperationStatusChange, "t1", now)))
	require.NoError(t, j.Record(context.Background(), entryAt(domain.OperationUpdateDeployment, "t2", now)))

	byTarget, err := j.List(context.Background(), ListOptions{DeploymentTargetID: "t1"})
	require.NoError(t, err)
	assert.Len(t, byTarget, 2)

	byBoth, err := j.List(context.Background(), ListOptions{
		DeploymentTargetID: "t1",
		Operation:          domain.OperationUpdateDeployment,
	})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, domain.OperationUpdateDeployment, byBoth[0].Operation)
}

func TestList_Empty(t *testing.T) {
	j := setupTestJournal(t)

	entries, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
