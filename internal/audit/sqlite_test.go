package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")

	ledger, err := Open(path, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ledger.Close()
	})
	return ledger
}

func TestLedger_RecordAndRecent(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	err := ledger.Record(ctx, Entry{
		SelfID: "100",
		Actor:  "999",
		Action: ActionBlock,
		List:   "user",
		IDs:    []string{"1", "2"},
	})
	require.NoError(t, err)

	entries, err := ledger.Recent(ctx, "100", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
	assert.Equal(t, "999", entries[0].Actor)
	assert.Equal(t, ActionBlock, entries[0].Action)
	assert.Equal(t, []string{"1", "2"}, entries[0].IDs)
}

func TestLedger_RecentFiltersBySelfID(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, Entry{SelfID: "100", Actor: "999", Action: ActionReset}))
	require.NoError(t, ledger.Record(ctx, Entry{SelfID: "200", Actor: "999", Action: ActionReset}))

	entries, err := ledger.Recent(ctx, "100", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "100", entries[0].SelfID)
}

func TestLedger_RecentEmptyIDs(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, Entry{SelfID: "100", Actor: "system", Action: ActionAutoSleep}))

	entries, err := ledger.Recent(ctx, "100", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].IDs)
}
