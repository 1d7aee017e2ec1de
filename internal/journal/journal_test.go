package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtbridge/internal/domain"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndCount(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	outcome := domain.ExecutionOutcome{
		State:   domain.StateFilled,
		Success: true,
		Ticket:  1234,
		Retcode: 10009,
		Message: "request completed",
	}
	require.NoError(t, j.Record(ctx, "EURUSD", "buy", 0.1, outcome, map[string]any{"symbol": "EURUSD"}))
	require.NoError(t, j.Record(ctx, "GBPUSD", "sell", 0.2, domain.ExecutionOutcome{State: domain.StateRejected, Message: "symbol GBPUSD not found"}, nil))

	n, err = j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRecentNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i, sym := range []string{"EURUSD", "GBPUSD", "USDJPY"} {
		outcome := domain.ExecutionOutcome{State: domain.StateFilled, Success: true, Ticket: int64(i + 1)}
		require.NoError(t, j.Record(ctx, sym, "buy", 0.1, outcome, nil))
	}

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].ReceivedAt.Before(entries[1].ReceivedAt))
}

func TestSchemaIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), "EURUSD", "close", 0,
		domain.ExecutionOutcome{State: domain.StateFilled, Success: true}, nil))
	require.NoError(t, j.Close())

	// Reopening must keep existing rows and not fail on existing tables.
	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	n, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
