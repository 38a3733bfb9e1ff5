package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foampilot/internal/backend"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordSubmission("abc123", "pipe", "Simulate pipe flow."))
	require.NoError(t, s.RecordSubmission("def456", "wing", "Simulate wing."))

	runs, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first; same-second inserts break ties on job id.
	assert.Equal(t, "def456", runs[0].JobID)
	assert.Equal(t, backend.StatusQueued, runs[0].Status)
	assert.True(t, runs[0].FinishedAt.IsZero())

	require.NoError(t, s.RecordOutcome("abc123", backend.StatusSucceeded, "http://bridge/download/abc123"))

	runs, err = s.List(10)
	require.NoError(t, err)
	for _, r := range runs {
		if r.JobID != "abc123" {
			continue
		}
		assert.Equal(t, backend.StatusSucceeded, r.Status)
		assert.Equal(t, "http://bridge/download/abc123", r.DownloadRef)
		assert.False(t, r.FinishedAt.IsZero())
	}
}

func TestStore_ListLimit(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.RecordSubmission(id, "", ""))
	}
	runs, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStore_OutcomeForUnknownJobIsNoop(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordOutcome("missing", backend.StatusFailed, ""))
	runs, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
