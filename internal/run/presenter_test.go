package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPresenter_IdempotentMerge(t *testing.T) {
	sink := newRecordingSink()
	p := NewLogPresenter(sink)
	p.Reset("abc123")

	assert.True(t, p.Update("step 1\n", "running", "", true))
	assert.False(t, p.Update("step 1\n", "running", "", true))
	assert.False(t, p.Update("step 1", "running", "", true)) // same after trim
	require.Len(t, sink.LogBlocks(), 1)

	// Any tuple member changing emits again.
	assert.True(t, p.Update("step 1", "running", "", false))
	assert.True(t, p.Update("step 1", "succeeded", "", false))
	assert.True(t, p.Update("step 1", "succeeded", "Run complete.", false))
	assert.Len(t, sink.LogBlocks(), 4)
}

func TestLogPresenter_SanitizesLogText(t *testing.T) {
	sink := newRecordingSink()
	p := NewLogPresenter(sink)
	p.Reset("abc123")

	p.Update("solver\x00 output  \n\n", "running", "", true)
	blocks := sink.LogBlocks()
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].markdown, "solver output")
	assert.NotContains(t, blocks[0].markdown, "\x00")
}

func TestLogPresenter_PlaceholderWhenEmpty(t *testing.T) {
	sink := newRecordingSink()
	p := NewLogPresenter(sink)
	p.Reset("abc123")

	p.Update("", "queued", "", true)
	blocks := sink.LogBlocks()
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].markdown, logPlaceholder)
	assert.Contains(t, blocks[0].markdown, "abc123")
	assert.True(t, blocks[0].streaming)
}

func TestLogPresenter_ComposedBlock(t *testing.T) {
	sink := newRecordingSink()
	p := NewLogPresenter(sink)
	p.Reset("abc123")

	p.Update("done", "succeeded", "Run complete.", false)
	blocks := sink.LogBlocks()
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0].markdown, "`abc123` — succeeded")
	assert.Contains(t, blocks[0].markdown, "Run complete.")
	assert.Contains(t, blocks[0].markdown, "```\ndone\n```")
	assert.False(t, blocks[0].streaming)
}

func TestLogPresenter_MarkStopped(t *testing.T) {
	sink := newRecordingSink()
	p := NewLogPresenter(sink)
	p.Reset("abc123")

	// Nothing live yet: stopping is a no-op.
	p.MarkStopped("cancelled", cancelledNote)
	assert.Empty(t, sink.LogBlocks())

	p.Update("step 1", "running", "", true)
	p.MarkStopped("cancelled", cancelledNote)
	blocks := sink.LogBlocks()
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[1].markdown, cancelledNote)
	assert.Contains(t, blocks[1].markdown, "step 1")
	assert.False(t, blocks[1].streaming)
}

func TestLogPresenter_ResetClearsCache(t *testing.T) {
	sink := newRecordingSink()
	p := NewLogPresenter(sink)
	p.Reset("job1")
	p.Update("log", "running", "", true)

	p.Reset("job2")
	// Identical tuple, but a fresh job must re-emit.
	assert.True(t, p.Update("log", "running", "", true))
	blocks := sink.LogBlocks()
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[1].markdown, "job2")
}
