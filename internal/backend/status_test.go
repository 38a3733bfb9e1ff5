package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  RawSnapshot
		want Status
	}{
		{"queued", RawSnapshot{State: "queued"}, StatusQueued},
		{"running", RawSnapshot{State: "running"}, StatusRunning},
		{"finished maps to succeeded", RawSnapshot{State: "finished"}, StatusSucceeded},
		{"failed", RawSnapshot{State: "failed"}, StatusFailed},
		{"unknown defaults to running", RawSnapshot{State: "mystery"}, StatusRunning},
		{"empty defaults to running", RawSnapshot{}, StatusRunning},
		{"explicit override wins", RawSnapshot{State: "running", Status: "failed"}, StatusFailed},
		{"override is case-insensitive", RawSnapshot{State: "queued", Status: "Succeeded"}, StatusSucceeded},
		{"bogus override falls back to state", RawSnapshot{State: "finished", Status: "weird"}, StatusSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalStatus(tt.raw))
		})
	}
}

func TestMapSnapshot_Message(t *testing.T) {
	snap := MapSnapshot(RawSnapshot{State: "running", LogTail: "step 1\nstep 2\n\n  \n"}, "")
	assert.Equal(t, "step 2", snap.Message)

	snap = MapSnapshot(RawSnapshot{State: "failed", Error: "  boom  "}, "")
	assert.Equal(t, "boom", snap.Message)

	snap = MapSnapshot(RawSnapshot{State: "queued"}, "")
	assert.Equal(t, "", snap.Message)
}

func TestMapSnapshot_DownloadRefOnlyOnSuccess(t *testing.T) {
	ref := "http://bridge/download/abc123"

	for _, raw := range []RawSnapshot{
		{State: "queued"},
		{State: "running"},
		{State: "failed", Zip: "/tmp/abc123.zip"},
		{State: "running", Status: "failed"},
	} {
		snap := MapSnapshot(raw, ref)
		assert.Empty(t, snap.DownloadRef, "state=%s status=%s", raw.State, raw.Status)
	}

	snap := MapSnapshot(RawSnapshot{State: "finished"}, ref)
	assert.Equal(t, ref, snap.DownloadRef)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
}
