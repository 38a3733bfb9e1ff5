package run

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"foampilot/internal/backend"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestOrchestrator(reasoner backend.Reasoner, runner backend.Runner) (*Orchestrator, *recordingSink) {
	sink := newRecordingSink()
	o := NewOrchestrator(reasoner, runner, sink)
	o.SetPollInterval(5 * time.Millisecond)
	return o, sink
}

func TestStart_RejectsEmptyRequest(t *testing.T) {
	o, _ := newTestOrchestrator(&mockReasoner{}, &mockRunner{})
	assert.ErrorIs(t, o.Start("   \n"), ErrEmptyRequest)
}

func TestStart_RejectsClosedConversation(t *testing.T) {
	o, _ := newTestOrchestrator(&mockReasoner{}, &mockRunner{})
	o.Close()
	assert.ErrorIs(t, o.Start("simulate a pipe"), ErrConversationClosed)
}

func TestRun_BlockedHaltsBeforeTranslation(t *testing.T) {
	var translated atomic.Bool
	reasoner := &mockReasoner{
		checkFunc: func(ctx context.Context, req string) (string, error) {
			return `{"passed": false,
				"missing": ["velocity"],
				"defaults": [{"name": "inlet velocity", "value": "10 m/s"}],
				"summary": "need the inlet velocity"}`, nil
		},
		translateFunc: func(ctx context.Context, req string) (string, error) {
			translated.Store(true)
			return req, nil
		},
	}
	o, sink := newTestOrchestrator(reasoner, &mockRunner{})

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)

	assert.Equal(t, StateBlocked, outcome.State)
	assert.False(t, translated.Load(), "translation must not run on a blocked check")
	require.NotNil(t, outcome.Check)
	assert.Equal(t, []string{"velocity"}, outcome.Check.Missing)
	assert.True(t, strings.HasSuffix(outcome.ApplyText, "- inlet velocity：10 m/s"), "applyText=%q", outcome.ApplyText)

	notices := sink.Notices()
	require.NotEmpty(t, notices)
	assert.Contains(t, notices[0], "velocity")
	assert.Contains(t, notices[0], "need the inlet velocity")
	assert.False(t, o.Active())
}

func TestRun_EmptyTranslationFails(t *testing.T) {
	reasoner := &mockReasoner{
		translateFunc: func(ctx context.Context, req string) (string, error) {
			return "   \n", nil
		},
	}
	o, sink := newTestOrchestrator(reasoner, &mockRunner{})

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)

	assert.Equal(t, StateFailed, outcome.State)
	assert.Contains(t, outcome.Message, ErrEmptyTranslation.Error())
}

func TestRun_MissingJobIDFailsWithoutPolling(t *testing.T) {
	var polled atomic.Bool
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			return backend.SubmitResponse{}, nil
		},
		statusFunc: func(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
			polled.Store(true)
			return backend.RawSnapshot{}, nil
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)

	assert.Equal(t, StateFailed, outcome.State)
	assert.Contains(t, outcome.Message, ErrMissingJobID.Error())
	time.Sleep(30 * time.Millisecond)
	assert.False(t, polled.Load(), "no polling may start without a job id")
}

func TestRun_MissingJobIDUsesResponseMessage(t *testing.T) {
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			return backend.SubmitResponse{Message: "queue is full"}, nil
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)
	assert.Equal(t, StateFailed, outcome.State)
	assert.Contains(t, outcome.Message, "queue is full")
}

func TestRun_PollsToSuccess(t *testing.T) {
	var tick atomic.Int32
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			return backend.SubmitResponse{JobID: "abc123"}, nil
		},
		statusFunc: func(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
			switch tick.Add(1) {
			case 1:
				return backend.RawSnapshot{State: "queued"}, nil
			case 2:
				return backend.RawSnapshot{State: "running", LogTail: "meshing\n"}, nil
			default:
				return backend.RawSnapshot{State: "finished", LogTail: "done\n"}, nil
			}
		},
	}
	recorder := &mockRecorder{}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)
	o.SetRecorder(recorder)

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)

	assert.Equal(t, StateSucceeded, outcome.State)
	assert.Equal(t, "abc123", outcome.JobID)
	assert.Equal(t, "done", outcome.Message)
	assert.Equal(t, "http://bridge/download/abc123", outcome.DownloadRef)

	blocks := sink.LogBlocks()
	require.NotEmpty(t, blocks)
	final := blocks[len(blocks)-1]
	assert.False(t, final.streaming, "final log message must not stream")
	assert.Contains(t, final.markdown, "done")
	assert.Contains(t, final.markdown, "Run complete.")

	assert.Equal(t, []string{"abc123"}, recorder.Submissions())
	assert.Equal(t, []string{"abc123:succeeded"}, recorder.OutcomeRecords())
	assert.False(t, o.Active())
}

func TestRun_PollReportsFailure(t *testing.T) {
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			return backend.SubmitResponse{JobID: "abc123"}, nil
		},
		statusFunc: func(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
			return backend.RawSnapshot{State: "failed", Error: "Process exited with code 1"}, nil
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)

	assert.Equal(t, StateFailed, outcome.State)
	assert.Contains(t, outcome.Message, "Process exited with code 1")
	assert.Empty(t, outcome.DownloadRef)
}

func TestRun_PollTickErrorIsRetried(t *testing.T) {
	var tick atomic.Int32
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			return backend.SubmitResponse{JobID: "abc123"}, nil
		},
		statusFunc: func(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
			if tick.Add(1) == 1 {
				return backend.RawSnapshot{}, errors.New("connection refused")
			}
			return backend.RawSnapshot{State: "finished", LogTail: "done\n"}, nil
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)
	assert.Equal(t, StateSucceeded, outcome.State)
	assert.GreaterOrEqual(t, tick.Load(), int32(2))
}

func TestRun_TransportFailureSurfacesErrorText(t *testing.T) {
	reasoner := &mockReasoner{
		checkFunc: func(ctx context.Context, req string) (string, error) {
			return "", &backend.APIError{StatusCode: 502, Message: "502 Bad Gateway"}
		},
	}
	o, sink := newTestOrchestrator(reasoner, &mockRunner{})

	require.NoError(t, o.Start("simulate a pipe flow"))
	outcome := sink.waitFinished(t)
	assert.Equal(t, StateFailed, outcome.State)
	assert.Equal(t, "502 Bad Gateway", outcome.Message)
}

func TestCancel_MidTranslationNeverSubmits(t *testing.T) {
	translating := make(chan struct{})
	var submitted atomic.Bool
	reasoner := &mockReasoner{
		translateFunc: func(ctx context.Context, req string) (string, error) {
			close(translating)
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			submitted.Store(true)
			return backend.SubmitResponse{JobID: "x"}, nil
		},
	}
	o, sink := newTestOrchestrator(reasoner, runner)

	require.NoError(t, o.Start("simulate a pipe flow"))
	<-translating
	o.Cancel()

	outcome := sink.waitFinished(t)
	assert.Equal(t, StateCancelled, outcome.State)
	time.Sleep(30 * time.Millisecond)
	assert.False(t, submitted.Load(), "cancelled run must never submit")

	var cancelled bool
	for _, n := range sink.Notices() {
		if strings.Contains(n, "cancelled") {
			cancelled = true
		}
	}
	assert.True(t, cancelled, "user must see a cancelled notice")
	assert.False(t, o.Active())
}

func TestCancel_WhilePollingMarksLogStopped(t *testing.T) {
	polling := make(chan struct{})
	var once atomic.Bool
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			return backend.SubmitResponse{JobID: "abc123"}, nil
		},
		statusFunc: func(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
			if once.CompareAndSwap(false, true) {
				close(polling)
			}
			return backend.RawSnapshot{State: "running", LogTail: "step 1\n"}, nil
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)

	require.NoError(t, o.Start("simulate a pipe flow"))
	<-polling
	time.Sleep(20 * time.Millisecond) // let at least one snapshot render
	o.Cancel()

	outcome := sink.waitFinished(t)
	assert.Equal(t, StateCancelled, outcome.State)

	blocks := sink.LogBlocks()
	require.NotEmpty(t, blocks)
	final := blocks[len(blocks)-1]
	assert.False(t, final.streaming)
	assert.Contains(t, final.markdown, cancelledNote)
}

func TestCancel_RacingTickCannotReopenStoppedLog(t *testing.T) {
	fetchStarted := make(chan struct{})
	releaseFetch := make(chan struct{})
	var tick atomic.Int32
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			return backend.SubmitResponse{JobID: "abc123"}, nil
		},
		statusFunc: func(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
			switch tick.Add(1) {
			case 1:
				return backend.RawSnapshot{State: "running", LogTail: "step 1\n"}, nil
			case 2:
				close(fetchStarted)
				<-releaseFetch
				return backend.RawSnapshot{State: "running", LogTail: "step 2\n"}, nil
			default:
				return backend.RawSnapshot{State: "running"}, nil
			}
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)

	require.NoError(t, o.Start("simulate a pipe flow"))
	<-fetchStarted
	// Cancel lands while a snapshot fetch is in flight; the stopped
	// block must stay final even after the fetch returns.
	o.Cancel()
	outcome := sink.waitFinished(t)
	assert.Equal(t, StateCancelled, outcome.State)

	close(releaseFetch)
	time.Sleep(30 * time.Millisecond)

	blocks := sink.LogBlocks()
	require.NotEmpty(t, blocks)
	final := blocks[len(blocks)-1]
	assert.False(t, final.streaming, "a stale tick reopened the stopped log")
	assert.Contains(t, final.markdown, cancelledNote)
}

func TestStart_SupersedesActiveRun(t *testing.T) {
	firstChecking := make(chan struct{})
	var checks atomic.Int32
	reasoner := &mockReasoner{
		checkFunc: func(ctx context.Context, req string) (string, error) {
			if checks.Add(1) == 1 {
				close(firstChecking)
				<-ctx.Done()
				return "", ctx.Err()
			}
			return `{"passed": false, "missing": ["velocity"]}`, nil
		},
	}
	o, sink := newTestOrchestrator(reasoner, &mockRunner{})

	require.NoError(t, o.Start("first request"))
	<-firstChecking
	require.NoError(t, o.Start("second request"))

	outcome := sink.waitFinished(t)
	assert.Equal(t, StateBlocked, outcome.State)

	// Exactly one terminal outcome: the superseded run stays silent.
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, sink.Outcomes(), 1)
	assert.Equal(t, int32(2), checks.Load())
}

func TestSupersededRun_TimerStops(t *testing.T) {
	var firstTicks atomic.Int32
	firstPolling := make(chan struct{})
	var once atomic.Bool
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			if strings.Contains(req.Requirement, "first") {
				return backend.SubmitResponse{JobID: "job-first"}, nil
			}
			return backend.SubmitResponse{JobID: "job-second"}, nil
		},
		statusFunc: func(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
			if jobID == "job-first" {
				firstTicks.Add(1)
				if once.CompareAndSwap(false, true) {
					close(firstPolling)
				}
				return backend.RawSnapshot{State: "running"}, nil
			}
			return backend.RawSnapshot{State: "finished", LogTail: "done\n"}, nil
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)

	require.NoError(t, o.Start("first request"))
	<-firstPolling
	require.NoError(t, o.Start("second request"))

	outcome := sink.waitFinished(t)
	assert.Equal(t, StateSucceeded, outcome.State)
	assert.Equal(t, "job-second", outcome.JobID)

	// The first run's poll loop must be dead: no further ticks accrue.
	settled := firstTicks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, firstTicks.Load(), "superseded poll timer still ticking")
}

func TestRun_SubmitsLatestMesh(t *testing.T) {
	var gotMesh atomic.Value
	runner := &mockRunner{
		submitFunc: func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
			gotMesh.Store(req.MeshPath)
			return backend.SubmitResponse{JobID: "abc123"}, nil
		},
	}
	o, sink := newTestOrchestrator(&mockReasoner{}, runner)
	o.SetMeshSource(&mockMeshSource{path: "/meshes/wing.msh"})

	require.NoError(t, o.Start("simulate a wing"))
	sink.waitFinished(t)
	assert.Equal(t, "/meshes/wing.msh", gotMesh.Load())
}
