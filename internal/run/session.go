package run

import (
	"context"

	"github.com/google/uuid"
)

// RunSession is the mutable state of one in-flight pipeline execution.
// At most one session is current per orchestrator; starting a new run
// cancels and discards the previous session before any network call is
// made. Cancelling a session never aborts the remote job — the bridge
// exposes no kill operation.
type RunSession struct {
	id        uuid.UUID
	ctx       context.Context
	cancel    context.CancelFunc
	jobID     string
	presenter *LogPresenter
}

func newSession(sink EventSink) *RunSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunSession{
		id:        uuid.New(),
		ctx:       ctx,
		cancel:    cancel,
		presenter: NewLogPresenter(sink),
	}
}

// ID identifies the session, for logs.
func (s *RunSession) ID() string { return s.id.String() }

// JobID is the backend-assigned job identifier, empty before submission.
func (s *RunSession) JobID() string { return s.jobID }
