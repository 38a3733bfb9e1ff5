package run

import (
	"context"
	"sync"
	"testing"
	"time"

	"foampilot/internal/backend"
)

// mockReasoner implements backend.Reasoner with function fields.
type mockReasoner struct {
	checkFunc     func(ctx context.Context, requirement string) (string, error)
	translateFunc func(ctx context.Context, requirement string) (string, error)
}

func (m *mockReasoner) Check(ctx context.Context, requirement string) (string, error) {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, requirement)
	}
	return `{"passed": true}`, nil
}

func (m *mockReasoner) Translate(ctx context.Context, requirement string) (string, error) {
	if m.translateFunc != nil {
		return m.translateFunc(ctx, requirement)
	}
	return "translated: " + requirement, nil
}

// mockRunner implements backend.Runner with function fields.
type mockRunner struct {
	healthFunc func(ctx context.Context) error
	submitFunc func(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error)
	statusFunc func(ctx context.Context, jobID string) (backend.RawSnapshot, error)
}

func (m *mockRunner) Health(ctx context.Context) error {
	if m.healthFunc != nil {
		return m.healthFunc(ctx)
	}
	return nil
}

func (m *mockRunner) Submit(ctx context.Context, req backend.SubmitRequest) (backend.SubmitResponse, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return backend.SubmitResponse{JobID: "job-1"}, nil
}

func (m *mockRunner) Status(ctx context.Context, jobID string) (backend.RawSnapshot, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, jobID)
	}
	return backend.RawSnapshot{State: "finished"}, nil
}

func (m *mockRunner) DownloadURL(jobID string) string {
	return "http://bridge/download/" + jobID
}

type logBlockEvent struct {
	markdown  string
	streaming bool
}

// recordingSink captures every orchestrator emission and signals
// terminal outcomes on a channel.
type recordingSink struct {
	mu        sync.Mutex
	notices   []string
	statuses  []string
	logBlocks []logBlockEvent
	outcomes  []Outcome
	finished  chan Outcome
}

func newRecordingSink() *recordingSink {
	return &recordingSink{finished: make(chan Outcome, 8)}
}

func (r *recordingSink) Notice(markdown string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, markdown)
}

func (r *recordingSink) Status(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, text)
}

func (r *recordingSink) LogBlock(markdown string, streaming bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logBlocks = append(r.logBlocks, logBlockEvent{markdown: markdown, streaming: streaming})
}

func (r *recordingSink) Finished(outcome Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
	r.finished <- outcome
}

func (r *recordingSink) Notices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notices...)
}

func (r *recordingSink) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

func (r *recordingSink) LogBlocks() []logBlockEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logBlockEvent(nil), r.logBlocks...)
}

func (r *recordingSink) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// waitFinished blocks until the next terminal outcome or fails the test.
func (r *recordingSink) waitFinished(t *testing.T) Outcome {
	t.Helper()
	select {
	case outcome := <-r.finished:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run to finish")
		return Outcome{}
	}
}

// mockMeshSource implements MeshSource.
type mockMeshSource struct {
	path string
}

func (m *mockMeshSource) LatestMesh() string { return m.path }

// mockRecorder implements Recorder.
type mockRecorder struct {
	mu          sync.Mutex
	submissions []string
	outcomes    []string
}

func (m *mockRecorder) RecordSubmission(jobID, caseName, requirement string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, jobID)
	return nil
}

func (m *mockRecorder) RecordOutcome(jobID string, status backend.Status, downloadRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, jobID+":"+string(status))
	return nil
}

func (m *mockRecorder) Submissions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submissions...)
}

func (m *mockRecorder) OutcomeRecords() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}
