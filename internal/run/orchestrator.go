package run

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"foampilot/internal/backend"
	"foampilot/internal/logging"
	"foampilot/internal/normalize"
)

// DefaultPollInterval is the fixed delay between job status fetches.
const DefaultPollInterval = 1500 * time.Millisecond

const cancelledNote = "Polling stopped. The job may still be running on the backend."

// MeshSource supplies the mesh file that would accompany a submission.
type MeshSource interface {
	// LatestMesh returns the path of the most recently attached mesh
	// file, or "" when none is queued.
	LatestMesh() string
}

// Recorder persists run history. Failures are logged and ignored; the
// pipeline never depends on it.
type Recorder interface {
	RecordSubmission(jobID, caseName, requirement string) error
	RecordOutcome(jobID string, status backend.Status, downloadRef string) error
}

// Orchestrator sequences validation, translation, submission and polling
// for one conversation. It is the only mutator of the current session:
// starting a run atomically supersedes the previous one, and every
// emission from a run is guarded by a session-identity check so a stale
// goroutine or timer can never touch the UI.
type Orchestrator struct {
	mu      sync.Mutex
	current *RunSession
	closed  bool

	reasoner backend.Reasoner
	runner   backend.Runner
	sink     EventSink

	meshes   MeshSource
	history  Recorder
	caseName string
	interval time.Duration
}

// NewOrchestrator wires an orchestrator to its collaborators.
func NewOrchestrator(reasoner backend.Reasoner, runner backend.Runner, sink EventSink) *Orchestrator {
	return &Orchestrator{
		reasoner: reasoner,
		runner:   runner,
		sink:     sink,
		interval: DefaultPollInterval,
	}
}

// SetMeshSource attaches an optional mesh supplier.
func (o *Orchestrator) SetMeshSource(src MeshSource) { o.meshes = src }

// SetRecorder attaches an optional run-history recorder.
func (o *Orchestrator) SetRecorder(r Recorder) { o.history = r }

// SetCaseName sets the case label sent with submissions.
func (o *Orchestrator) SetCaseName(name string) { o.caseName = name }

// SetPollInterval overrides the polling delay. Tests use this.
func (o *Orchestrator) SetPollInterval(d time.Duration) { o.interval = d }

// Start begins a new run for the given request text. Any still-active
// session is fully cancelled — context aborted, poll timer stopped —
// before the new session issues its first network call. The remote job
// of the old session, if any, keeps running.
func (o *Orchestrator) Start(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyRequest
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrConversationClosed
	}
	if o.current != nil {
		logging.Session("superseding session %s", o.current.ID())
		o.current.cancel()
	}
	s := newSession(o.sink)
	o.current = s
	o.mu.Unlock()

	logging.Session("session %s: checking request (%d chars)", s.ID(), len(trimmed))
	go o.execute(s, trimmed)
	return nil
}

// Cancel aborts the active run, if any. The in-flight call is aborted
// through the session context, the poll timer dies with it, and the live
// log message is marked stopped with a note that the backend may still
// be running. No remote kill is attempted; the bridge has none.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	s := o.current
	o.current = nil
	o.mu.Unlock()
	if s == nil {
		return
	}

	logging.Session("session %s: cancelled by user", s.ID())
	s.cancel()
	s.presenter.MarkStopped("cancelled", cancelledNote)
	o.sink.Notice("Run cancelled. " + cancelledNote)
	o.sink.Finished(Outcome{State: StateCancelled, JobID: s.jobID, Message: "cancelled"})
}

// Close marks the conversation ended. Subsequent Start calls fail; the
// active run, if any, is cancelled.
func (o *Orchestrator) Close() {
	o.Cancel()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Active reports whether a run is in flight.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

// isCurrent guards every emission: a superseded or cancelled session
// must be a no-op from the moment it stops being current.
func (o *Orchestrator) isCurrent(s *RunSession) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current == s
}

// retire returns the orchestrator to Idle if s is still current.
func (o *Orchestrator) retire(s *RunSession) {
	o.mu.Lock()
	if o.current == s {
		o.current = nil
	}
	o.mu.Unlock()
}

// execute runs the pipeline stages strictly in sequence. Each stage is
// awaited before the next begins, so no two stages of one session ever
// overlap.
func (o *Orchestrator) execute(s *RunSession, text string) {
	o.status(s, "Checking request…")
	raw, err := o.reasoner.Check(s.ctx, text)
	if err != nil {
		o.fail(s, err)
		return
	}

	check := normalize.ParseCheckResult(raw)
	if !check.Passed {
		o.block(s, text, check)
		return
	}

	o.status(s, "Translating request…")
	translated, err := o.reasoner.Translate(s.ctx, text)
	if err != nil {
		o.fail(s, err)
		return
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		o.fail(s, ErrEmptyTranslation)
		return
	}

	o.status(s, "Submitting job…")
	sub := backend.SubmitRequest{
		Requirement: translated,
		CaseName:    o.caseName,
	}
	if o.meshes != nil {
		sub.MeshPath = o.meshes.LatestMesh()
	}
	resp, err := o.runner.Submit(s.ctx, sub)
	if err != nil {
		o.fail(s, err)
		return
	}
	if resp.JobID == "" {
		if msg := strings.TrimSpace(resp.Message); msg != "" {
			o.fail(s, fmt.Errorf("%w: %s", ErrMissingJobID, msg))
		} else {
			o.fail(s, ErrMissingJobID)
		}
		return
	}

	s.jobID = resp.JobID
	s.presenter.Reset(resp.JobID)
	o.recordSubmission(resp.JobID, translated)
	logging.Session("session %s: job %s submitted", s.ID(), resp.JobID)
	o.status(s, fmt.Sprintf("Job %s submitted, waiting for status…", resp.JobID))
	o.notice(s, fmt.Sprintf("Job `%s` submitted.", resp.JobID))

	o.poll(s)
}

// poll fetches the job status at a fixed interval until a terminal
// canonical status arrives or the session stops being current. A failed
// tick is retried on the next one; only cancellation ends the loop
// early, silently, because the cancellation path already spoke.
func (o *Orchestrator) poll(s *RunSession) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		if !o.isCurrent(s) {
			return
		}

		raw, err := o.runner.Status(s.ctx, s.jobID)
		if err != nil {
			if isCancellation(err) || s.ctx.Err() != nil {
				return
			}
			logging.Poll("job %s: tick failed, will retry: %v", s.jobID, err)
			continue
		}

		snap := backend.MapSnapshot(raw, o.runner.DownloadURL(s.jobID))
		if !o.isCurrent(s) {
			return
		}

		switch snap.Status {
		case backend.StatusSucceeded:
			o.updateLog(s, snap.LogTail, string(snap.Status), "Run complete.", false)
			o.status(s, fmt.Sprintf("Job %s succeeded", s.jobID))
			o.notice(s, fmt.Sprintf("✅ Job `%s` finished. [Download results](%s)", s.jobID, snap.DownloadRef))
			o.recordOutcome(s.jobID, snap.Status, snap.DownloadRef)
			o.finish(s, Outcome{
				State:       StateSucceeded,
				JobID:       s.jobID,
				Message:     snap.Message,
				DownloadRef: snap.DownloadRef,
			})
			return
		case backend.StatusFailed:
			o.updateLog(s, snap.LogTail, string(snap.Status), "Run failed.", false)
			msg := snap.Message
			if msg == "" {
				msg = "job failed"
			}
			o.status(s, fmt.Sprintf("Job %s failed", s.jobID))
			o.notice(s, fmt.Sprintf("❌ Job `%s` failed: %s", s.jobID, msg))
			o.recordOutcome(s.jobID, snap.Status, "")
			o.finish(s, Outcome{State: StateFailed, JobID: s.jobID, Message: msg})
			return
		default:
			o.updateLog(s, snap.LogTail, string(snap.Status), "", true)
			line := string(snap.Status)
			if snap.Message != "" {
				line += " — " + snap.Message
			}
			o.status(s, fmt.Sprintf("Job %s: %s", s.jobID, line))
		}
	}
}

// block halts the run before translation and surfaces the check verdict
// with a ready-to-resubmit suggestion.
func (o *Orchestrator) block(s *RunSession, text string, check normalize.CheckResult) {
	applyText := check.ApplyText
	if applyText == "" {
		applyText = normalize.SynthesizeApplyText(text, check.Defaults)
	}
	logging.Session("session %s: blocked, %d missing", s.ID(), len(check.Missing))

	o.notice(s, composeBlockedNotice(check, applyText))
	o.finish(s, Outcome{
		State:     StateBlocked,
		Message:   check.Summary,
		Check:     &check,
		ApplyText: applyText,
	})
}

// fail ends the run with a user-visible message, unless the error is a
// cancellation, which stays silent: either Cancel already produced the
// cancelled notice, or the session was superseded and must say nothing.
func (o *Orchestrator) fail(s *RunSession, err error) {
	if isCancellation(err) || s.ctx.Err() != nil {
		logging.SessionDebug("session %s: stage aborted: %v", s.ID(), err)
		o.retire(s)
		return
	}

	msg := err.Error()
	logging.Session("session %s: failed: %s", s.ID(), msg)
	o.notice(s, "❌ "+msg)
	o.finish(s, Outcome{State: StateFailed, JobID: s.jobID, Message: msg})
}

// updateLog emits a live log block while holding the session lock, so
// the identity check and the emission are atomic. A tick racing Cancel
// either emits before the stopped block or not at all; it can never
// land a stale streaming block after it.
func (o *Orchestrator) updateLog(s *RunSession, logText, status, note string, streaming bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s {
		return
	}
	s.presenter.Update(logText, status, note, streaming)
}

func (o *Orchestrator) notice(s *RunSession, markdown string) {
	if o.isCurrent(s) {
		o.sink.Notice(markdown)
	}
}

func (o *Orchestrator) status(s *RunSession, text string) {
	if o.isCurrent(s) {
		o.sink.Status(text)
	}
}

func (o *Orchestrator) finish(s *RunSession, outcome Outcome) {
	if !o.isCurrent(s) {
		return
	}
	o.sink.Finished(outcome)
	o.retire(s)
}

func (o *Orchestrator) recordSubmission(jobID, requirement string) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordSubmission(jobID, o.caseName, requirement); err != nil {
		logging.Store("failed to record submission %s: %v", jobID, err)
	}
}

func (o *Orchestrator) recordOutcome(jobID string, status backend.Status, ref string) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordOutcome(jobID, status, ref); err != nil {
		logging.Store("failed to record outcome %s: %v", jobID, err)
	}
}

// composeBlockedNotice renders the pre-check verdict: summary, missing
// items, suggested defaults and the resubmittable request text.
func composeBlockedNotice(check normalize.CheckResult, applyText string) string {
	var sb strings.Builder
	sb.WriteString("### More information needed\n")
	if check.Summary != "" {
		sb.WriteString("\n" + check.Summary + "\n")
	}
	if len(check.Missing) > 0 {
		sb.WriteString("\nMissing:\n")
		for _, item := range check.Missing {
			sb.WriteString("- " + item + "\n")
		}
	}
	if len(check.Defaults) > 0 {
		sb.WriteString("\nSuggested defaults:\n")
		for _, d := range check.Defaults {
			line := "- " + d.Name
			if d.Value != "" {
				line += "：" + d.Value
			}
			if d.Note != "" {
				line += "（" + d.Note + "）"
			}
			sb.WriteString(line + "\n")
		}
	}
	if applyText != "" {
		sb.WriteString("\nResubmit with defaults applied:\n\n```\n" + applyText + "\n```")
	}
	return sb.String()
}
