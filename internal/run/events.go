// Package run drives one submission pipeline from free-text request to
// terminal job state: pre-validation, translation, submission and status
// polling. It owns cancellation and enforces single-flight execution per
// conversation. The UI is externally owned; the orchestrator only talks
// to it through the narrow EventSink contract.
package run

import "foampilot/internal/normalize"

// State is the terminal disposition of a run.
type State string

const (
	StateBlocked   State = "blocked"   // pre-check wants more information
	StateSucceeded State = "succeeded" //
	StateFailed    State = "failed"    //
	StateCancelled State = "cancelled" // user-initiated, not a failure
)

// Outcome describes how a run ended.
type Outcome struct {
	State       State
	Message     string
	JobID       string
	DownloadRef string // set iff State is StateSucceeded

	// Blocked runs carry the normalized check verdict and a
	// ready-to-resubmit request with suggested defaults folded in.
	Check     *normalize.CheckResult
	ApplyText string
}

// EventSink receives everything the orchestrator wants shown. The chat
// TUI implements it by forwarding each call as a bubbletea message; the
// one-shot CLI implements it by printing. Implementations must be safe
// to call from the run goroutine.
type EventSink interface {
	// Notice appends a new assistant message (markdown).
	Notice(markdown string)

	// Status replaces the transient one-line status text.
	Status(text string)

	// LogBlock replaces the content of the live log message. streaming
	// reports whether more updates are expected.
	LogBlock(markdown string, streaming bool)

	// Finished reports the terminal outcome of a run.
	Finished(outcome Outcome)
}
