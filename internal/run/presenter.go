package run

import (
	"fmt"
	"strings"
	"sync"
)

// logPlaceholder is shown while a job has produced no log output yet.
const logPlaceholder = "(no log yet)"

// LogPresenter maintains the live log message for one job. Every update
// is compared against the last emitted (log, status, note, streaming)
// tuple; identical updates emit nothing, so repeated polls with an
// unchanged snapshot cause no UI churn.
// Cancel runs on the UI goroutine while polling runs on the session
// goroutine, so the presenter locks around its cache.
type LogPresenter struct {
	mu      sync.Mutex
	sink    EventSink
	jobID   string
	last    logTuple
	emitted bool
}

type logTuple struct {
	logText   string
	status    string
	note      string
	streaming bool
}

// NewLogPresenter creates a presenter emitting into sink.
func NewLogPresenter(sink EventSink) *LogPresenter {
	return &LogPresenter{sink: sink}
}

// Reset binds the presenter to a new job and clears the emitted cache.
func (p *LogPresenter) Reset(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobID = jobID
	p.last = logTuple{}
	p.emitted = false
}

// Update sanitizes the log text, merges the tuple and emits a display
// block when anything changed. Reports whether an emit happened.
func (p *LogPresenter) Update(logText, status, note string, streaming bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.update(logText, status, note, streaming)
}

func (p *LogPresenter) update(logText, status, note string, streaming bool) bool {
	next := logTuple{
		logText:   sanitizeLog(logText),
		status:    status,
		note:      note,
		streaming: streaming,
	}
	if p.emitted && next == p.last {
		return false
	}
	p.last = next
	p.emitted = true
	p.sink.LogBlock(p.compose(next), next.streaming)
	return true
}

// MarkStopped re-emits the last log block as non-streaming with a note.
// No-op before the first update; there is no live message to stop.
func (p *LogPresenter) MarkStopped(status, note string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.emitted {
		return
	}
	p.update(p.last.logText, status, note, false)
}

// compose renders the display block: status header, optional note
// paragraph, then the log in a fenced block.
func (p *LogPresenter) compose(t logTuple) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Job `%s` — %s**\n", p.jobID, t.status)
	if t.note != "" {
		sb.WriteString("\n" + t.note + "\n")
	}
	if t.logText == "" {
		sb.WriteString("\n" + logPlaceholder)
	} else {
		sb.WriteString("\n```\n" + t.logText + "\n```")
	}
	return sb.String()
}

// sanitizeLog trims trailing whitespace and strips embedded NUL bytes,
// which solver logs occasionally contain and terminals choke on.
func sanitizeLog(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimRight(text, " \t\r\n")
}
