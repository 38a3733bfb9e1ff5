package backend

import "strings"

// Status is the canonical job status vocabulary. The bridge's native
// state names are mapped into it and never leak past this package.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Snapshot is the canonical poll result. DownloadRef is present iff the
// status is succeeded.
type Snapshot struct {
	Status      Status
	Message     string
	LogTail     string
	DownloadRef string
}

// MapSnapshot converts a raw bridge snapshot into the canonical shape.
// downloadRef is the deterministic URL derived from the job id; it is
// attached only on success, never trusted from the backend payload.
func MapSnapshot(raw RawSnapshot, downloadRef string) Snapshot {
	snap := Snapshot{
		Status:  CanonicalStatus(raw),
		LogTail: raw.LogTail,
	}

	snap.Message = lastNonEmptyLine(raw.LogTail)
	if snap.Message == "" {
		snap.Message = strings.TrimSpace(raw.Error)
	}

	if snap.Status == StatusSucceeded {
		snap.DownloadRef = downloadRef
	}
	return snap
}

// CanonicalStatus resolves a raw snapshot to the canonical vocabulary.
// An explicit status field wins; otherwise the bridge's native state is
// mapped, defaulting to running when unrecognized.
func CanonicalStatus(raw RawSnapshot) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw.Status))) {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed:
		return Status(strings.ToLower(strings.TrimSpace(raw.Status)))
	}

	switch strings.ToLower(strings.TrimSpace(raw.State)) {
	case "queued":
		return StatusQueued
	case "running":
		return StatusRunning
	case "finished":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	default:
		return StatusRunning
	}
}

// lastNonEmptyLine returns the last line of text that is not blank after
// trimming, or "".
func lastNonEmptyLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
