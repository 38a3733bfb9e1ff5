// Package backend holds the HTTP clients for the two services foampilot
// consumes: the reasoning service (pre-validation and translation of
// free-text requests) and the job bridge (solver submission, status and
// result download). Both speak JSON over HTTP; neither is trusted to
// return well-shaped payloads, so everything is normalized at this
// boundary.
package backend

import "context"

// MeshExt is the only file extension the bridge accepts for the mesh
// slot. Anything else is rejected before a submission is attempted.
const MeshExt = ".msh"

// Reasoner is the pre-validation and translation collaborator.
type Reasoner interface {
	// Check judges whether a free-text request carries enough
	// information to run. The reply is raw LLM-shaped text; callers
	// feed it through normalize.ParseCheckResult.
	Check(ctx context.Context, requirement string) (string, error)

	// Translate converts the request into the canonical English
	// requirement the solver pipeline expects.
	Translate(ctx context.Context, requirement string) (string, error)
}

// Runner is the job bridge collaborator.
type Runner interface {
	// Health probes the bridge. Best effort; callers ignore failures.
	Health(ctx context.Context) error

	// Submit hands a translated requirement (and optional mesh file)
	// to the bridge and returns its response. A response without a
	// job id is not an error here; the orchestrator decides that.
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)

	// Status fetches the raw job snapshot. Idempotent and
	// side-effect-free on the bridge side, safe to poll.
	Status(ctx context.Context, jobID string) (RawSnapshot, error)

	// DownloadURL derives the result archive URL from the job id
	// alone. No network call is made.
	DownloadURL(jobID string) string
}

// SubmitRequest is one solver submission.
type SubmitRequest struct {
	Requirement string
	CaseName    string
	MeshPath    string // local path to a .msh file, empty for none
}

// SubmitResponse is the bridge's reply to a submission.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// RawSnapshot is the bridge's native job status shape. Fields the
// orchestrator does not consume are kept for the status subcommand.
type RawSnapshot struct {
	State      string  `json:"state"`  // queued|running|finished|failed
	Status     string  `json:"status"` // optional canonical override
	LogTail    string  `json:"log_tail"`
	Error      string  `json:"error"`
	ReturnCode *int    `json:"returncode"`
	Zip        string  `json:"zip"`
	CaseName   string  `json:"case_name"`
	CreatedAt  float64 `json:"created_at"`
	StartedAt  float64 `json:"started_at"`
	FinishedAt float64 `json:"finished_at"`
}
