package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"foampilot/internal/logging"
)

// BridgeClient talks to the job bridge: submission, status polling and
// result download. Implements Runner.
type BridgeClient struct {
	baseURL    string
	httpClient *http.Client
}

// BridgeConfig holds configuration for the bridge client.
type BridgeConfig struct {
	BaseURL string
}

// DefaultBridgeConfig returns sensible defaults for a local bridge.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		BaseURL: "http://localhost:9000",
	}
}

// NewBridgeClient creates a bridge client. The client carries no
// timeout of its own; a stuck call is interrupted only through the
// request context.
func NewBridgeClient(cfg BridgeConfig) *BridgeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBridgeConfig().BaseURL
	}
	return &BridgeClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Health probes the bridge.
func (c *BridgeClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))}
	}
	return nil
}

// Submit sends a solver submission. With a mesh attached the request is
// multipart (requirement, case_name, mesh parts); otherwise plain JSON.
func (c *BridgeClient) Submit(ctx context.Context, sub SubmitRequest) (SubmitResponse, error) {
	if sub.MeshPath != "" && !strings.EqualFold(filepath.Ext(sub.MeshPath), MeshExt) {
		return SubmitResponse{}, fmt.Errorf("only %s mesh files are supported, got %q", MeshExt, filepath.Base(sub.MeshPath))
	}

	var body io.Reader
	contentType := "application/json"

	if sub.MeshPath != "" {
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		if err := writer.WriteField("requirement", sub.Requirement); err != nil {
			return SubmitResponse{}, err
		}
		if sub.CaseName != "" {
			if err := writer.WriteField("case_name", sub.CaseName); err != nil {
				return SubmitResponse{}, err
			}
		}
		file, err := os.Open(sub.MeshPath)
		if err != nil {
			return SubmitResponse{}, fmt.Errorf("failed to open mesh file: %w", err)
		}
		part, err := writer.CreateFormFile("mesh", filepath.Base(sub.MeshPath))
		if err != nil {
			file.Close()
			return SubmitResponse{}, err
		}
		if _, err := io.Copy(part, file); err != nil {
			file.Close()
			return SubmitResponse{}, fmt.Errorf("failed to read mesh file: %w", err)
		}
		file.Close()
		if err := writer.Close(); err != nil {
			return SubmitResponse{}, err
		}
		body = buf
		contentType = writer.FormDataContentType()
	} else {
		payload := map[string]string{"requirement": sub.Requirement}
		if sub.CaseName != "" {
			payload["case_name"] = sub.CaseName
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return SubmitResponse{}, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", body)
	if err != nil {
		return SubmitResponse{}, err
	}
	req.Header.Set("Content-Type", contentType)

	logging.API("bridge submit: case=%q mesh=%q", sub.CaseName, filepath.Base(sub.MeshPath))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmitResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ErrorText(resp.StatusCode, http.StatusText(resp.StatusCode), data)
		logging.APIError("bridge submit failed: %s", msg)
		return SubmitResponse{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	// A malformed success body is not an error here; the orchestrator
	// treats a missing job id as fatal for the run.
	var out SubmitResponse
	_ = json.Unmarshal(data, &out)
	logging.API("bridge submit: job_id=%q", out.JobID)
	return out, nil
}

// Status fetches the raw job snapshot.
func (c *BridgeClient) Status(ctx context.Context, jobID string) (RawSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+jobID, nil)
	if err != nil {
		return RawSnapshot{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RawSnapshot{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawSnapshot{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ErrorText(resp.StatusCode, http.StatusText(resp.StatusCode), data)
		return RawSnapshot{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var snap RawSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return RawSnapshot{}, fmt.Errorf("malformed status payload: %w", err)
	}
	logging.PollDebug("status %s: state=%s", jobID, snap.State)
	return snap, nil
}

// DownloadURL derives the result archive URL from the job id alone.
func (c *BridgeClient) DownloadURL(jobID string) string {
	return c.baseURL + "/download/" + jobID
}
