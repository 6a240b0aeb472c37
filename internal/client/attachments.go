package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AttachmentClient speaks the relay's attachment correlation protocol:
// upload a blob, get an opaque reference id back; resolve a reference id to
// bytes. Uploads outlive room membership: leaving a room does not cancel an
// in-flight upload, the result is simply discarded by the caller.
type AttachmentClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAttachmentClient creates a client against the relay's base URL.
func NewAttachmentClient(baseURL string) *AttachmentClient {
	return &AttachmentClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadRequest struct {
	SessionID string `json:"sessionId"`
	ImageData string `json:"imageData"`
}

type uploadResponse struct {
	Success     bool   `json:"success"`
	ReferenceID string `json:"referenceId"`
}

type fetchResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"imageData"`
}

// Upload stores an image and returns its reference id. Safe to retry on
// network failure: the server mints a fresh id per call, duplicates are
// harmless.
func (c *AttachmentClient) Upload(ctx context.Context, sessionID string, data []byte) (string, error) {
	body, err := json.Marshal(uploadRequest{
		SessionID: sessionID,
		ImageData: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/attachments", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	if !result.Success || result.ReferenceID == "" {
		return "", fmt.Errorf("upload rejected: status %d", resp.StatusCode)
	}
	return result.ReferenceID, nil
}

// Fetch resolves a reference id to the original bytes. Failures return
// ErrAttachmentUnavailable: the caller renders a placeholder and keeps the
// textual portion of the message.
func (c *AttachmentClient) Fetch(ctx context.Context, referenceID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/attachments/"+referenceID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttachmentUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttachmentUnavailable, err)
	}
	if !result.Success {
		return nil, ErrAttachmentUnavailable
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttachmentUnavailable, err)
	}
	return data, nil
}
