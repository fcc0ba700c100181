package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/server"
)

// Identity is the caller identity sent with every HTTP request.
type Identity struct {
	Role      string
	UserID    int64
	SessionID string
}

// apply sets the identity headers the server resolves into a scope.
func (id Identity) apply(h http.Header) {
	if id.Role != "" {
		h.Set(server.HeaderRole, id.Role)
	}
	if id.UserID > 0 {
		h.Set(server.HeaderUserID, strconv.FormatInt(id.UserID, 10))
	}
	if id.SessionID != "" {
		h.Set(server.HeaderSessionID, id.SessionID)
	}
}

// Client talks to a running docqa server.
type Client struct {
	baseURL  string
	identity Identity
	http     *http.Client
}

// NewClient returns a client for baseURL. A zero timeout means no client-side limit.
func NewClient(baseURL string, id Identity, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: id,
		http:     &http.Client{Timeout: timeout},
	}
}

// UploadResult is the response to a document upload.
type UploadResult struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Indexed  bool   `json:"indexed"`
}

// Query asks a question and returns the answer with its sources.
func (c *Client) Query(ctx context.Context, query string, k int) (*models.QueryResponse, error) {
	body, err := json.Marshal(models.QueryRequest{Query: query, K: k})
	if err != nil {
		return nil, err
	}
	var resp models.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/query", "application/json", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload sends a file as a multipart upload.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var res UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents", mw.FormDataContentType(), &buf, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status returns the decoded status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession asks the server for a new guest session id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", "", nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// Delete removes a document visible to the caller.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/documents/"+strconv.FormatInt(id, 10), "", nil, nil)
}

// List returns the documents visible to the caller.
func (c *Client) List(ctx context.Context) ([]models.DocumentSummary, error) {
	var out []models.DocumentSummary
	if err := c.do(ctx, http.MethodGet, "/api/v1/documents", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rebuild asks the server to rebuild its index from the store. Requires the admin role.
func (c *Client) Rebuild(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/rebuild", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.identity.apply(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
