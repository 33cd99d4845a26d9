// Package hfapi is a minimal client for the Hugging Face Hub HTTP API.
// It covers only the three calls the publisher needs: token identity
// lookup, repository creation and single-file commits.
package hfapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// RepoTypeDataset is the repository type used for result uploads.
	RepoTypeDataset = "dataset"

	// DefaultRevision is the branch commits are written to.
	DefaultRevision = "main"

	httpTimeout = 120 * time.Second

	// conflictMessage is the Hub's "repository already exists" error
	// text. Matched only as a fallback when the HTTP status was lost.
	conflictMessage = "You already created this"
)

// APIError is a non-2xx response from the Hub, carrying the status
// code so callers can classify failures without parsing message text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hub returned status %d", e.StatusCode)
	}

	return fmt.Sprintf("hub returned status %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err represents an "already exists"
// response. The status code is authoritative; the message substring is
// a fallback for errors that no longer carry one.
func IsConflict(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusConflict
	}

	if err != nil && strings.Contains(err.Error(), conflictMessage) {
		return true
	}

	return false
}

// User identifies the account a token belongs to.
type User struct {
	Name     string `json:"name"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// CreateRepoRequest describes a repository to create.
type CreateRepoRequest struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Type         string `json:"type"`
	Private      bool   `json:"private"`
}

// UploadFileRequest describes a single-file commit.
type UploadFileRequest struct {
	RepoID        string // <namespace>/<name>
	RepoType      string // e.g. RepoTypeDataset
	Revision      string // defaults to DefaultRevision when empty
	PathInRepo    string // destination path, slash-separated
	LocalPath     string // file to read and upload
	CommitMessage string
}

// Client talks to a Hugging Face Hub endpoint with a bearer token.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New creates a client for the given endpoint (no trailing slash
// required) authenticating with token.
func New(endpoint, token string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Whoami resolves the account behind the client's token.
func (c *Client) Whoami(ctx context.Context) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/whoami-v2", nil, "")
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(req, &user); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}

	return &user, nil
}

// CreateRepo creates a repository. An already existing repository
// surfaces as an *APIError with status 409; use IsConflict to treat
// that as success.
func (c *Client) CreateRepo(ctx context.Context, r CreateRepoRequest) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/repos/create",
		bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("creating repo: %w", err)
	}

	return nil
}

// commitOperation is one line of the Hub's NDJSON commit payload.
type commitOperation struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
}

type commitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

// UploadFile commits one local file to a repository using the Hub
// commit endpoint. The file content travels base64-encoded inside the
// commit payload; chunked/LFS uploads are out of scope.
func (c *Client) UploadFile(ctx context.Context, r UploadFileRequest) error {
	content, err := os.ReadFile(r.LocalPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", r.LocalPath, err)
	}

	revision := r.Revision
	if revision == "" {
		revision = DefaultRevision
	}

	ops := []commitOperation{
		{
			Key: "header",
			Value: commitHeader{
				Summary: r.CommitMessage,
			},
		},
		{
			Key: "file",
			Value: commitFile{
				Content:  base64.StdEncoding.EncodeToString(content),
				Path:     r.PathInRepo,
				Encoding: "base64",
			},
		},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("encoding commit payload: %w", err)
		}
	}

	path := fmt.Sprintf("/api/%ss/%s/commit/%s",
		r.RepoType, r.RepoID, url.PathEscape(revision))

	req, err := c.newRequest(ctx, http.MethodPost, path,
		&buf, "application/x-ndjson")
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("committing %s: %w", r.PathInRepo, err)
	}

	return nil
}

// newRequest builds an authenticated request against the endpoint.
func (c *Client) newRequest(
	ctx context.Context, method, path string, body io.Reader, contentType string,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// errorResponse is the Hub's error body shape.
type errorResponse struct {
	Error string `json:"error"`
}

// do executes the request and decodes a JSON response into out when
// out is non-nil. Non-2xx responses become an *APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		var errResp errorResponse
		message := ""

		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != "" {
			message = errResp.Error
		} else {
			message = strings.TrimSpace(string(body))
		}

		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
