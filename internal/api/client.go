// Package api is the HTTP client for the DocIQ backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/dociq/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// maxErrorBody caps how much of a failed response body is kept in an Error.
const maxErrorBody = 4 << 10

// Error is returned for any non-2xx response.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying HTTP client. The bearer token is not applied to it.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for baseURL. A non-empty token is sent as a bearer token on every request.
func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	hc := &http.Client{}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		hc = oauth2.NewClient(context.Background(), src)
	}
	hc.Timeout = timeout

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDocuments returns the server-side document list in server order.
func (c *Client) ListDocuments(ctx context.Context) ([]models.DocumentRef, error) {
	var docs []models.DocumentRef
	if err := c.doJSON(ctx, http.MethodGet, "/documents", nil, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.DocumentRef{}
	}
	return docs, nil
}

// Search asks a question scoped to req.DocID, or to all documents when DocID is empty.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload sends a file as multipart form data with fields "file" and "workspace".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, workspace string) (*models.UploadResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if workspace != "" {
		if err := w.WriteField("workspace", workspace); err != nil {
			return nil, fmt.Errorf("write workspace field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result models.UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadExternal asks the backend to fetch and ingest a remote file.
func (c *Client) UploadExternal(ctx context.Context, in models.ExternalUpload) (*models.UploadResult, error) {
	var result models.UploadResult
	if err := c.doJSON(ctx, http.MethodPost, "/upload/external", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadPDF returns the original PDF bytes of a document.
func (c *Client) DownloadPDF(ctx context.Context, id string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/"+url.PathEscape(id)+".pdf", nil)
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := c.do(req, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// DriveStatus reports whether the cloud drive link is connected.
func (c *Client) DriveStatus(ctx context.Context) (bool, error) {
	var connected bool
	if err := c.doJSON(ctx, http.MethodGet, "/drive/status", nil, &connected); err != nil {
		return false, err
	}
	return connected, nil
}

// DriveConnectURL is where the user starts the drive authorization flow.
func (c *Client) DriveConnectURL() string {
	return c.baseURL + "/drive/connect"
}

// DriveClaim exchanges the temporary key from the authorization callback.
func (c *Client) DriveClaim(ctx context.Context, tempKey string) error {
	path := "/drive/claim?tempKey=" + url.QueryEscape(tempKey)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// DriveSync triggers a drive sync.
func (c *Client) DriveSync(ctx context.Context) (*models.DriveSyncResult, error) {
	var result models.DriveSyncResult
	if err := c.doJSON(ctx, http.MethodPost, "/drive/sync", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// do sends req and decodes a 2xx body into out. out may be nil, or *[]byte for raw bodies.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}

	switch v := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *[]byte:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s body: %w", req.URL.Path, err)
		}
		*v = data
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
		}
		return nil
	}
}
