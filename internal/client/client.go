// Package client is a Go client for the vectorbrain HTTP API.
//
// Retrieve blocks until the server answers; RetrieveAsync returns at once
// and delivers the result on a channel. Neither wraps the other.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/katakuxiko/vectorbrain/internal/model"
)

// DefaultTimeout bounds every request made by a Retriever.
const DefaultTimeout = 300 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
	Chunk   *int
}

func (e *APIError) Error() string {
	if e.Chunk != nil {
		return fmt.Sprintf("%d %s: %s (chunk %d)", e.Status, e.Kind, e.Message, *e.Chunk)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

// Result is delivered by RetrieveAsync.
type Result struct {
	Results []string
	Err     error
}

type Retriever struct {
	baseURL string
	http    *http.Client
}

// New returns a Retriever for baseURL. timeout <= 0 means DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Retriever {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Retriever{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Retrieve calls POST /rag/query. topK <= 0 lets the server pick its default.
func (r *Retriever) Retrieve(ctx context.Context, prompt string, topK int) ([]string, error) {
	var out model.QueryResponse
	if err := r.postJSON(ctx, "/rag/query", queryBody(prompt, topK), &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// RetrieveAsync runs Retrieve in a goroutine. The channel receives exactly
// one Result and is then closed.
func (r *Retriever) RetrieveAsync(ctx context.Context, prompt string, topK int) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		res, err := r.Retrieve(ctx, prompt, topK)
		ch <- Result{Results: res, Err: err}
	}()
	return ch
}

// Ask calls POST /rag/ask.
func (r *Retriever) Ask(ctx context.Context, prompt string, topK int) (*model.AskResponse, error) {
	var out model.AskResponse
	if err := r.postJSON(ctx, "/rag/ask", queryBody(prompt, topK), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a document to POST /rag/upload.
func (r *Retriever) Upload(ctx context.Context, filename string, content io.Reader) (*model.UploadResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rag/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out model.UploadResponse
	if err := r.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func queryBody(prompt string, topK int) model.QueryRequest {
	req := model.QueryRequest{Prompt: prompt}
	if topK > 0 {
		req.TopK = &topK
	}
	return req
}

func (r *Retriever) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, out)
}

func (r *Retriever) do(req *http.Request, out any) error {
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body model.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Kind, apiErr.Message, apiErr.Chunk = body.Error, body.Message, body.Chunk
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
