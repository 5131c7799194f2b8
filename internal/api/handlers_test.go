package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/chunk"
	"github.com/katakuxiko/vectorbrain/internal/extract"
	"github.com/katakuxiko/vectorbrain/internal/logging"
	"github.com/katakuxiko/vectorbrain/internal/model"
	"github.com/katakuxiko/vectorbrain/internal/service"
	"github.com/katakuxiko/vectorbrain/internal/store"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// keywordEmbedder puts "cat" texts near [1,0] and everything else near [0,1].
type keywordEmbedder struct{ err error }

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	if strings.Contains(text, "cat") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type stubLLM struct{}

func (stubLLM) Answer(_ context.Context, _ string, contexts []string) (string, error) {
	return "from " + strings.Join(contexts, ","), nil
}

func (stubLLM) ListModels(context.Context) ([]openai.Model, error) {
	return []openai.Model{{ID: "llama3"}}, nil
}

// brokenStore fails every call like an unreachable database.
type brokenStore struct{}

var errDown = apperr.Wrap(apperr.StorageUnavailable, errors.New("dial tcp 10.0.0.5:5432: connection refused"), "search chunks")

func (brokenStore) Add(context.Context, string, []float32) (int64, error) { return 0, errDown }
func (brokenStore) AddBatch(context.Context, []model.Record) ([]int64, error) {
	return nil, errDown
}
func (brokenStore) Query(context.Context, []float32, int) ([]model.Chunk, error) {
	return nil, errDown
}
func (brokenStore) Count(context.Context) (int64, error) { return 0, errDown }
func (brokenStore) Close() error                         { return nil }

func newTestApp(t *testing.T, emb service.Embedder, st store.Store) *fiber.App {
	t.Helper()
	if st == nil {
		mem, err := store.NewMemoryStore(store.Options{Dimension: 2, Metric: vector.L2})
		require.NoError(t, err)
		st = mem
	}
	ch, err := chunk.New(chunk.Words{}, 3)
	require.NoError(t, err)
	log := logging.Discard()
	rag := service.NewRAGService(extract.NewRegistry(), ch, emb, st, stubLLM{}, service.Options{Concurrency: 2}, log)
	return NewApp(NewHandler(rag, 5, log), 1, log, nil)
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, app, req)
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/rag/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadThenQuery(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, body := do(t, app, uploadRequest(t, "pets.txt", "the cat sat down the dog ran off"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["id"])
	assert.EqualValues(t, 3, body["chunks"])
	assert.Len(t, body["ids"], 3)
	assert.Contains(t, body["message"], "pets.txt")

	resp, body = doJSON(t, app, http.MethodPost, "/rag/query", `{"prompt":"where is the cat","top_k":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"the cat sat"}, body["results"])
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, body := do(t, app, uploadRequest(t, "notes.xyz", "hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UnsupportedFormat", body["error"])

	resp, body = doJSON(t, app, http.MethodGet, "/vectors/count", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])
}

func TestUpload_MissingFile(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/rag/upload", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidRequest", body["error"])
}

func TestUpload_ExtractionFailed(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, body := do(t, app, uploadRequest(t, "broken.pdf", "%PDF-1.4 garbage"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ExtractionFailed", body["error"])
}

func TestUpload_ProviderFailureReportsChunk(t *testing.T) {
	down := apperr.Wrap(apperr.ProviderUnavailable, errors.New("dial tcp 127.0.0.1:11434"), "embedding provider failed")
	app := newTestApp(t, keywordEmbedder{err: down}, nil)

	resp, body := do(t, app, uploadRequest(t, "a.txt", "one"))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "ProviderUnavailable", body["error"])
	assert.EqualValues(t, 0, body["chunk"])
	assert.NotContains(t, body["message"], "11434")
}

func TestQuery_DefaultsAndValidation(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/rag/query", `{"prompt":"cat"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["results"])

	for _, in := range []string{`{"prompt":"cat","top_k":0}`, `{"prompt":"cat","top_k":-1}`, `{"prompt":""}`, `not json`} {
		resp, body = doJSON(t, app, http.MethodPost, "/rag/query", in)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, in)
		assert.Equal(t, "InvalidRequest", body["error"], in)
	}
}

func TestQuery_StorageUnavailableHidesDetails(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, brokenStore{})

	resp, body := doJSON(t, app, http.MethodPost, "/rag/query", `{"prompt":"cat"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "StorageUnavailable", body["error"])
	assert.NotContains(t, body["message"], "10.0.0.5")
}

func TestVectors_CreateAndQuery(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/vectors", `{"content":"cat","embedding":[1,0]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "cat", body["content"])

	resp, _ = doJSON(t, app, http.MethodPost, "/vectors", `{"content":"dog","embedding":[0,1]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/rag/query", `{"prompt":"a cat","top_k":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"cat"}, body["results"])

	resp, body = doJSON(t, app, http.MethodPost, "/vectors", `{"content":"bad","embedding":[1,0,0]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidRequest", body["error"])

	resp, _ = doJSON(t, app, http.MethodPost, "/vectors", `{"content":"","embedding":[1,0]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAsk(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)
	_, _ = doJSON(t, app, http.MethodPost, "/vectors", `{"content":"cat","embedding":[1,0]}`)

	resp, body := doJSON(t, app, http.MethodPost, "/rag/ask", `{"prompt":"cat?","top_k":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "from cat", body["answer"])
	assert.Equal(t, []any{"cat"}, body["results"])
}

func TestModels(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/models", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var models []openai.Model
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&models))
	require.Len(t, models, 1)
	assert.Equal(t, "llama3", models[0].ID)
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, keywordEmbedder{}, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "InvalidRequest", body["error"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 400, statusFor(apperr.UnsupportedFormat))
	assert.Equal(t, 400, statusFor(apperr.InvalidRequest))
	assert.Equal(t, 422, statusFor(apperr.ExtractionFailed))
	assert.Equal(t, 502, statusFor(apperr.ProviderUnavailable))
	assert.Equal(t, 503, statusFor(apperr.StorageUnavailable))
	assert.Equal(t, 500, statusFor(""))
}
