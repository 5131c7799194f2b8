package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
)

// Provider calls an external embedding model.
type Provider interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// ErrMalformedResponse marks provider answers that retrying will not fix.
var ErrMalformedResponse = errors.New("malformed embedding response")

// OllamaProvider talks to Ollama's /api/embeddings ({model, prompt} -> {embedding}).
type OllamaProvider struct {
	client *api.Client
}

// NewOllamaProvider создаёт провайдера для Ollama по базовому URL.
func NewOllamaProvider(baseURL string, timeout time.Duration) (*OllamaProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	return &OllamaProvider{client: api.NewClient(u, &http.Client{Timeout: timeout})}, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrMalformedResponse)
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// OpenAIProvider uses any OpenAI-compatible /embeddings endpoint (LM Studio, OpenAI).
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider создаёт клиента для OpenAI-совместимого сервера.
func NewOpenAIProvider(baseURL, apiKey string, timeout time.Duration) *OpenAIProvider {
	if apiKey == "" {
		apiKey = "not-needed"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrMalformedResponse)
	}
	return resp.Data[0].Embedding, nil
}
