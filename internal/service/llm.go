package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/config"
)

const answerPrompt = "Context: %s\n\nQuestion: %s\n\nAnswer:"

// LLMClient — клиент для LM Studio / OpenAI совместимых моделей
type LLMClient struct {
	client   *openai.Client
	chatName string
}

// NewLLMClient создаёт новый клиент с настройками из config
func NewLLMClient(cfg *config.Config) *LLMClient {
	key := cfg.LLMAPIKey
	if key == "" {
		key = "not-needed"
	}
	oaiCfg := openai.DefaultConfig(key)
	oaiCfg.BaseURL = cfg.LMBaseURL
	oaiCfg.HTTPClient = &http.Client{Timeout: cfg.LLMTimeout}

	return &LLMClient{
		client:   openai.NewClientWithConfig(oaiCfg),
		chatName: cfg.ChatModel,
	}
}

// Answer отвечает на вопрос по найденным фрагментам.
func (l *LLMClient) Answer(ctx context.Context, question string, contexts []string) (string, error) {
	prompt := fmt.Sprintf(answerPrompt, strings.Join(contexts, "\n\n"), question)

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.chatName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.ProviderUnavailable, err, "llm request failed")
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Wrap(apperr.ProviderUnavailable, errors.New("no choices"), "llm returned an empty answer")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ListModels возвращает список моделей LM Studio
func (l *LLMClient) ListModels(ctx context.Context) ([]openai.Model, error) {
	resp, err := l.client.ListModels(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, err, "list models")
	}
	return resp.Models, nil
}
