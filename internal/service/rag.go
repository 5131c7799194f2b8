// Package service собирает конвейеры загрузки и поиска.
package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/golog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/chunk"
	"github.com/katakuxiko/vectorbrain/internal/extract"
	"github.com/katakuxiko/vectorbrain/internal/model"
	"github.com/katakuxiko/vectorbrain/internal/store"
	"github.com/katakuxiko/vectorbrain/internal/util"
)

// Embedder turns text into a vector of the store's dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Answerer produces a final answer from retrieved context.
type Answerer interface {
	Answer(ctx context.Context, question string, contexts []string) (string, error)
	ListModels(ctx context.Context) ([]openai.Model, error)
}

type Options struct {
	// Concurrency bounds parallel embedding calls within one upload.
	Concurrency int
	UploadDir   string
}

type RAGService struct {
	extractor *extract.Registry
	chunker   *chunk.Chunker
	embedder  Embedder
	store     store.Store
	llm       Answerer
	opts      Options
	log       *golog.Logger
}

func NewRAGService(ex *extract.Registry, ch *chunk.Chunker, emb Embedder, st store.Store, llm Answerer, opts Options, log *golog.Logger) *RAGService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &RAGService{extractor: ex, chunker: ch, embedder: emb, store: st, llm: llm, opts: opts, log: log}
}

// Ingest extracts, chunks, embeds and stores one document. Either every
// chunk is stored or none is; a failing chunk is reported via apperr.ChunkError.
func (s *RAGService) Ingest(ctx context.Context, filename string, data []byte) (*model.IngestResult, error) {
	docID := uuid.NewString()

	text, err := s.extractor.Extract(filename, data)
	if err != nil {
		s.log.Warnf("ingest %s (%s): %v", filename, docID, err)
		return nil, err
	}
	s.archive(docID, filename, data)

	parts := s.chunker.Split(text)
	if len(parts) == 0 {
		return nil, apperr.New(apperr.InvalidRequest, "no text extracted from %s", filename)
	}
	s.log.Infof("ingest %s (%s): %d chunks", filename, docID, len(parts))

	records := make([]model.Record, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, p := range parts {
		g.Go(func() error {
			emb, err := s.embedder.Embed(gctx, p)
			if err != nil {
				return &apperr.ChunkError{Index: i, Err: err}
			}
			records[i] = model.Record{Content: p, Embedding: emb}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Errorf("ingest %s (%s): %v", filename, docID, err)
		return nil, err
	}

	ids, err := s.store.AddBatch(ctx, records)
	if err != nil {
		s.log.Errorf("ingest %s (%s): store: %v", filename, docID, err)
		return nil, err
	}
	return &model.IngestResult{DocumentID: docID, Filename: filename, IDs: ids}, nil
}

// archive сохраняет исходный файл, если задан UploadDir. Ошибки только логируются.
func (s *RAGService) archive(docID, filename string, data []byte) {
	if s.opts.UploadDir == "" {
		return
	}
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		s.log.Warnf("archive %s (%s): %v", filename, docID, err)
		return
	}
	path := filepath.Join(s.opts.UploadDir, util.Timestamped(filename, time.Now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Warnf("archive %s (%s): %v", filename, docID, err)
	}
}

// Retrieve returns the topK stored chunks nearest to prompt.
func (s *RAGService) Retrieve(ctx context.Context, prompt string, topK int) ([]model.Chunk, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperr.New(apperr.InvalidRequest, "prompt is empty")
	}
	if topK <= 0 {
		return nil, apperr.New(apperr.InvalidRequest, "top_k must be at least 1, got %d", topK)
	}
	s.log.Debugf("retrieve %q top_k=%d", util.Preview(prompt, 80), topK)

	vec, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return s.store.Query(ctx, vec, topK)
}

// Ask — RAG: поиск + LLM
func (s *RAGService) Ask(ctx context.Context, question string, topK int) (string, []model.Chunk, error) {
	chunks, err := s.Retrieve(ctx, question, topK)
	if err != nil {
		return "", nil, err
	}
	answer, err := s.llm.Answer(ctx, question, model.Contents(chunks))
	if err != nil {
		return "", nil, err
	}
	return answer, chunks, nil
}

// AddVector stores a ready (content, embedding) pair, skipping extraction and embedding.
func (s *RAGService) AddVector(ctx context.Context, content string, embedding []float32) (int64, error) {
	return s.store.Add(ctx, content, embedding)
}

func (s *RAGService) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

func (s *RAGService) ListModels(ctx context.Context) ([]openai.Model, error) {
	return s.llm.ListModels(ctx)
}
