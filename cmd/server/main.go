package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kataras/golog"
	"github.com/redis/go-redis/v9"

	"github.com/katakuxiko/vectorbrain/internal/api"
	"github.com/katakuxiko/vectorbrain/internal/chunk"
	"github.com/katakuxiko/vectorbrain/internal/config"
	"github.com/katakuxiko/vectorbrain/internal/embedding"
	"github.com/katakuxiko/vectorbrain/internal/extract"
	"github.com/katakuxiko/vectorbrain/internal/logging"
	"github.com/katakuxiko/vectorbrain/internal/service"
	"github.com/katakuxiko/vectorbrain/internal/store"
)

func main() {
	// config
	cfg, err := config.Load()
	if err != nil {
		golog.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *golog.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	// store
	st, err := store.Open(startCtx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Infof("store %s ready: dimension %d, distance %s", cfg.StoreDriver, cfg.EmbedDim, cfg.Distance)

	// embeddings
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	cache, closeCache, err := newCache(startCtx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	emb, err := embedding.NewClient(provider, cache, embedding.Options{
		Model:     cfg.EmbedModel,
		Dimension: cfg.EmbedDim,
		Normalize: cfg.EmbedNormalize,
		Timeout:   cfg.EmbedTimeout,
		Retries:   cfg.EmbedRetries,
		Backoff:   cfg.EmbedBackoff,
	}, log)
	if err != nil {
		return err
	}
	if err := emb.Probe(startCtx); err != nil {
		return err
	}

	// chunking
	counter, err := chunk.NewCounter(cfg.Tokenizer)
	if err != nil {
		return err
	}
	chunker, err := chunk.New(counter, cfg.ChunkMaxTokens)
	if err != nil {
		return err
	}

	// extraction
	extractor := extract.NewRegistry()
	if cfg.PDFExtractor == "pdftotext" {
		if !extract.PDFToTextAvailable() {
			return errors.New("PDF_EXTRACTOR=pdftotext but pdftotext is not on PATH")
		}
		extractor.Register(".pdf", extract.PDFToText)
	}

	// services
	llm := service.NewLLMClient(cfg)
	rag := service.NewRAGService(extractor, chunker, emb, st, llm, service.Options{
		Concurrency: cfg.EmbedConcurrency,
		UploadDir:   cfg.UploadDir,
	}, log)

	// api
	app := api.NewApp(api.NewHandler(rag, cfg.DefaultTopK, log), cfg.BodyLimitMB, log, os.Stdout)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🚀 Server started at %s", cfg.ServerAddr)
		errCh <- app.Listen(cfg.ServerAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(15 * time.Second)
}

func newProvider(cfg *config.Config) (embedding.Provider, error) {
	if cfg.EmbedProvider == "openai" {
		return embedding.NewOpenAIProvider(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbedTimeout), nil
	}
	p, err := embedding.NewOllamaProvider(cfg.EmbedBaseURL, cfg.EmbedTimeout)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// newCache returns the in-process LRU, backed by Redis when REDIS_ADDR is set.
func newCache(ctx context.Context, cfg *config.Config, log *golog.Logger) (embedding.Cache, func(), error) {
	local, err := embedding.NewLRUCache(cfg.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RedisAddr == "" {
		return local, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnf("redis %s unavailable, using in-process cache only: %v", cfg.RedisAddr, err)
		_ = rdb.Close()
		return local, func() {}, nil
	}
	log.Infof("embedding cache: lru(%d) + redis %s, ttl %s", cfg.CacheSize, cfg.RedisAddr, cfg.CacheTTL)
	shared := embedding.NewRedisCache(rdb, cfg.CacheTTL, log)
	return embedding.NewTiered(local, shared), func() { _ = rdb.Close() }, nil
}
