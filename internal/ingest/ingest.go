// Package ingest rebuilds the vector index from the authoritative Q&A source
// file. It runs in its own process (cmd/rebuild-index) so the expensive bulk
// embedding pass never blocks request handling and never contends for the
// serving process's memory.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nimbusgpu/askbot/internal/index"
	"github.com/nimbusgpu/askbot/internal/models"
)

// ErrSourceNotFound is returned when the authoritative source file is absent.
var ErrSourceNotFound = errors.New("source file not found")

// Embedder generates embedding vectors for text.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Params configures a rebuild run.
type Params struct {
	IndexDir   string
	SourcePath string
	Embedder   Embedder

	// MaxConcurrent bounds concurrent embedding calls; RateLimit paces them
	// (calls per second). Zero values disable the respective bound.
	MaxConcurrent int
	RateLimit     int

	Logger *slog.Logger
}

// Run replaces the index at IndexDir with the content of SourcePath and
// returns the number of ingested records.
//
// The source file is read and validated before the old index is deleted, so a
// missing or malformed source leaves the previous index intact. After
// deletion there is still a window where readers see an empty index; they
// treat that as "no results", not as an error.
func Run(ctx context.Context, p Params) (int, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	source, err := readSource(p.SourcePath)
	if err != nil {
		return 0, err
	}

	logger.Info("rebuilding index", "source", p.SourcePath, "records", len(source))

	texts := make([]string, len(source))
	for i, rec := range source {
		texts[i] = FormatDocument(rec)
	}

	vectors, err := embedAll(ctx, p, texts)
	if err != nil {
		return 0, err
	}

	if err := index.Delete(p.IndexDir); err != nil {
		logger.Warn("deleting previous index failed, proceeding anyway", "error", err)
	}

	idx, err := index.Create(p.IndexDir)
	if err != nil {
		return 0, fmt.Errorf("creating index: %w", err)
	}
	defer idx.Close()

	sourceName := filepath.Base(p.SourcePath)
	now := time.Now().UTC()

	records := make([]index.Record, len(source))
	for i := range source {
		records[i] = index.Record{
			ID:        uuid.NewString(),
			Text:      texts[i],
			Embedding: vectors[i],
			Source:    sourceName,
			Category:  "QA",
			CreatedAt: now,
		}
	}

	if err := idx.Insert(records); err != nil {
		return 0, fmt.Errorf("inserting records: %w", err)
	}

	logger.Info("index rebuilt", "dir", p.IndexDir, "records", len(records))

	return len(records), nil
}

// FormatDocument renders one source record into the text that is embedded
// and later handed to the generation model as context.
func FormatDocument(rec models.SourceRecord) string {
	return fmt.Sprintf("Question: %s\nAnswer: %s", rec.Instruction, rec.Output)
}

func readSource(path string) ([]models.SourceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}

		return nil, fmt.Errorf("reading source file: %w", err)
	}

	var records []models.SourceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing source file %s: %w", path, err)
	}

	return records, nil
}

// embedAll embeds every text with bounded concurrency and optional pacing.
func embedAll(ctx context.Context, p Params, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var limiter *rate.Limiter
	if p.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.RateLimit), 1)
	}

	g, gCtx := errgroup.WithContext(ctx)
	if p.MaxConcurrent > 0 {
		g.SetLimit(p.MaxConcurrent)
	}

	for i, text := range texts {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gCtx); err != nil {
					return fmt.Errorf("waiting for embedding slot: %w", err)
				}
			}

			vec, err := p.Embedder.CreateEmbedding(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding record %d: %w", i, err)
			}
			vectors[i] = vec

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}
