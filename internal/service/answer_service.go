package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nimbusgpu/askbot/internal/classify"
	"github.com/nimbusgpu/askbot/internal/index"
	"github.com/nimbusgpu/askbot/internal/models"
)

// ErrEmptyQuery is returned when the question is empty after trimming.
var ErrEmptyQuery = errors.New("question is required and must be non-empty")

// Canned replies used when the pipeline cannot produce a grounded answer.
const (
	noKnowledgeAnswer = "I'm sorry, I don't have enough information to answer that question. " +
		"Your question has been forwarded to our support team, and they will follow up with you shortly."
	generationFailedAnswer = "I'm sorry, something went wrong while preparing your answer. " +
		"Please try again in a moment."
)

// EmbeddingClient generates an embedding vector for a query.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// GenerationClient produces a completion for a prompt.
type GenerationClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QAIndex is the read surface of the vector index used per request.
type QAIndex interface {
	Search(vector []float32, topK int) ([]index.ScoredRecord, error)
	Close() error
}

// AnswerService runs the retrieval-then-generate pipeline for one question.
//
// The index is re-opened on every request so an answer issued after a rebuild
// always reads the rebuilt data. During the rebuild window the index may be
// empty; that surfaces as the no-knowledge reply, never as an error.
type AnswerService struct {
	embeddingClient  EmbeddingClient
	generationClient GenerationClient
	openIndex        func() (QAIndex, error)
	topK             int
	scoreThreshold   float64
	queryCache       *lru.Cache[string, []float32]
	queryLoadGroup   singleflight.Group
	logger           *slog.Logger
}

// AnswerServiceParams configures AnswerService. QueryCache may be nil (no caching).
type AnswerServiceParams struct {
	EmbeddingClient  EmbeddingClient
	GenerationClient GenerationClient
	OpenIndex        func() (QAIndex, error)
	TopK             int
	ScoreThreshold   float64
	QueryCache       *lru.Cache[string, []float32]
	Logger           *slog.Logger
}

// NewAnswerService creates an AnswerService.
func NewAnswerService(p AnswerServiceParams) *AnswerService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnswerService{
		embeddingClient:  p.EmbeddingClient,
		generationClient: p.GenerationClient,
		openIndex:        p.OpenIndex,
		topK:             p.TopK,
		scoreThreshold:   p.ScoreThreshold,
		queryCache:       p.QueryCache,
		logger:           logger,
	}
}

// Answer resolves one question. Embedding and index failures propagate to the
// caller; a generation failure is contained to a fixed reply because by that
// point the question is known to be answerable from the corpus.
func (s *AnswerService) Answer(ctx context.Context, question string) (models.AnswerResult, error) {
	out := models.AnswerResult{}

	question = strings.TrimSpace(question)
	if question == "" {
		return out, ErrEmptyQuery
	}

	var (
		embedding []float32
		err       error
	)

	if s.queryCache != nil {
		embedding, err = s.getQueryEmbeddingCached(ctx, question)
	} else {
		embedding, err = s.embeddingClient.CreateEmbedding(ctx, question)
	}

	if err != nil {
		s.logger.Error("answer: create embedding failed", "error", err)

		return out, fmt.Errorf("create embedding: %w", err)
	}

	idx, err := s.openIndex()
	if err != nil {
		s.logger.Error("answer: opening index failed", "error", err)

		return out, fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()

	results, err := idx.Search(embedding, s.topK)
	if err != nil {
		s.logger.Error("answer: index search failed", "error", err)

		return out, fmt.Errorf("search index: %w", err)
	}

	if len(results) == 0 || float64(results[0].Distance) > s.scoreThreshold {
		bestDistance := float64(-1)
		if len(results) > 0 {
			bestDistance = float64(results[0].Distance)
		}
		s.logger.Info("answer: below confidence threshold",
			"best_distance", bestDistance, "threshold", s.scoreThreshold)

		out.Answer = noKnowledgeAnswer
		out.Category = models.CategoryUnknown
		out.Answered = false

		return out, nil
	}

	prompt := buildPrompt(question, results)

	answer, err := s.generationClient.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("answer: generation failed", "error", err)
		answer = generationFailedAnswer
	}

	out.Answer = answer
	out.Category = classify.Classify(question)
	out.Answered = true

	return out, nil
}

// buildPrompt assembles the grounded prompt: the retrieved passages separated
// by blank lines, then the question, with an instruction to answer only from
// the passages.
func buildPrompt(question string, results []index.ScoredRecord) string {
	passages := make([]string, len(results))
	for i, res := range results {
		passages[i] = res.Text
	}

	var b strings.Builder

	b.WriteString("You are a customer support assistant for a GPU cloud service.\n")
	b.WriteString("Answer the user's question using only the reference material below.\n")
	b.WriteString("If the reference material does not cover the question, say you don't know.\n\n")
	b.WriteString("Reference material:\n")
	b.WriteString(strings.Join(passages, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")

	return b.String()
}

func (s *AnswerService) getQueryEmbeddingCached(ctx context.Context, question string) ([]float32, error) {
	if vec, ok := s.queryCache.Get(question); ok {
		return vec, nil
	}

	val, err, _ := s.queryLoadGroup.Do(question, func() (any, error) {
		vec, loadErr := s.embeddingClient.CreateEmbedding(ctx, question)
		if loadErr != nil {
			return nil, fmt.Errorf("create embedding: %w", loadErr)
		}

		s.queryCache.Add(question, vec)

		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	return val.([]float32), nil
}
