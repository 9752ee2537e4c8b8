// Package query answers questions from a user's own indexed documents.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docuchat/internal/cache"
	"docuchat/internal/embed"
	"docuchat/internal/llm"
	"docuchat/internal/vector"

	"go.uber.org/zap"
)

var (
	// ErrEmptyQuery means the question was blank after trimming.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrNoAnswer means the user's corpus holds nothing to answer from.
	ErrNoAnswer = errors.New("no answer available")
	// ErrRetrieval wraps failures embedding the question or searching the index.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration wraps failures synthesizing the answer.
	ErrGeneration = errors.New("generation failed")
)

// Service runs the question answering pipeline: embed, search, generate.
type Service struct {
	embedder  embed.Embedder
	indexes   *vector.Registry
	generator llm.Generator
	answers   *cache.AnswerCache
	topK      int
	logger    *zap.Logger
}

// NewService wires the query pipeline. topK <= 0 falls back to 4.
func NewService(embedder embed.Embedder, indexes *vector.Registry, generator llm.Generator, answers *cache.AnswerCache, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:  embedder,
		indexes:   indexes,
		generator: generator,
		answers:   answers,
		topK:      topK,
		logger:    logger,
	}
}

// Answer responds to the user's question using only their own documents.
func (s *Service) Answer(ctx context.Context, username, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuery
	}

	if answer, ok := s.answers.Lookup(ctx, username, question); ok {
		s.logger.Debug("answer cache hit", zap.String("username", username))
		return answer, nil
	}

	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("%w: embed question: %v", ErrRetrieval, err)
	}

	store, err := s.indexes.Resolve(username)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	results, err := store.Search(ctx, queryVec, s.topK)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if len(results) == 0 {
		return "", ErrNoAnswer
	}

	answer, err := s.generator.Generate(ctx, question, results)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrNoAnswer
	}

	if err := s.answers.Store(ctx, username, question, answer); err != nil {
		s.logger.Warn("store cached answer", zap.String("username", username), zap.Error(err))
	}
	return answer, nil
}
