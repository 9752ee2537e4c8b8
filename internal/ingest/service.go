// Package ingest turns uploaded PDF bytes into indexed chunks for one user.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docuchat/internal/cache"
	"docuchat/internal/embed"
	"docuchat/internal/extract"
	"docuchat/internal/models"
	"docuchat/internal/segment"
	"docuchat/internal/vector"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrExtractionFailed means the document bytes could not be read as a PDF.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmptyDocument means extraction succeeded but yielded no usable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
	// ErrIndexWrite means some or all chunks could not be written to the
	// vector index. Callers should report how many chunks made it in.
	ErrIndexWrite = errors.New("index write failed")
)

// upsertBatchSize bounds a single index write so one huge document does not
// turn into one huge request.
const upsertBatchSize = 64

// Service runs the ingestion pipeline: extract, segment, embed, upsert.
type Service struct {
	extractor extract.Extractor
	segmenter *segment.Segmenter
	embedder  embed.Embedder
	indexes   *vector.Registry
	answers   *cache.AnswerCache
	logger    *zap.Logger
}

// NewService wires the ingestion pipeline.
func NewService(extractor extract.Extractor, segmenter *segment.Segmenter, embedder embed.Embedder, indexes *vector.Registry, answers *cache.AnswerCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		segmenter: segmenter,
		embedder:  embedder,
		indexes:   indexes,
		answers:   answers,
		logger:    logger,
	}
}

// Ingest processes one uploaded document for the given user and returns the
// number of chunks stored. On a partial index failure the count reflects
// what was actually written before the error.
func (s *Service) Ingest(ctx context.Context, username string, content []byte) (int, error) {
	text, err := s.extractor.Extract(ctx, content)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyDocument
	}

	pieces := s.segmenter.Segment(text)
	if len(pieces) == 0 {
		return 0, ErrEmptyDocument
	}

	store, err := s.indexes.Resolve(username)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexWrite, err)
	}

	documentID := uuid.NewString()
	written := 0
	batch := make([]models.Chunk, 0, upsertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.Upsert(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for seq, piece := range pieces {
		vec, err := s.embedder.Embed(ctx, piece)
		if err != nil {
			if ferr := flush(); ferr != nil {
				s.logger.Warn("flush before embed failure", zap.Error(ferr))
			}
			s.invalidate(ctx, username, written)
			return written, fmt.Errorf("%w: embed chunk %d: %v", ErrIndexWrite, seq, err)
		}
		batch = append(batch, models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Owner:      username,
			Seq:        seq,
			Text:       piece,
			Vector:     vec,
		})
		if len(batch) == upsertBatchSize {
			if err := flush(); err != nil {
				s.invalidate(ctx, username, written)
				return written, fmt.Errorf("%w: %v", ErrIndexWrite, err)
			}
		}
	}
	if err := flush(); err != nil {
		s.invalidate(ctx, username, written)
		return written, fmt.Errorf("%w: %v", ErrIndexWrite, err)
	}

	s.invalidate(ctx, username, written)
	s.logger.Info("document ingested",
		zap.String("username", username),
		zap.String("document_id", documentID),
		zap.Int("chunks", written))
	return written, nil
}

// invalidate drops cached answers once any chunk changed the corpus.
func (s *Service) invalidate(ctx context.Context, username string, written int) {
	if written == 0 {
		return
	}
	if err := s.answers.Invalidate(ctx, username); err != nil {
		s.logger.Warn("invalidate answer cache", zap.String("username", username), zap.Error(err))
	}
}
