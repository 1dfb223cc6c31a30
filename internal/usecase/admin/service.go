// Package admin coordinates index administration: stats, reset, and
// snapshot backup/restore across the vector and lexical indexes.
package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// VectorIndex is the administrative surface of the vector index.
type VectorIndex interface {
	Stats(ctx context.Context) domain.Stats
	Reset(ctx context.Context) error
	Backup(ctx context.Context, path string) error
	Restore(ctx context.Context, path string) error
	All(ctx context.Context) []domain.IndexEntry
}

// LexicalIndex is the administrative surface of the expansion index.
type LexicalIndex interface {
	Reset(ctx context.Context) error
	IndexEntries(ctx context.Context, entries []domain.IndexEntry) error
}

// Service keeps the two indexes consistent through destructive operations.
type Service struct {
	index   VectorIndex
	lexical LexicalIndex
	logger  *zap.Logger
}

// New creates an admin service. lexical can be nil.
func New(index VectorIndex, lexical LexicalIndex, logger *zap.Logger) *Service {
	return &Service{index: index, lexical: lexical, logger: logger}
}

// Stats reports index totals.
func (s *Service) Stats(ctx context.Context) domain.Stats {
	return s.index.Stats(ctx)
}

// Reset empties both indexes. The vector index is authoritative; a lexical
// reset failure is logged but does not fail the operation.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	if s.lexical != nil {
		if err := s.lexical.Reset(ctx); err != nil {
			s.logger.Warn("Lexical index reset failed", zap.Error(err))
		}
	}
	return nil
}

// Backup snapshots the vector index to path. The lexical index is not
// snapshotted; Restore rebuilds it from the vector entries.
func (s *Service) Backup(ctx context.Context, path string) error {
	if err := s.index.Backup(ctx, path); err != nil {
		return fmt.Errorf("backup index: %w", err)
	}
	return nil
}

// Restore replaces the vector index from a snapshot and rebuilds the lexical
// index from the restored entries.
func (s *Service) Restore(ctx context.Context, path string) error {
	if err := s.index.Restore(ctx, path); err != nil {
		return fmt.Errorf("restore index: %w", err)
	}
	if s.lexical == nil {
		return nil
	}

	if err := s.lexical.Reset(ctx); err != nil {
		s.logger.Warn("Lexical index reset failed during restore", zap.Error(err))
		return nil
	}
	entries := s.index.All(ctx)
	if err := s.lexical.IndexEntries(ctx, entries); err != nil {
		s.logger.Warn("Lexical index rebuild failed", zap.Error(err))
	}
	return nil
}
