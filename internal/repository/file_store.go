package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
)

// FileStore keeps aggregates in memory and, when a file path is given,
// mirrors them to a JSON state file after every change.
type FileStore struct {
	mu    sync.RWMutex
	aggs  map[uuid.UUID]*domain.BatchAggregate
	roots map[uuid.UUID]uuid.UUID
	file  string
}

// NewFileStore creates a FileStore and loads the state file if it exists.
// An empty path keeps everything in memory.
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		aggs:  make(map[uuid.UUID]*domain.BatchAggregate),
		roots: make(map[uuid.UUID]uuid.UUID),
	}
	if filePath != "" {
		s.file = filepath.Clean(filePath)
	}

	if err := s.restore(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	slog.Info("Aggregate store initialized", "file_path", s.file, "aggregates_count", len(s.aggs))
	return s, nil
}

func (s *FileStore) restore() error {
	if s.file == "" {
		return nil
	}
	if isFileNotExist(s.file) {
		slog.Info("State file does not exist, starting with empty state", "file_path", s.file)
		return nil
	}

	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) == 0 {
		slog.Warn("State file is empty")
		return nil
	}

	var aggs []*domain.BatchAggregate
	if err := json.Unmarshal(data, &aggs); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}
	for _, agg := range aggs {
		s.put(agg)
	}

	slog.Info("State loaded from file", "aggregates_count", len(aggs), "file_path", s.file)
	return nil
}

func isFileNotExist(filePath string) bool {
	_, err := os.Stat(filePath)
	return os.IsNotExist(err)
}

// persist writes the whole state. Callers hold s.mu.
func (s *FileStore) persist() error {
	if s.file == "" {
		return nil
	}

	aggs := make([]*domain.BatchAggregate, 0, len(s.aggs))
	for _, agg := range s.aggs {
		aggs = append(aggs, agg)
	}

	data, err := json.MarshalIndent(aggs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal aggregates: %w", err)
	}

	tempFile := s.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, s.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	slog.Debug("State saved to file", "aggregates_count", len(aggs), "file_path", s.file)
	return nil
}

func (s *FileStore) put(agg *domain.BatchAggregate) {
	s.aggs[agg.ID] = agg
	for _, t := range agg.Tasks {
		s.roots[t.ID] = agg.ID
	}
}

func (s *FileStore) remove(agg *domain.BatchAggregate) {
	delete(s.aggs, agg.ID)
	for _, t := range agg.Tasks {
		delete(s.roots, t.ID)
	}
}

// Create stores a new aggregate.
func (s *FileStore) Create(ctx context.Context, agg *domain.BatchAggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.aggs[agg.ID]; exists {
		return fmt.Errorf("aggregate %s already exists", agg.ID)
	}
	s.put(agg.Clone())

	if err := s.persist(); err != nil {
		s.remove(agg)
		return fmt.Errorf("failed to save state after creating aggregate: %w", err)
	}

	slog.Debug("Aggregate created and saved", "root_id", agg.ID, "tasks", len(agg.Tasks))
	return nil
}

// Get returns a snapshot of the aggregate.
func (s *FileStore) Get(ctx context.Context, rootID uuid.UUID) (*domain.BatchAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, exists := s.aggs[rootID]
	if !exists {
		return nil, errpkg.ErrBatchNotFound
	}
	return agg.Clone(), nil
}

// RootOf returns the aggregate id that owns taskID.
func (s *FileStore) RootOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, exists := s.roots[taskID]
	if !exists {
		return uuid.Nil, errpkg.ErrTaskNotFound
	}
	return root, nil
}

// Update runs fn on a copy of the aggregate under the store lock and swaps
// the copy in only when fn and persistence both succeed.
func (s *FileStore) Update(ctx context.Context, rootID uuid.UUID, fn MutateFunc) (*domain.BatchAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.aggs[rootID]
	if !exists {
		return nil, errpkg.ErrBatchNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	s.remove(current)
	s.put(next)
	if err := s.persist(); err != nil {
		s.remove(next)
		s.put(current)
		return nil, fmt.Errorf("failed to save state after updating aggregate: %w", err)
	}

	return next.Clone(), nil
}

// ListExpired returns terminal aggregates whose retention ended at or
// before now.
func (s *FileStore) ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, agg := range s.aggs {
		if agg.Expired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DeleteExpired removes the aggregate and its task index if it is still
// expired under the write lock.
func (s *FileStore) DeleteExpired(ctx context.Context, rootID uuid.UUID, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agg, exists := s.aggs[rootID]
	if !exists {
		return false, errpkg.ErrBatchNotFound
	}
	if !agg.Expired(now) {
		return false, nil
	}
	s.remove(agg)

	if err := s.persist(); err != nil {
		s.put(agg)
		return false, fmt.Errorf("failed to save state after deleting aggregate: %w", err)
	}
	return true, nil
}
