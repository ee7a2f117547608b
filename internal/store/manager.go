package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/repo"
	"github.com/xxxsen/studynote/internal/vecindex"
)

// Embedder is the slice of the ai manager the store layer needs.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// Manager owns the durable mapping from StoreKey to an embedded, queryable
// index generation. Ingestion is all-or-nothing with respect to readers: the
// pointer moves only after the whole generation has been written.
type Manager struct {
	pointers *repo.PointerRepo
	index    vecindex.Index
	embedder Embedder
	grace    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(pointers *repo.PointerRepo, index vecindex.Index, embedder Embedder, grace time.Duration) *Manager {
	if grace <= 0 {
		grace = time.Hour
	}
	return &Manager{
		pointers: pointers,
		index:    index,
		embedder: embedder,
		grace:    grace,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *Manager) keyLock(key model.StoreKey) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key.Path()]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key.Path()] = lock
	}
	return lock
}

// Ingest builds a fresh generation for key from chunks and commits the
// pointer to it. A concurrent ingestion for the same key is rejected with
// Busy. Any failure before the commit leaves the previous generation
// untouched; the partial generation is abandoned for cleanup.
func (m *Manager) Ingest(ctx context.Context, key model.StoreKey, chunks []model.Chunk) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no content to ingest for %s", appErr.ErrInvalid, key)
	}

	lock := m.keyLock(key)
	if !lock.TryLock() {
		return fmt.Errorf("%w: %s", appErr.ErrBusy, key)
	}
	defer lock.Unlock()

	generation := newGenerationID()
	location := key.Path() + "/" + generation
	logger := logutil.GetLogger(ctx).With(zap.String("key", key.Path()), zap.String("generation", generation))

	embedded := make([]vecindex.EmbeddedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			m.abandon(ctx, generation, location)
			return err
		}
		vec, err := m.embedder.Embed(ctx, chunk.Text, ai.TaskRetrievalDocument)
		if err != nil {
			m.abandon(ctx, generation, location)
			return fmt.Errorf("%w: embed chunk %d: %v", appErr.ErrUpstream, chunk.Sequence, err)
		}
		embedded = append(embedded, vecindex.EmbeddedChunk{
			Text:     chunk.Text,
			Sequence: chunk.Sequence,
			SourceID: chunk.SourceID,
			Vector:   vec,
		})
	}

	if err := m.index.Upsert(ctx, location, embedded); err != nil {
		m.abandon(ctx, generation, location)
		return fmt.Errorf("%w: write generation: %v", appErr.ErrUpstream, err)
	}
	if err := ctx.Err(); err != nil {
		m.abandon(ctx, generation, location)
		return err
	}

	now := time.Now()
	ptr := &model.StorePointer{
		Key:        key,
		Generation: generation,
		Location:   location,
		Mtime:      now.UnixMilli(),
	}
	if err := m.pointers.Commit(ctx, ptr, now.Add(m.grace).Unix()); err != nil {
		m.abandon(ctx, generation, location)
		return fmt.Errorf("commit pointer: %w", err)
	}
	logger.Info("store ingested", zap.Int("chunks", len(chunks)))
	return nil
}

// abandon schedules a never-committed generation for cleanup. Best effort:
// removal failure is logged, never surfaced, and retried by the cleanup job.
func (m *Manager) abandon(ctx context.Context, generation, location string) {
	logger := logutil.GetLogger(ctx).With(zap.String("location", location))
	if err := m.index.Drop(context.WithoutCancel(ctx), location); err != nil {
		logger.Warn("drop abandoned generation failed", zap.Error(err))
	}
	if err := m.pointers.MarkDead(context.WithoutCancel(ctx), generation, location, time.Now().Unix()); err != nil {
		logger.Warn("mark abandoned generation failed", zap.Error(err))
	}
}

// Resolve returns the pointer to the current committed generation for key.
// It never triggers a rebuild.
func (m *Manager) Resolve(ctx context.Context, key model.StoreKey) (*model.StorePointer, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return m.pointers.Get(ctx, key)
}

// Delete removes the pointer for key and retires its generation.
func (m *Manager) Delete(ctx context.Context, key model.StoreKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return m.pointers.Delete(ctx, key, time.Now().Add(m.grace).Unix())
}

func (m *Manager) Exists(ctx context.Context, key model.StoreKey) (bool, error) {
	_, err := m.Resolve(ctx, key)
	if err != nil {
		if appErr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CleanupDead drops retired generations whose grace period has passed.
// Returns how many were removed; failed drops stay queued for the next run.
func (m *Manager) CleanupDead(ctx context.Context, limit int) (int, error) {
	dead, err := m.pointers.ListDead(ctx, time.Now().Unix(), limit)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range dead {
		logger := logutil.GetLogger(ctx).With(zap.String("location", item.Location))
		if err := m.index.Drop(ctx, item.Location); err != nil {
			logger.Warn("drop dead generation failed", zap.Error(err))
			continue
		}
		if err := m.pointers.RemoveDead(ctx, item.Location); err != nil {
			logger.Warn("remove dead record failed", zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func newGenerationID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
}
