package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/repo"
	"github.com/xxxsen/studynote/internal/vecindex"
)

// hashEmbedder maps each text token onto a fixed dimension, giving stable,
// comparable vectors without a model.
type hashEmbedder struct {
	mu      sync.Mutex
	calls   int
	failAt  int
	blockCh chan struct{}
}

func (h *hashEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	h.mu.Lock()
	h.calls++
	calls := h.calls
	h.mu.Unlock()
	if h.blockCh != nil {
		select {
		case <-h.blockCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.failAt > 0 && calls >= h.failAt {
		return nil, errors.New("embedding backend down")
	}
	vec := make([]float32, 32)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		sum := 0
		for _, r := range token {
			sum += int(r)
		}
		vec[sum%len(vec)]++
	}
	return vec, nil
}

func newTestManager(t *testing.T, embedder Embedder, grace time.Duration) (*Manager, *repo.PointerRepo, vecindex.Index) {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repo.ApplyMigrations(db))
	pointers := repo.NewPointerRepo(db)
	index, err := vecindex.NewLocal(t.TempDir())
	require.NoError(t, err)
	return NewManager(pointers, index, embedder, grace), pointers, index
}

func docKey(collection string) model.StoreKey {
	return model.StoreKey{Owner: "user1", Kind: model.KindDocument, Collection: collection}
}

func someChunks(n int) []model.Chunk {
	chunks := make([]model.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, model.Chunk{Text: fmt.Sprintf("chunk number %d content", i), Sequence: i, SourceID: "src"})
	}
	return chunks
}

func TestIngest_CommitsPointer(t *testing.T) {
	m, _, index := newTestManager(t, &hashEmbedder{}, time.Hour)
	ctx := context.Background()
	key := docKey("bio")

	require.NoError(t, m.Ingest(ctx, key, someChunks(3)))

	ptr, err := m.Resolve(ctx, key)
	require.NoError(t, err)
	require.NotEmpty(t, ptr.Generation)
	require.True(t, strings.HasPrefix(ptr.Location, key.Path()+"/"))

	hits, err := index.Query(ctx, ptr.Location, make([]float32, 32), 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)
}

func TestIngest_InvalidInput(t *testing.T) {
	m, _, _ := newTestManager(t, &hashEmbedder{}, time.Hour)
	ctx := context.Background()

	err := m.Ingest(ctx, docKey("bio"), nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	err = m.Ingest(ctx, model.StoreKey{Owner: "..", Kind: model.KindNotes, Collection: "c"}, someChunks(1))
	require.ErrorIs(t, err, appErr.ErrInvalid)

	err = m.Ingest(ctx, model.StoreKey{Owner: "u", Kind: "weird", Collection: "c"}, someChunks(1))
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestIngest_ReplaceIsAtomic(t *testing.T) {
	m, _, index := newTestManager(t, &hashEmbedder{}, time.Hour)
	ctx := context.Background()
	key := docKey("bio")

	require.NoError(t, m.Ingest(ctx, key, someChunks(2)))
	first, err := m.Resolve(ctx, key)
	require.NoError(t, err)

	require.NoError(t, m.Ingest(ctx, key, someChunks(5)))
	second, err := m.Resolve(ctx, key)
	require.NoError(t, err)

	require.NotEqual(t, first.Generation, second.Generation)
	require.NotEqual(t, first.Location, second.Location)

	hits, err := index.Query(ctx, second.Location, make([]float32, 32), 0)
	require.NoError(t, err)
	require.Len(t, hits, 5)
}

func TestIngest_EmbedFailureKeepsOldGeneration(t *testing.T) {
	good := &hashEmbedder{}
	m, pointers, _ := newTestManager(t, good, time.Hour)
	ctx := context.Background()
	key := docKey("bio")

	require.NoError(t, m.Ingest(ctx, key, someChunks(2)))
	before, err := m.Resolve(ctx, key)
	require.NoError(t, err)

	good.failAt = good.calls + 2
	err = m.Ingest(ctx, key, someChunks(4))
	require.ErrorIs(t, err, appErr.ErrUpstream)

	after, err := m.Resolve(ctx, key)
	require.NoError(t, err)
	require.Equal(t, before.Generation, after.Generation)

	// the partial generation is queued for cleanup
	dead, err := pointers.ListDead(ctx, time.Now().Unix()+1, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
}

func TestIngest_ConcurrentSameKeyRejected(t *testing.T) {
	blockCh := make(chan struct{})
	embedder := &hashEmbedder{blockCh: blockCh}
	m, _, _ := newTestManager(t, embedder, time.Hour)
	ctx := context.Background()
	key := docKey("bio")

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- m.Ingest(ctx, key, someChunks(2))
	}()

	// wait until the first ingestion holds the key lock inside Embed
	require.Eventually(t, func() bool {
		embedder.mu.Lock()
		defer embedder.mu.Unlock()
		return embedder.calls > 0
	}, time.Second, 5*time.Millisecond)

	err := m.Ingest(ctx, key, someChunks(2))
	require.ErrorIs(t, err, appErr.ErrBusy)

	close(blockCh)
	require.NoError(t, <-firstDone)

	ptr, err := m.Resolve(ctx, key)
	require.NoError(t, err)
	require.NotEmpty(t, ptr.Generation)
}

func TestIngest_DifferentKeysDoNotBlock(t *testing.T) {
	m, _, _ := newTestManager(t, &hashEmbedder{}, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	keys := []model.StoreKey{docKey("bio"), docKey("chem")}
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Ingest(ctx, keys[i], someChunks(2))
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
}

func TestIngest_CancelledContextDoesNotCommit(t *testing.T) {
	blockCh := make(chan struct{})
	embedder := &hashEmbedder{blockCh: blockCh}
	m, _, _ := newTestManager(t, embedder, time.Hour)
	key := docKey("bio")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Ingest(ctx, key, someChunks(3))
	}()
	require.Eventually(t, func() bool {
		embedder.mu.Lock()
		defer embedder.mu.Unlock()
		return embedder.calls > 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	close(blockCh)
	require.Error(t, <-done)

	_, err := m.Resolve(context.Background(), key)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestExistsAndDelete(t *testing.T) {
	m, _, index := newTestManager(t, &hashEmbedder{}, time.Hour)
	ctx := context.Background()
	key := docKey("bio")

	exists, err := m.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, m.Ingest(ctx, key, someChunks(2)))
	exists, err = m.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	ptr, err := m.Resolve(ctx, key)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, key))
	exists, err = m.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)
	require.ErrorIs(t, m.Delete(ctx, key), appErr.ErrNotFound)

	// generation data survives until cleanup
	_, err = index.Query(ctx, ptr.Location, make([]float32, 32), 1)
	require.NoError(t, err)
}

func TestCleanupDead(t *testing.T) {
	m, pointers, index := newTestManager(t, &hashEmbedder{}, time.Millisecond)
	ctx := context.Background()
	key := docKey("bio")

	require.NoError(t, m.Ingest(ctx, key, someChunks(2)))
	old, err := m.Resolve(ctx, key)
	require.NoError(t, err)
	require.NoError(t, m.Ingest(ctx, key, someChunks(2)))

	time.Sleep(1100 * time.Millisecond)
	removed, err := m.CleanupDead(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = index.Query(ctx, old.Location, make([]float32, 32), 1)
	require.ErrorIs(t, err, vecindex.ErrMissingLocation)

	dead, err := pointers.ListDead(ctx, time.Now().Unix()+10, 10)
	require.NoError(t, err)
	require.Empty(t, dead)

	// current generation untouched
	cur, err := m.Resolve(ctx, key)
	require.NoError(t, err)
	_, err = index.Query(ctx, cur.Location, make([]float32, 32), 1)
	require.NoError(t, err)
}
