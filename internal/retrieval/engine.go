package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/store"
	"github.com/xxxsen/studynote/internal/vecindex"
)

const (
	DefaultTopK         = 4
	DefaultContextChars = 6000
)

// Engine answers queries over a knowledge store. It holds no handle to any
// generation: every call re-resolves the current pointer, so it always reads
// the latest committed ingestion. Completions are cached keyed by generation,
// which makes re-ingestion a natural invalidation.
type Engine struct {
	stores       *store.Manager
	index        vecindex.Index
	manager      *ai.Manager
	topK         int
	contextChars int
	cache        *expirable.LRU[string, string]
}

func NewEngine(stores *store.Manager, index vecindex.Index, manager *ai.Manager, topK, contextChars int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	return &Engine{
		stores:       stores,
		index:        index,
		manager:      manager,
		topK:         topK,
		contextChars: contextChars,
		cache:        expirable.NewLRU[string, string](1024, nil, 30*time.Minute),
	}
}

// Retrieve returns the k most relevant chunks for query, highest similarity
// first, ties broken by chunk sequence ascending.
func (e *Engine) Retrieve(ctx context.Context, key model.StoreKey, query string, k int) ([]model.Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", appErr.ErrInvalid)
	}
	ptr, err := e.stores.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	vec, err := e.manager.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", appErr.ErrUpstream, err)
	}
	hits, err := e.index.Query(ctx, ptr.Location, vec, k)
	if err != nil {
		if errors.Is(err, vecindex.ErrMissingLocation) {
			return nil, fmt.Errorf("%w: pointer for %s references missing generation %s", appErr.ErrCorrupted, key, ptr.Generation)
		}
		return nil, fmt.Errorf("%w: query index: %v", appErr.ErrUpstream, err)
	}
	chunks := make([]model.Chunk, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, model.Chunk{
			Text:     hit.Text,
			Sequence: hit.Sequence,
			SourceID: hit.SourceID,
		})
	}
	return chunks, nil
}

// Answer retrieves context for query and delegates to the completion model.
func (e *Engine) Answer(ctx context.Context, key model.StoreKey, query string) (string, error) {
	return e.complete(ctx, key, query, "answer", func(contextText string) (string, error) {
		return e.manager.Answer(ctx, contextText, query)
	})
}

// Explain produces an explanation of topic grounded on the store's content.
func (e *Engine) Explain(ctx context.Context, key model.StoreKey, topic string) (string, error) {
	return e.complete(ctx, key, topic, "explain", func(contextText string) (string, error) {
		return e.manager.Explain(ctx, contextText, topic)
	})
}

func (e *Engine) complete(ctx context.Context, key model.StoreKey, query, op string, run func(contextText string) (string, error)) (string, error) {
	ptr, err := e.stores.Resolve(ctx, key)
	if err != nil {
		return "", err
	}
	cacheKey := completionCacheKey(ptr.Generation, op, query)
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached, nil
	}

	chunks, err := e.Retrieve(ctx, key, query, e.topK)
	if err != nil {
		return "", err
	}
	contextText := BuildContext(chunks, e.contextChars)
	if contextText == "" {
		return "", fmt.Errorf("%w: store %s has no retrievable content", appErr.ErrCorrupted, key)
	}

	result, err := run(contextText)
	if err != nil {
		return "", fmt.Errorf("%w: completion: %v", appErr.ErrUpstream, err)
	}
	e.cache.Add(cacheKey, result)
	logutil.GetLogger(ctx).Debug("completion served",
		zap.String("key", key.Path()), zap.String("op", op), zap.Int("context_chars", len(contextText)))
	return result, nil
}

// BuildContext assembles chunks into a bounded prompt context, most relevant
// first. The chunk that crosses the budget is truncated to fit; later chunks
// are dropped.
func BuildContext(chunks []model.Chunk, budget int) string {
	var sb strings.Builder
	remaining := budget
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			if remaining < 2 {
				break
			}
			sb.WriteString("\n\n")
			remaining -= 2
		}
		runes := []rune(text)
		if len(runes) > remaining {
			runes = runes[:remaining]
		}
		sb.WriteString(string(runes))
		remaining -= len(runes)
		if remaining <= 0 {
			break
		}
	}
	return sb.String()
}

func completionCacheKey(generation, op, query string) string {
	hash := sha256.Sum256([]byte(generation + ":" + op + ":" + query))
	return hex.EncodeToString(hash[:])
}
