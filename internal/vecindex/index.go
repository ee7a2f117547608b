package vecindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
)

// ErrMissingLocation is returned by Query when the location has never been
// written or has already been dropped. The store layer maps it to corruption
// when a committed pointer still references the location.
var ErrMissingLocation = errors.New("index location missing")

// EmbeddedChunk is a chunk together with its embedding vector, ready for
// upsert.
type EmbeddedChunk struct {
	Text     string
	Sequence int
	SourceID string
	Vector   []float32
}

// ScoredChunk is a retrieval hit with its similarity score.
type ScoredChunk struct {
	Text     string
	Sequence int
	SourceID string
	Score    float32
}

// Index is a vector similarity index addressed by opaque location strings.
// Locations are written once and never mutated in place; replacement happens
// by writing a fresh location and dropping the old one.
type Index interface {
	Upsert(ctx context.Context, location string, chunks []EmbeddedChunk) error
	Query(ctx context.Context, location string, vector []float32, k int) ([]ScoredChunk, error)
	Drop(ctx context.Context, location string) error
}

type Factory func(args interface{}) (Index, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(typ string, args interface{}) (Index, error) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return nil, fmt.Errorf("index.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported index type: %s", typ)
	}
	return factory(args)
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths
// and zero vectors score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("index config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode index config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode index config: %w", err)
	}
	return nil
}
