package vecindex

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type localConfig struct {
	Dir string `json:"dir"`
}

// localIndex keeps one gob file per location under a base directory and
// scores queries by brute-force cosine similarity. Writes go to a temp file
// renamed into place, so a reader either sees the whole location or none of
// it.
type localIndex struct {
	dir string
}

func init() {
	Register("local", createLocalIndex)
}

func createLocalIndex(args interface{}) (Index, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("local index dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &localIndex{dir: cfg.Dir}, nil
}

// NewLocal returns a local index rooted at dir without going through the
// registry.
func NewLocal(dir string) (Index, error) {
	return createLocalIndex(map[string]interface{}{"dir": dir})
}

func (s *localIndex) path(location string) (string, error) {
	if location == "" || strings.Contains(location, "..") || strings.HasPrefix(location, "/") {
		return "", fmt.Errorf("invalid index location %q", location)
	}
	return filepath.Join(s.dir, filepath.FromSlash(location)+".gob"), nil
}

func (s *localIndex) Upsert(ctx context.Context, location string, chunks []EmbeddedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(location)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := gob.NewEncoder(tmp).Encode(chunks); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *localIndex) Query(ctx context.Context, location string, vector []float32, k int) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(location)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingLocation, location)
		}
		return nil, err
	}
	defer file.Close()

	var chunks []EmbeddedChunk
	if err := gob.NewDecoder(file).Decode(&chunks); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", location, err)
	}

	hits := make([]ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		hits = append(hits, ScoredChunk{
			Text:     chunk.Text,
			Sequence: chunk.Sequence,
			SourceID: chunk.SourceID,
			Score:    Cosine(vector, chunk.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Sequence < hits[j].Sequence
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *localIndex) Drop(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(location)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
