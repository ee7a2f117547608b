package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// IFileStore keeps uploaded source material so a collection can be
// re-ingested or audited later.
type IFileStore interface {
	Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

type Factory func(data interface{}) (IFileStore, error)

var registry = map[string]Factory{}

func Register(name string, f Factory) {
	registry[name] = f
}

func New(typ string, data interface{}) (IFileStore, error) {
	f, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown file store type: %s", typ)
	}
	return f(data)
}

func decodeConfig(data interface{}, dst interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
