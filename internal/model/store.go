package model

import (
	"fmt"
	"strings"

	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

type CollectionKind string

const (
	KindDocument CollectionKind = "document"
	KindNotes    CollectionKind = "notes"
)

func (k CollectionKind) Valid() bool {
	return k == KindDocument || k == KindNotes
}

// StoreKey identifies one knowledge store. Immutable once built.
type StoreKey struct {
	Owner      string         `json:"owner"`
	Kind       CollectionKind `json:"kind"`
	Collection string         `json:"collection"`
}

// Validate rejects empty components and anything that could escape the
// per-key layout once the key becomes a path or an index location.
func (k StoreKey) Validate() error {
	if strings.TrimSpace(k.Owner) == "" || strings.TrimSpace(k.Collection) == "" {
		return fmt.Errorf("%w: store key has empty component", appErr.ErrInvalid)
	}
	if !k.Kind.Valid() {
		return fmt.Errorf("%w: unknown collection kind %q", appErr.ErrInvalid, k.Kind)
	}
	for _, part := range []string{k.Owner, k.Collection} {
		if strings.Contains(part, "..") || strings.ContainsAny(part, "/\\") {
			return fmt.Errorf("%w: unsafe store key component %q", appErr.ErrInvalid, part)
		}
	}
	return nil
}

// Path renders the key as a slash-joined relative path. Only meaningful for
// a validated key.
func (k StoreKey) Path() string {
	return k.Owner + "/" + string(k.Kind) + "/" + k.Collection
}

func (k StoreKey) String() string {
	return k.Path()
}

// Chunk is one bounded span of source text prepared for embedding.
type Chunk struct {
	Text     string `json:"text"`
	Sequence int    `json:"sequence"`
	SourceID string `json:"source_id"`
}

// StorePointer maps a StoreKey to its current generation. Written only when
// an ingestion commits; read by every query.
type StorePointer struct {
	Key        StoreKey `json:"key"`
	Generation string   `json:"generation"`
	Location   string   `json:"location"`
	Mtime      int64    `json:"mtime"`
}
