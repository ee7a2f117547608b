package repo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

func newTestRepo(t *testing.T) *PointerRepo {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, ApplyMigrations(db))
	return NewPointerRepo(db)
}

func testKey(collection string) model.StoreKey {
	return model.StoreKey{Owner: "user1", Kind: model.KindDocument, Collection: collection}
}

func TestPointerGet_NotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.Get(context.Background(), testKey("missing"))
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestPointerCommit_ThenGet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	key := testKey("bio")

	ptr := &model.StorePointer{Key: key, Generation: "gen1", Location: "user1/document/bio/gen1", Mtime: 100}
	require.NoError(t, r.Commit(ctx, ptr, 0))

	got, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "gen1", got.Generation)
	require.Equal(t, "user1/document/bio/gen1", got.Location)
	require.Equal(t, int64(100), got.Mtime)
}

func TestPointerCommit_ReplaceRecordsOldGeneration(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	key := testKey("bio")

	require.NoError(t, r.Commit(ctx, &model.StorePointer{Key: key, Generation: "gen1", Location: "loc1", Mtime: 100}, 0))
	require.NoError(t, r.Commit(ctx, &model.StorePointer{Key: key, Generation: "gen2", Location: "loc2", Mtime: 200}, 500))

	got, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "gen2", got.Generation)

	dead, err := r.ListDead(ctx, 500, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, "loc1", dead[0].Location)
	require.Equal(t, "gen1", dead[0].Generation)
	require.Equal(t, int64(500), dead[0].RetireAfter)
}

func TestPointerKeyIsolation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	docKey := model.StoreKey{Owner: "user1", Kind: model.KindDocument, Collection: "bio"}
	notesKey := model.StoreKey{Owner: "user1", Kind: model.KindNotes, Collection: "bio"}
	otherOwner := model.StoreKey{Owner: "user2", Kind: model.KindDocument, Collection: "bio"}

	require.NoError(t, r.Commit(ctx, &model.StorePointer{Key: docKey, Generation: "d1", Location: "dl1"}, 0))
	require.NoError(t, r.Commit(ctx, &model.StorePointer{Key: notesKey, Generation: "n1", Location: "nl1"}, 0))

	got, err := r.Get(ctx, docKey)
	require.NoError(t, err)
	require.Equal(t, "d1", got.Generation)

	got, err = r.Get(ctx, notesKey)
	require.NoError(t, err)
	require.Equal(t, "n1", got.Generation)

	_, err = r.Get(ctx, otherOwner)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestPointerDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	key := testKey("bio")

	require.ErrorIs(t, r.Delete(ctx, key, 0), appErr.ErrNotFound)

	require.NoError(t, r.Commit(ctx, &model.StorePointer{Key: key, Generation: "gen1", Location: "loc1"}, 0))
	require.NoError(t, r.Delete(ctx, key, 300))

	_, err := r.Get(ctx, key)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	dead, err := r.ListDead(ctx, 300, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, "loc1", dead[0].Location)
}

func TestMarkDead_ListAndRemove(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.MarkDead(ctx, "gen1", "loc1", 100))
	require.NoError(t, r.MarkDead(ctx, "gen2", "loc2", 200))
	// re-marking the same location must not fail
	require.NoError(t, r.MarkDead(ctx, "gen1", "loc1", 150))

	dead, err := r.ListDead(ctx, 150, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, "loc1", dead[0].Location)

	dead, err = r.ListDead(ctx, 500, 10)
	require.NoError(t, err)
	require.Len(t, dead, 2)

	require.NoError(t, r.RemoveDead(ctx, "loc1"))
	dead, err = r.ListDead(ctx, 500, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, "loc2", dead[0].Location)
}

func TestListDead_Limit(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.MarkDead(ctx, "g1", "l1", 10))
	require.NoError(t, r.MarkDead(ctx, "g2", "l2", 20))
	require.NoError(t, r.MarkDead(ctx, "g3", "l3", 30))

	dead, err := r.ListDead(ctx, 100, 2)
	require.NoError(t, err)
	require.Len(t, dead, 2)
	require.Equal(t, "l1", dead[0].Location)
	require.Equal(t, "l2", dead[1].Location)
}
