package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

// PointerRepo persists StorePointer records and the bookkeeping for retired
// generations awaiting cleanup.
type PointerRepo struct {
	db *sql.DB
}

func NewPointerRepo(db *sql.DB) *PointerRepo {
	return &PointerRepo{db: db}
}

// DeadGeneration is a retired generation location eligible for removal once
// retire_after has passed.
type DeadGeneration struct {
	Location    string
	Generation  string
	RetireAfter int64
}

func (r *PointerRepo) Get(ctx context.Context, key model.StoreKey) (*model.StorePointer, error) {
	where := map[string]interface{}{
		"owner":      key.Owner,
		"kind":       string(key.Kind),
		"collection": key.Collection,
	}
	sqlStr, args, err := builder.BuildSelect("store_pointers", where, []string{"generation", "location", "mtime"})
	if err != nil {
		return nil, err
	}
	ptr := &model.StorePointer{Key: key}
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	if err := row.Scan(&ptr.Generation, &ptr.Location, &ptr.Mtime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no store for %s", appErr.ErrNotFound, key)
		}
		return nil, err
	}
	return ptr, nil
}

// Commit atomically points key at a new generation. The previous generation,
// if any, is recorded as dead with the given retire-after timestamp in the
// same transaction. Readers see either the old pointer or the new one, never
// an intermediate state.
func (r *PointerRepo) Commit(ctx context.Context, ptr *model.StorePointer, retireAfter int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldGeneration, oldLocation string
	err = tx.QueryRowContext(ctx,
		`SELECT generation, location FROM store_pointers WHERE owner = ? AND kind = ? AND collection = ?`,
		ptr.Key.Owner, string(ptr.Key.Kind), ptr.Key.Collection,
	).Scan(&oldGeneration, &oldLocation)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO store_pointers (owner, kind, collection, generation, location, mtime)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ptr.Key.Owner, string(ptr.Key.Kind), ptr.Key.Collection, ptr.Generation, ptr.Location, ptr.Mtime,
	); err != nil {
		return err
	}

	if oldLocation != "" && oldLocation != ptr.Location {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO dead_generations (location, generation, retire_after) VALUES (?, ?, ?)`,
			oldLocation, oldGeneration, retireAfter,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes the pointer for key and schedules its generation for
// cleanup. Absent keys report NotFound.
func (r *PointerRepo) Delete(ctx context.Context, key model.StoreKey, retireAfter int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var generation, location string
	err = tx.QueryRowContext(ctx,
		`SELECT generation, location FROM store_pointers WHERE owner = ? AND kind = ? AND collection = ?`,
		key.Owner, string(key.Kind), key.Collection,
	).Scan(&generation, &location)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: no store for %s", appErr.ErrNotFound, key)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM store_pointers WHERE owner = ? AND kind = ? AND collection = ?`,
		key.Owner, string(key.Kind), key.Collection,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO dead_generations (location, generation, retire_after) VALUES (?, ?, ?)`,
		location, generation, retireAfter,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkDead records an uncommitted generation for cleanup, used when an
// ingestion aborts after partially writing its index location.
func (r *PointerRepo) MarkDead(ctx context.Context, generation, location string, retireAfter int64) error {
	data := map[string]interface{}{
		"location":     location,
		"generation":   generation,
		"retire_after": retireAfter,
	}
	sqlStr, args, err := builder.BuildInsert("dead_generations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr = replaceInsert(sqlStr)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func replaceInsert(sqlStr string) string {
	return strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
}

func (r *PointerRepo) ListDead(ctx context.Context, before int64, limit int) ([]DeadGeneration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT location, generation, retire_after FROM dead_generations WHERE retire_after <= ? ORDER BY retire_after LIMIT ?`,
		before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dead []DeadGeneration
	for rows.Next() {
		var item DeadGeneration
		if err := rows.Scan(&item.Location, &item.Generation, &item.RetireAfter); err != nil {
			return nil, err
		}
		dead = append(dead, item)
	}
	return dead, rows.Err()
}

func (r *PointerRepo) RemoveDead(ctx context.Context, location string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dead_generations WHERE location = ?`, location)
	return err
}
