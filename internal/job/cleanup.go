package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/store"
)

// GenerationCleanup drops index generations that were replaced or abandoned
// and whose grace period has passed.
type GenerationCleanup struct {
	stores    *store.Manager
	batchSize int
}

func NewGenerationCleanup(stores *store.Manager, batchSize int) *GenerationCleanup {
	return &GenerationCleanup{stores: stores, batchSize: batchSize}
}

func (j *GenerationCleanup) Name() string {
	return "generation_cleanup"
}

func (j *GenerationCleanup) Run(ctx context.Context) error {
	removed, err := j.stores.CleanupDead(ctx, j.batchSize)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("retired dead generations", zap.Int("count", removed))
	}
	return nil
}
