package paragraphcache

import (
	"context"

	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
)

// prefetchJob fills one cache level in the background.
type prefetchJob struct {
	pipeline *Pipeline
	userID   int64
	req      models.GenerationRequest
}

func (j *prefetchJob) Name() string { return "prefetch_paragraph" }

func (j *prefetchJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithFields(map[string]any{
		"difficulty": j.req.Difficulty,
		"language":   j.req.Language,
		"user_id":    j.userID,
	})
	generated, err := j.pipeline.fill(ctx, j.userID, j.req)
	if err != nil {
		return err
	}
	if generated {
		log.Info("prefetched paragraph")
	} else {
		log.Debug("level already cached")
	}
	return nil
}

type warmupJob struct {
	pipeline *Pipeline
	language string
}

func (j *warmupJob) Name() string { return "warmup_cache" }

func (j *warmupJob) Run(ctx context.Context) error {
	j.pipeline.Warmup(ctx, j.language)
	return nil
}
