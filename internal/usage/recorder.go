// Package usage records per-call token usage and cost for model invocations.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/marker/internal/model"
	"github.com/sells-group/marker/internal/store"
	"github.com/sells-group/marker/pkg/anthropic"
)

// Recorder persists token usage for each model call. Failures are logged,
// never propagated: metering must not fail a grading run.
type Recorder struct {
	store store.Store
}

func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Record writes a usage row for a completed model call. Cost is estimated
// from the model's published per-token pricing.
func (r *Recorder) Record(ctx context.Context, modelName, operation, submissionID string, usage model.TokenUsage) {
	if r == nil || r.store == nil {
		return
	}

	cost := anthropic.TokenUsage{
		InputTokens:              int64(usage.InputTokens),
		OutputTokens:             int64(usage.OutputTokens),
		CacheCreationInputTokens: int64(usage.CacheCreationTokens),
		CacheReadInputTokens:     int64(usage.CacheReadTokens),
	}.EstimateCost(modelName)

	rec := &model.UsageRecord{
		ID:           uuid.NewString(),
		Model:        modelName,
		Operation:    operation,
		SubmissionID: submissionID,
		Usage:        usage,
		CostUSD:      cost,
		CreatedAt:    time.Now().UTC(),
	}

	if err := r.store.RecordUsage(ctx, rec); err != nil {
		zap.L().Warn("failed to record model usage",
			zap.String("operation", operation),
			zap.String("submission_id", submissionID),
			zap.Error(err))
		return
	}

	zap.L().Debug("recorded model usage",
		zap.String("model", modelName),
		zap.String("operation", operation),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Float64("cost_usd", cost))
}
