package grading

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sells-group/marker/internal/config"
	"github.com/sells-group/marker/internal/resilience"
	"github.com/sells-group/marker/pkg/anthropic"
)

// InvokeModel performs the grading model call under the configured timeout
// and retry budget. Each attempt gets its own timeout; the retry budget is
// never exceeded, and a failure after the last attempt is terminal for the
// grading attempt. The limiter, when set, paces calls across batch grading.
func InvokeModel(ctx context.Context, client anthropic.Client, prompt PromptResult, cfg config.GradingConfig, limiter *rate.Limiter) (*anthropic.MessageResponse, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := anthropic.MessageRequest{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxOutputTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompt.System),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt.Text},
		},
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.MaxAttempts
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "grade")

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		defer cancel()
		return client.CreateMessage(attemptCtx, req)
	})
}
