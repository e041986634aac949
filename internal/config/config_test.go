package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGrading() GradingConfig {
	return GradingConfig{
		Model:                   "claude-sonnet-4-5-20250929",
		ConfidenceCap:           0.65,
		MaxSampledPages:         4,
		PageCharBudget:          1600,
		MinTextLength:           200,
		MinExtractionConfidence: 0.3,
		TimeoutSecs:             90,
		MaxAttempts:             3,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Grading.Model)
	assert.Equal(t, 0.65, cfg.Grading.ConfidenceCap)
	assert.Equal(t, 4, cfg.Grading.MaxSampledPages)
	assert.Equal(t, 1600, cfg.Grading.PageCharBudget)
	assert.Equal(t, 200, cfg.Grading.MinTextLength)
	assert.Equal(t, 3, cfg.Grading.MaxAttempts)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentSubmissions)
	assert.True(t, cfg.Grading.UseRubricIfAvailable)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MARKER_GRADING_CONFIDENCE_CAP", "0.5")
	t.Setenv("MARKER_STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Grading.ConfidenceCap)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestGradingValidate(t *testing.T) {
	assert.NoError(t, validGrading().Validate())

	cases := []struct {
		name   string
		mutate func(*GradingConfig)
	}{
		{"missing model", func(g *GradingConfig) { g.Model = "" }},
		{"cap too low", func(g *GradingConfig) { g.ConfidenceCap = 0.1 }},
		{"cap too high", func(g *GradingConfig) { g.ConfidenceCap = 0.99 }},
		{"zero pages", func(g *GradingConfig) { g.MaxSampledPages = 0 }},
		{"too many pages", func(g *GradingConfig) { g.MaxSampledPages = 7 }},
		{"budget too small", func(g *GradingConfig) { g.PageCharBudget = 100 }},
		{"budget too large", func(g *GradingConfig) { g.PageCharBudget = 10000 }},
		{"non-positive min text", func(g *GradingConfig) { g.MinTextLength = 0 }},
		{"non-positive timeout", func(g *GradingConfig) { g.TimeoutSecs = 0 }},
		{"zero attempts", func(g *GradingConfig) { g.MaxAttempts = 0 }},
		{"too many attempts", func(g *GradingConfig) { g.MaxAttempts = 6 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := validGrading()
			tc.mutate(&g)
			assert.Error(t, g.Validate())
		})
	}
}

func TestGradingTimeout(t *testing.T) {
	g := GradingConfig{TimeoutSecs: 90}
	assert.Equal(t, 90*time.Second, g.Timeout())
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope"}))
}
