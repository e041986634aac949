package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/marker/internal/grading"
	"github.com/sells-group/marker/internal/store"
	"github.com/sells-group/marker/internal/usage"
	"github.com/sells-group/marker/pkg/anthropic"
)

// gradingEnv holds the initialized store, model client and grader shared
// by the grade/serve/export commands.
type gradingEnv struct {
	Store  store.Store
	Client anthropic.Client
	Grader *grading.Grader
}

// Close releases resources held by the environment.
func (ge *gradingEnv) Close() {
	if ge.Store != nil {
		_ = ge.Store.Close()
	}
}

// initEnv sets up the store and the grader. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*gradingEnv, error) {
	if err := cfg.Grading.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	if cfg.Anthropic.Key == "" {
		st.Close()
		return nil, eris.New("anthropic key is not configured")
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)

	var limiter *rate.Limiter
	if cfg.Batch.ModelCallsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Batch.ModelCallsPerSecond), 1)
	}

	grader := grading.NewGrader(cfg.Grading, st, client, usage.NewRecorder(st), limiter)

	return &gradingEnv{
		Store:  st,
		Client: client,
		Grader: grader,
	}, nil
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "marker.db"
		}
		return store.NewSQLite(dsn)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
