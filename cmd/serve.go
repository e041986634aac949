package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marker/internal/grading"
	"github.com/sells-group/marker/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the grading HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, cfg.Server.AllowedOrigins),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(drainCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *gradingEnv, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/submissions/{id}/grade", func(w http.ResponseWriter, r *http.Request) {
		var req grading.GradeRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		}
		req.SubmissionID = chi.URLParam(r, "id")

		outcome, err := env.Grader.Grade(r.Context(), req)
		if err != nil {
			writeGradingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	r.Get("/submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sub, err := env.Store.GetSubmission(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	})

	r.Get("/submissions/{id}/assessments", func(w http.ResponseWriter, r *http.Request) {
		assessments, err := env.Store.ListAssessments(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, assessments)
	})

	r.Get("/assessments/{id}", func(w http.ResponseWriter, r *http.Request) {
		a, err := env.Store.GetAssessment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeGradingError maps a grading failure to its coded JSON body and the
// HTTP status carried by the error.
func writeGradingError(w http.ResponseWriter, r *http.Request, err error) {
	ge := grading.AsError(err)

	status := ge.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		zap.L().Error("grading request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("code", ge.Code),
			zap.Error(err))
	}

	writeJSON(w, status, map[string]any{
		"code":       ge.Code,
		"message":    ge.Message,
		"details":    ge.Details,
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found", "request_id": reqID})
		return
	}
	zap.L().Error("store request failed",
		zap.String("request_id", reqID),
		zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error", "request_id": reqID})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
