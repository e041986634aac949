package main

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marker/internal/grading"
	"github.com/sells-group/marker/internal/model"
	"github.com/sells-group/marker/internal/store"
)

var (
	gradeAll         bool
	gradeRetryFailed bool
	gradeAssignment  string
	gradeLimit       int
	gradeTone        string
	gradeStrictness  string
	gradeActor       string
)

var gradeCmd = &cobra.Command{
	Use:   "grade [submission-id]",
	Short: "Grade one submission, or all pending submissions with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if gradeAll {
			return gradeBatch(cmd, env)
		}

		if len(args) != 1 {
			return eris.New("a submission id is required unless --all is set")
		}

		outcome, err := env.Grader.Grade(ctx, gradeRequest(args[0]))
		if err != nil {
			return err
		}
		printOutcome(cmd, outcome)
		return nil
	},
}

func gradeRequest(submissionID string) grading.GradeRequest {
	return grading.GradeRequest{
		SubmissionID: submissionID,
		Tone:         gradeTone,
		Strictness:   gradeStrictness,
		Actor:        gradeActor,
	}
}

// batchStatuses picks which submissions a batch run touches. Batch runs
// never re-grade DONE submissions; FAILED ones are opt-in so a bad run can
// be retried without repeating model spend on finished work.
func batchStatuses() []model.SubmissionStatus {
	statuses := []model.SubmissionStatus{model.SubmissionStatusExtracted}
	if gradeRetryFailed {
		statuses = append(statuses, model.SubmissionStatusFailed)
	}
	return statuses
}

// gradeBatch grades every pending submission. Concurrency is bounded by
// config; the shared rate limiter inside the grader paces model calls
// across workers.
func gradeBatch(cmd *cobra.Command, env *gradingEnv) error {
	ctx := cmd.Context()

	var pending []model.Submission
	for _, status := range batchStatuses() {
		subs, err := env.Store.ListSubmissions(ctx, store.SubmissionFilter{
			Status:       status,
			AssignmentID: gradeAssignment,
			Limit:        gradeLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list submissions")
		}
		pending = append(pending, subs...)
	}
	if gradeLimit > 0 && len(pending) > gradeLimit {
		pending = pending[:gradeLimit]
	}
	if len(pending) == 0 {
		cmd.Println("no gradeable submissions")
		return nil
	}

	concurrency := cfg.Batch.MaxConcurrentSubmissions
	if concurrency <= 0 {
		concurrency = 2
	}

	zap.L().Info("starting batch grading",
		zap.Int("submissions", len(pending)),
		zap.Int("concurrency", concurrency))

	start := time.Now()
	var graded, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, sub := range pending {
		sub := sub
		g.Go(func() error {
			outcome, err := env.Grader.Grade(gctx, gradeRequest(sub.ID))
			if err != nil {
				if ge := grading.AsError(err); ge.Precondition() {
					skipped.Add(1)
					zap.L().Warn("skipped submission",
						zap.String("submission_id", sub.ID),
						zap.String("code", ge.Code))
					return nil
				}
				failed.Add(1)
				zap.L().Error("grading failed",
					zap.String("submission_id", sub.ID),
					zap.Error(err))
				return nil
			}
			graded.Add(1)
			zap.L().Info("graded",
				zap.String("submission_id", sub.ID),
				zap.String("grade", string(outcome.Assessment.Grade)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	cmd.Printf("graded=%d failed=%d skipped=%d in %s\n",
		graded.Load(), failed.Load(), skipped.Load(), time.Since(start).Round(time.Second))
	return nil
}

func printOutcome(cmd *cobra.Command, outcome *grading.GradeOutcome) {
	a := outcome.Assessment
	cmd.Printf("assessment %s\n", a.ID)
	cmd.Printf("  grade:      %s\n", a.Grade)
	cmd.Printf("  confidence: %.2f", outcome.Confidence.Final)
	if outcome.Confidence.WasCapped {
		cmd.Printf(" (capped from %.2f)", outcome.Confidence.ModelConfidence)
	}
	cmd.Println()
	if outcome.Compliance.MissingCount > 0 {
		cmd.Printf("  compliance: %d requirement(s) missing evidence\n", outcome.Compliance.MissingCount)
		for _, gap := range outcome.Compliance.MissingSummary {
			cmd.Printf("    task %d %s: %v\n", gap.Task, gap.Section, gap.Missing)
		}
	}
	cmd.Println()
	fmt.Fprintln(cmd.OutOrStdout(), a.Feedback)
}

func init() {
	gradeCmd.Flags().BoolVar(&gradeAll, "all", false, "grade every pending submission")
	gradeCmd.Flags().BoolVar(&gradeRetryFailed, "retry-failed", false, "include FAILED submissions in --all")
	gradeCmd.Flags().StringVar(&gradeAssignment, "assignment", "", "restrict --all to one assignment code")
	gradeCmd.Flags().IntVar(&gradeLimit, "limit", 100, "max submissions to grade with --all")
	gradeCmd.Flags().StringVar(&gradeTone, "tone", "", "override configured feedback tone")
	gradeCmd.Flags().StringVar(&gradeStrictness, "strictness", "", "override configured strictness")
	gradeCmd.Flags().StringVar(&gradeActor, "actor", "", "assessor id recorded on the assessment")
	rootCmd.AddCommand(gradeCmd)
}
