package grading

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/marker/internal/config"
	"github.com/sells-group/marker/internal/feedback"
	"github.com/sells-group/marker/internal/model"
	"github.com/sells-group/marker/internal/store"
	"github.com/sells-group/marker/internal/usage"
	"github.com/sells-group/marker/pkg/anthropic"
)

// Grader runs the full grading pipeline for one submission: preconditions,
// readiness gate, evidence heuristics, model call, verdict validation and
// the final transactional persist.
type Grader struct {
	cfg     config.GradingConfig
	store   store.Store
	client  anthropic.Client
	usage   *usage.Recorder
	limiter *rate.Limiter
}

func NewGrader(cfg config.GradingConfig, st store.Store, client anthropic.Client, rec *usage.Recorder, limiter *rate.Limiter) *Grader {
	return &Grader{
		cfg:     cfg,
		store:   st,
		client:  client,
		usage:   rec,
		limiter: limiter,
	}
}

// GradeRequest identifies the submission to grade plus per-request
// overrides of the configured marking voice.
type GradeRequest struct {
	SubmissionID string `json:"submission_id"`
	Tone         string `json:"tone,omitempty"`
	Strictness   string `json:"strictness,omitempty"`
	UseRubric    *bool  `json:"use_rubric,omitempty"`
	Actor        string `json:"actor,omitempty"`
}

// GradeOutcome is the successful result of a grading run.
type GradeOutcome struct {
	Assessment *model.Assessment      `json:"assessment"`
	Confidence model.ConfidenceTrace  `json:"confidence"`
	Compliance model.ComplianceReport `json:"compliance"`
}

// Grade executes the pipeline. Precondition failures leave the submission
// status untouched; failures after the ASSESSING transition move it to
// FAILED. Each successful run appends a new assessment.
func (g *Grader) Grade(ctx context.Context, req GradeRequest) (*GradeOutcome, error) {
	sub, err := g.store.GetSubmission(ctx, req.SubmissionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errSubmissionNotFound(req.SubmissionID, err)
		}
		return nil, eris.Wrap(err, "grading: load submission")
	}

	brief, err := g.store.GetBriefByAssignment(ctx, sub.AssignmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errBriefNotFound(sub.AssignmentID, err)
		}
		return nil, eris.Wrap(err, "grading: load brief")
	}
	if !brief.Locked() {
		return nil, errBriefNotLocked(brief.ID)
	}

	unit, err := g.store.GetUnit(ctx, brief.UnitID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errSpecNotLocked(brief.UnitID)
		}
		return nil, eris.Wrap(err, "grading: load unit")
	}
	if !unit.Locked() {
		return nil, errSpecNotLocked(unit.ID)
	}

	run, err := g.store.LatestExtractionRun(ctx, sub.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "grading: load extraction run")
	}

	gate := EvaluateGate(sub, run, g.cfg.MinTextLength, g.cfg.MinExtractionConfidence)
	if !gate.OK {
		return nil, errExtractionNotReady(gate)
	}

	criteria := model.EffectiveCriteria(brief, unit)
	if len(criteria) == 0 {
		return nil, errCriteriaNotMapped(brief.ID)
	}

	reqs := ExtractRequirements(brief.Tasks)
	normalized := NormalizeText(evidenceText(sub, run))
	signals := DetectEvidence(normalized)
	compliance := EvaluateCompliance(reqs, signals)

	ok, err := g.store.BeginAssessing(ctx, sub.ID, model.GradeableStatuses())
	if err != nil {
		return nil, eris.Wrap(err, "grading: begin assessing")
	}
	if !ok {
		return nil, errSubmissionBusy(sub.ID)
	}

	outcome, err := g.assess(ctx, req, sub, run, brief.Rubric, criteria, reqs, signals, compliance, gate)
	if err != nil {
		g.markFailed(ctx, sub.ID)
		return nil, err
	}
	return outcome, nil
}

// assess covers everything between the ASSESSING transition and the final
// persist. Any panic here is converted to an error so the caller can move
// the submission to FAILED instead of leaving it stuck in ASSESSING.
func (g *Grader) assess(
	ctx context.Context,
	req GradeRequest,
	sub *model.Submission,
	run *model.ExtractionRun,
	briefRubric string,
	criteria []model.AssessmentCriterion,
	reqs []SectionRequirement,
	signals EvidenceSignals,
	compliance model.ComplianceReport,
	gate model.GateReport,
) (outcome *GradeOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("grading: panic during assessment: %v", r)
		}
	}()

	cfg := g.cfg
	if req.Tone != "" {
		cfg.Tone = req.Tone
	}
	if req.Strictness != "" {
		cfg.Strictness = req.Strictness
	}
	if req.UseRubric != nil {
		cfg.UseRubricIfAvailable = *req.UseRubric
	}

	rubric := ""
	if cfg.UseRubricIfAvailable {
		rubric = briefRubric
	}

	prompt := BuildPrompt(PromptInput{
		Submission:   sub,
		Run:          run,
		Criteria:     criteria,
		Requirements: reqs,
		Signals:      signals,
		Compliance:   compliance,
		Rubric:       rubric,
		Tone:         cfg.Tone,
		Strictness:   cfg.Strictness,
	}, cfg)

	zap.L().Info("invoking grading model",
		zap.String("submission_id", sub.ID),
		zap.String("model", cfg.Model),
		zap.String("prompt_hash", prompt.Hash),
		zap.Int("criteria", len(criteria)),
		zap.Int("compliance_missing", compliance.MissingCount),
		zap.Bool("cover_only", prompt.CoverOnly))

	start := time.Now()
	resp, err := InvokeModel(ctx, g.client, prompt, cfg, g.limiter)
	if err != nil {
		return nil, errModelCallFailed(err)
	}
	duration := time.Since(start)

	tokens := model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	}
	g.usage.Record(ctx, cfg.Model, "grade", sub.ID, tokens)

	raw := resp.Text()
	verdict, err := ParseVerdict(raw)
	if err != nil {
		return nil, errValidationFailed([]RuleViolation{{
			Rule:    "parse",
			Message: err.Error(),
		}})
	}

	codes := make([]string, len(criteria))
	for i, c := range criteria {
		codes[i] = c.Code
	}
	if violations := ValidateVerdict(verdict, codes); len(violations) > 0 {
		return nil, errValidationFailed(violations)
	}
	if missing := UnevidencedAchievements(verdict); len(missing) > 0 {
		return nil, errEvidenceMissing(missing)
	}

	trace := ResolveConfidence(verdict.Confidence, compliance.MissingCount, cfg.ConfidenceCap)

	rendered := feedback.Render(feedback.Input{
		StudentName: sub.StudentName,
		Grade:       verdict.OverallGradeWord,
		Summary:     verdict.FeedbackSummary,
		Bullets:     verdict.FeedbackBullets,
		Capped:      trace.WasCapped,
		CoverOnly:   prompt.CoverOnly,
		Template:    cfg.FeedbackTemplate,
		MaxBullets:  cfg.MaxFeedbackBullets,
	})

	assessment := &model.Assessment{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		Grade:        verdict.OverallGradeWord,
		Feedback:     rendered,
		AssessorID:   req.Actor,
		Result: model.ResultAudit{
			PromptHash:  prompt.Hash,
			PromptChars: len(prompt.Text),
			Model:       cfg.Model,
			DurationMs:  duration.Milliseconds(),
			CoverOnly:   prompt.CoverOnly,
			Gate:        gate,
			Compliance:  compliance,
			Confidence:  trace,
			Verdict:     *verdict,
			RawResponse: raw,
			Usage:       tokens,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := g.store.CompleteGrading(ctx, assessment); err != nil {
		return nil, eris.Wrap(err, "grading: persist assessment")
	}

	zap.L().Info("graded submission",
		zap.String("submission_id", sub.ID),
		zap.String("assessment_id", assessment.ID),
		zap.String("grade", string(assessment.Grade)),
		zap.Float64("confidence", trace.Final),
		zap.Bool("confidence_capped", trace.WasCapped),
		zap.Int64("duration_ms", duration.Milliseconds()))

	return &GradeOutcome{
		Assessment: assessment,
		Confidence: trace,
		Compliance: compliance,
	}, nil
}

// markFailed moves the submission to FAILED after a post-transition error.
// A failure here is logged only; the grading error is what the caller sees.
func (g *Grader) markFailed(ctx context.Context, id string) {
	if err := g.store.SetSubmissionStatus(ctx, id, model.SubmissionStatusFailed); err != nil {
		zap.L().Error("failed to mark submission FAILED",
			zap.String("submission_id", id),
			zap.Error(err))
	}
}

// evidenceText selects the text the heuristics scan: page samples for a
// cover-only run, the full body text otherwise.
func evidenceText(sub *model.Submission, run *model.ExtractionRun) string {
	if run != nil && run.Mode == model.ExtractionModeCoverOnly {
		var b []byte
		for _, p := range run.Pages {
			b = append(b, p.Text...)
			b = append(b, '\n')
		}
		return string(b)
	}
	return sub.BodyText
}
