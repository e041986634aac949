package model

import "time"

// GradeWord is the restricted grading vocabulary.
type GradeWord string

const (
	GradeRefer              GradeWord = "REFER"
	GradePass               GradeWord = "PASS"
	GradePassOnResubmission GradeWord = "PASS_ON_RESUBMISSION"
	GradeMerit              GradeWord = "MERIT"
	GradeDistinction        GradeWord = "DISTINCTION"
)

// AllGradeWords returns the valid grade vocabulary.
func AllGradeWords() []GradeWord {
	return []GradeWord{
		GradeRefer,
		GradePass,
		GradePassOnResubmission,
		GradeMerit,
		GradeDistinction,
	}
}

// ValidGradeWord reports whether w is in the grading vocabulary.
func ValidGradeWord(w GradeWord) bool {
	for _, g := range AllGradeWords() {
		if g == w {
			return true
		}
	}
	return false
}

// Decision is the per-criterion outcome enumeration.
type Decision string

const (
	DecisionAchieved    Decision = "ACHIEVED"
	DecisionNotAchieved Decision = "NOT_ACHIEVED"
	DecisionUnclear     Decision = "UNCLEAR"
)

// ValidDecision reports whether d is one of the fixed decision values.
func ValidDecision(d Decision) bool {
	switch d {
	case DecisionAchieved, DecisionNotAchieved, DecisionUnclear:
		return true
	}
	return false
}

// EvidenceItem is one page-linked piece of evidence supporting a decision.
// Quote holds verbatim text; VisualDescription covers non-textual evidence
// such as charts or diagrams.
type EvidenceItem struct {
	Page              int    `json:"page"`
	Quote             string `json:"quote,omitempty"`
	VisualDescription string `json:"visualDescription,omitempty"`
}

// CriterionCheck is the model's decision for a single criterion code.
type CriterionCheck struct {
	Code       string         `json:"code"`
	Decision   Decision       `json:"decision"`
	Rationale  string         `json:"rationale"`
	Confidence float64        `json:"confidence"`
	Evidence   []EvidenceItem `json:"evidence"`
}

// ModelVerdict is the parsed, schema-shaped output of the grading model.
type ModelVerdict struct {
	OverallGradeWord     GradeWord        `json:"overallGradeWord"`
	ResubmissionRequired bool             `json:"resubmissionRequired"`
	FeedbackSummary      string           `json:"feedbackSummary"`
	FeedbackBullets      []string         `json:"feedbackBullets"`
	CriterionChecks      []CriterionCheck `json:"criterionChecks"`
	Confidence           float64          `json:"confidence"`
}

// TokenUsage accumulates model token consumption across calls.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
}

// Add accumulates another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// ConfidenceTrace records the confidence-cap decision verbatim for audit.
// ModelConfidence is the clamped self-reported value; Final is what the
// assessment carries.
type ConfidenceTrace struct {
	ModelConfidence float64 `json:"model_confidence"`
	Cap             float64 `json:"cap"`
	Final           float64 `json:"final"`
	WasCapped       bool    `json:"was_capped"`
}

// GateMetrics are the measurements behind a readiness-gate decision.
type GateMetrics struct {
	TextLength           int     `json:"text_length"`
	PagesSampled         int     `json:"pages_sampled"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
}

// GateReport is the readiness gate's structured outcome.
type GateReport struct {
	OK       bool        `json:"ok"`
	Blockers []string    `json:"blockers,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Metrics  GateMetrics `json:"metrics"`
}

// ComplianceGap identifies one failing requirement row: which task/section
// and which modalities were required but not evidenced.
type ComplianceGap struct {
	Task    int      `json:"task"`
	Section string   `json:"section"`
	Missing []string `json:"missing"`
}

// ComplianceReport is the modality compliance evaluator's output.
// MissingSummary is capped; MissingCount counts every failing row.
type ComplianceReport struct {
	MissingCount   int             `json:"missing_count"`
	MissingSummary []ComplianceGap `json:"missing_summary,omitempty"`
}

// ResultAudit is the full provenance blob persisted with every assessment.
type ResultAudit struct {
	PromptHash  string           `json:"prompt_hash"`
	PromptChars int              `json:"prompt_chars"`
	Model       string           `json:"model"`
	DurationMs  int64            `json:"duration_ms"`
	CoverOnly   bool             `json:"cover_only"`
	Gate        GateReport       `json:"gate"`
	Compliance  ComplianceReport `json:"compliance"`
	Confidence  ConfidenceTrace  `json:"confidence"`
	Verdict     ModelVerdict     `json:"verdict"`
	RawResponse string           `json:"raw_response"`
	Usage       TokenUsage       `json:"usage"`
}

// Assessment is the persisted grading outcome. Created exactly once per
// successful grading attempt and never mutated; re-grading creates a new
// row.
type Assessment struct {
	ID           string      `json:"id"`
	SubmissionID string      `json:"submission_id"`
	Grade        GradeWord   `json:"grade"`
	Feedback     string      `json:"feedback"`
	AnnotatedPDF string      `json:"annotated_pdf,omitempty"`
	AssessorID   string      `json:"assessor_id"`
	Result       ResultAudit `json:"result"`
	CreatedAt    time.Time   `json:"created_at"`
}

// UsageRecord is one metered model call, persisted fire-and-forget.
type UsageRecord struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Operation    string     `json:"operation"`
	SubmissionID string     `json:"submission_id,omitempty"`
	Usage        TokenUsage `json:"usage"`
	CostUSD      float64    `json:"cost_usd"`
	CreatedAt    time.Time  `json:"created_at"`
}
