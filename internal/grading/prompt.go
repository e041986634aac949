package grading

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/marker/internal/config"
	"github.com/sells-group/marker/internal/model"
)

// maxPromptCriteria bounds the criteria list embedded in the prompt.
const maxPromptCriteria = 120

// maxRequirementBullets bounds the human-readable modality summary.
const maxRequirementBullets = 16

// systemPrompt is the fixed, cacheable instruction shared by every grading
// call. Per-submission material goes in the user message.
const systemPrompt = `You are an assessor grading a student submission against locked assessment criteria.

Grade vocabulary: the only valid overall grades are REFER, PASS, PASS_ON_RESUBMISSION, MERIT, DISTINCTION.

Respond with a single valid JSON object and nothing else:
{
  "overallGradeWord": "<REFER|PASS|PASS_ON_RESUBMISSION|MERIT|DISTINCTION>",
  "resubmissionRequired": <bool>,
  "feedbackSummary": "<2-3 sentence summary addressed to the student>",
  "feedbackBullets": ["<specific, actionable feedback>"],
  "criterionChecks": [
    {
      "code": "<criterion code>",
      "decision": "<ACHIEVED|NOT_ACHIEVED|UNCLEAR>",
      "rationale": "<why>",
      "confidence": <0.0-1.0>,
      "evidence": [{"page": <n>, "quote": "<verbatim text>", "visualDescription": "<for charts/diagrams>"}]
    }
  ],
  "confidence": <0.0-1.0 overall>
}

Rules:
- Include exactly one criterionChecks entry for every criterion code listed, no extras.
- A decision of ACHIEVED requires at least one evidence item citing a page number.
- If the text does not show a required table, chart, equation or image, do not infer it exists.
- Use UNCLEAR rather than guessing when evidence is ambiguous.`

// PromptInput carries everything the builder needs. All fields are resolved
// by the caller; the builder reads no ambient state.
type PromptInput struct {
	Submission   *model.Submission
	Run          *model.ExtractionRun
	Criteria     []model.AssessmentCriterion
	Requirements []SectionRequirement
	Signals      EvidenceSignals
	Compliance   model.ComplianceReport
	Rubric       string
	Tone         string
	Strictness   string
}

// PromptResult is the assembled prompt plus its content-addressable hash.
type PromptResult struct {
	System    string
	Text      string
	Hash      string
	CoverOnly bool
}

// BuildPrompt assembles the bounded grading prompt. The hash covers the
// user text and is persisted for audit and reproducibility.
func BuildPrompt(in PromptInput, cfg config.GradingConfig) PromptResult {
	coverOnly := in.Run != nil && in.Run.Mode == model.ExtractionModeCoverOnly

	var b strings.Builder

	fmt.Fprintf(&b, "Marking tone: %s. Strictness: %s.\n\n", in.Tone, in.Strictness)

	b.WriteString("## Assessment criteria\n")
	criteria := in.Criteria
	if len(criteria) > maxPromptCriteria {
		criteria = criteria[:maxPromptCriteria]
	}
	for _, c := range criteria {
		fmt.Fprintf(&b, "- %s [%s, %s]: %s\n", c.Code, c.Band, c.LearningOutcome, c.Description)
	}
	b.WriteString("\n")

	if bullets := requirementBullets(in.Requirements); len(bullets) > 0 {
		b.WriteString("## Required modalities from the brief\n")
		for _, bl := range bullets {
			b.WriteString("- " + bl + "\n")
		}
		b.WriteString("\n")
	}

	if in.Compliance.MissingCount > 0 {
		fmt.Fprintf(&b, "## Missing-evidence pre-check\n%d required modality row(s) were not detected in the submission text. Verify against the pages before marking the related criteria ACHIEVED.\n\n", in.Compliance.MissingCount)
	}

	b.WriteString("## Detected submission signals\n")
	b.WriteString(mustJSON(in.Signals) + "\n\n")

	if in.Run != nil {
		b.WriteString("## Cover metadata\n")
		b.WriteString(mustJSON(in.Run.Cover) + "\n\n")
	}

	if in.Rubric != "" && cfg.UseRubricIfAvailable {
		b.WriteString("## Rubric hint\n" + in.Rubric + "\n\n")
	}

	b.WriteString("## Submission\n")
	if coverOnly {
		b.WriteString("Body text was unavailable; only sampled pages follow.\n\n")
	} else {
		b.WriteString(truncate(in.Submission.BodyText, cfg.BodyTextLimit) + "\n\n")
	}

	if in.Run != nil && len(in.Run.Pages) > 0 {
		b.WriteString("## Sampled pages\n")
		b.WriteString(formatPageSamples(in.Run.Pages, cfg.MaxSampledPages, cfg.PageCharBudget))
		b.WriteString("\n")
	}

	text := b.String()
	sum := sha256.Sum256([]byte(text))

	return PromptResult{
		System:    systemPrompt,
		Text:      text,
		Hash:      hex.EncodeToString(sum[:]),
		CoverOnly: coverOnly,
	}
}

// requirementBullets renders the modality requirements as a capped
// human-readable list.
func requirementBullets(reqs []SectionRequirement) []string {
	var out []string
	for _, r := range reqs {
		if len(out) >= maxRequirementBullets {
			break
		}
		var wants []string
		for _, c := range r.Charts {
			wants = append(wants, c+" chart")
		}
		if r.Table {
			wants = append(wants, "table")
		}
		if r.Percentage {
			wants = append(wants, "percentages")
		}
		if r.Equation {
			wants = append(wants, "equation")
		}
		if r.Image {
			wants = append(wants, "image/diagram")
		}
		out = append(out, fmt.Sprintf("Task %d, section %s: requires %s", r.Task, r.Section, strings.Join(wants, ", ")))
	}
	return out
}

// formatPageSamples renders at most maxPages pages, each truncated to the
// per-page character budget, as "Page <n>" blocks separated by ---.
func formatPageSamples(pages []model.PageSample, maxPages, charBudget int) string {
	if maxPages > 0 && len(pages) > maxPages {
		pages = pages[:maxPages]
	}

	blocks := make([]string, 0, len(pages))
	for _, p := range pages {
		blocks = append(blocks, fmt.Sprintf("Page %d\n%s", p.Page, truncate(p.Text, charBudget)))
	}
	return strings.Join(blocks, "\n---\n")
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
