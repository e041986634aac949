package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marker/internal/model"
)

// RuleViolation is one output-contract violation. Validation returns every
// violation found, not just the first.
type RuleViolation struct {
	Rule    string `json:"rule"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ParseVerdict extracts and decodes the model's JSON response.
func ParseVerdict(raw string) (*model.ModelVerdict, error) {
	cleaned := cleanJSON(raw)

	var v model.ModelVerdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, eris.Wrap(err, "grading: decode model response")
	}
	return &v, nil
}

// ValidateVerdict enforces the output contract against the valid criteria
// code set: every code appears exactly once, decisions are in the fixed
// enumeration, and required fields are present.
func ValidateVerdict(v *model.ModelVerdict, validCodes []string) []RuleViolation {
	var violations []RuleViolation

	valid := make(map[string]bool, len(validCodes))
	for _, c := range validCodes {
		valid[c] = true
	}

	if !model.ValidGradeWord(v.OverallGradeWord) {
		violations = append(violations, RuleViolation{
			Rule:    "grade_word",
			Message: fmt.Sprintf("overallGradeWord %q is not in the grade vocabulary", v.OverallGradeWord),
		})
	}
	if strings.TrimSpace(v.FeedbackSummary) == "" {
		violations = append(violations, RuleViolation{
			Rule:    "required_field",
			Message: "feedbackSummary is empty",
		})
	}

	seen := make(map[string]int)
	for _, check := range v.CriterionChecks {
		seen[check.Code]++

		if !valid[check.Code] {
			violations = append(violations, RuleViolation{
				Rule:    "unknown_code",
				Code:    check.Code,
				Message: fmt.Sprintf("criterion %q is not in the valid code set", check.Code),
			})
			continue
		}
		if !model.ValidDecision(check.Decision) {
			violations = append(violations, RuleViolation{
				Rule:    "decision_enum",
				Code:    check.Code,
				Message: fmt.Sprintf("decision %q for %s is not one of ACHIEVED, NOT_ACHIEVED, UNCLEAR", check.Decision, check.Code),
			})
		}
		if strings.TrimSpace(check.Rationale) == "" {
			violations = append(violations, RuleViolation{
				Rule:    "required_field",
				Code:    check.Code,
				Message: fmt.Sprintf("rationale for %s is empty", check.Code),
			})
		}
	}

	for _, code := range validCodes {
		switch seen[code] {
		case 0:
			violations = append(violations, RuleViolation{
				Rule:    "missing_code",
				Code:    code,
				Message: fmt.Sprintf("criterion %s has no criterionChecks entry", code),
			})
		case 1:
			// exactly once
		default:
			violations = append(violations, RuleViolation{
				Rule:    "duplicate_code",
				Code:    code,
				Message: fmt.Sprintf("criterion %s appears %d times", code, seen[code]),
			})
		}
	}

	return violations
}

// UnevidencedAchievements returns the codes of criteria marked ACHIEVED
// with zero evidence items. This is a business rule checked after schema
// validation passes, and such a response must never be persisted.
func UnevidencedAchievements(v *model.ModelVerdict) []string {
	var codes []string
	for _, check := range v.CriterionChecks {
		if check.Decision == model.DecisionAchieved && len(check.Evidence) == 0 {
			codes = append(codes, check.Code)
		}
	}
	return codes
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
