package grading

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marker/internal/config"
	"github.com/sells-group/marker/internal/model"
)

func promptConfig() config.GradingConfig {
	return config.GradingConfig{
		UseRubricIfAvailable: true,
		MaxSampledPages:      2,
		PageCharBudget:       100,
		BodyTextLimit:        500,
	}
}

func TestBuildPrompt_IncludesCriteriaAndBody(t *testing.T) {
	in := PromptInput{
		Submission: &model.Submission{BodyText: "The survey collected 40 responses."},
		Run:        &model.ExtractionRun{Status: model.ExtractionStatusComplete},
		Criteria: []model.AssessmentCriterion{
			{Code: "P1", Band: model.GradeBandPass, LearningOutcome: "LO1", Description: "Collect data"},
		},
		Tone:       "supportive",
		Strictness: "standard",
	}

	result := BuildPrompt(in, promptConfig())

	assert.Contains(t, result.Text, "P1 [PASS, LO1]: Collect data")
	assert.Contains(t, result.Text, "The survey collected 40 responses.")
	assert.Contains(t, result.Text, "Marking tone: supportive. Strictness: standard.")
	assert.False(t, result.CoverOnly)
	assert.NotEmpty(t, result.System)
}

func TestBuildPrompt_HashStableAndSensitive(t *testing.T) {
	in := PromptInput{
		Submission: &model.Submission{BodyText: "body"},
		Criteria:   []model.AssessmentCriterion{{Code: "P1"}},
	}
	cfg := promptConfig()

	first := BuildPrompt(in, cfg)
	second := BuildPrompt(in, cfg)
	require.Equal(t, first.Hash, second.Hash)
	assert.Len(t, first.Hash, 64)

	in.Submission = &model.Submission{BodyText: "different body"}
	third := BuildPrompt(in, cfg)
	assert.NotEqual(t, first.Hash, third.Hash)
}

func TestBuildPrompt_BodyTruncated(t *testing.T) {
	in := PromptInput{
		Submission: &model.Submission{BodyText: strings.Repeat("a", 2000)},
	}

	result := BuildPrompt(in, promptConfig())

	assert.NotContains(t, result.Text, strings.Repeat("a", 501))
	assert.Contains(t, result.Text, strings.Repeat("a", 500))
}

func TestBuildPrompt_TruncationKeepsValidUTF8(t *testing.T) {
	// Multibyte runes land exactly on the cut points; truncation must not
	// split them.
	body := "a" + strings.Repeat("é", 600) // 2-byte runes offset by one, limit 500 falls mid-rune
	in := PromptInput{
		Submission: &model.Submission{BodyText: body},
		Run: &model.ExtractionRun{
			Pages: []model.PageSample{{Page: 1, Text: strings.Repeat("£", 80)}},
		},
	}

	cfg := promptConfig()
	cfg.PageCharBudget = 101 // 2-byte runes, odd budget falls mid-rune

	result := BuildPrompt(in, cfg)

	assert.True(t, utf8.ValidString(result.Text))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "abcdef", truncate("abcdef", 0))
	assert.Equal(t, "é", truncate("éé", 3))
	assert.Equal(t, "", truncate("é", 1))
}

func TestBuildPrompt_CoverOnlyOmitsBody(t *testing.T) {
	in := PromptInput{
		Submission: &model.Submission{BodyText: "UNRELIABLE EXTRACTED BODY"},
		Run: &model.ExtractionRun{
			Mode: model.ExtractionModeCoverOnly,
			Pages: []model.PageSample{
				{Page: 1, Text: "page one text"},
				{Page: 2, Text: "page two text"},
			},
		},
	}

	result := BuildPrompt(in, promptConfig())

	assert.True(t, result.CoverOnly)
	assert.NotContains(t, result.Text, "UNRELIABLE EXTRACTED BODY")
	assert.Contains(t, result.Text, "Page 1\npage one text")
}

func TestBuildPrompt_PageSamplesBounded(t *testing.T) {
	long := strings.Repeat("x", 300)
	in := PromptInput{
		Submission: &model.Submission{BodyText: "body"},
		Run: &model.ExtractionRun{
			Pages: []model.PageSample{
				{Page: 1, Text: long},
				{Page: 2, Text: long},
				{Page: 3, Text: "never included"},
			},
		},
	}

	// MaxSampledPages is 2 and PageCharBudget is 100.
	result := BuildPrompt(in, promptConfig())

	assert.NotContains(t, result.Text, "never included")
	assert.NotContains(t, result.Text, strings.Repeat("x", 101))
	assert.Contains(t, result.Text, "Page 2")
}

func TestBuildPrompt_RubricRespectsToggle(t *testing.T) {
	in := PromptInput{
		Submission: &model.Submission{BodyText: "body"},
		Rubric:     "weight accuracy over presentation",
	}

	cfg := promptConfig()
	with := BuildPrompt(in, cfg)
	assert.Contains(t, with.Text, "weight accuracy over presentation")

	cfg.UseRubricIfAvailable = false
	without := BuildPrompt(in, cfg)
	assert.NotContains(t, without.Text, "weight accuracy over presentation")
}

func TestBuildPrompt_MissingEvidenceNote(t *testing.T) {
	in := PromptInput{
		Submission: &model.Submission{BodyText: "body"},
		Compliance: model.ComplianceReport{MissingCount: 2},
	}

	result := BuildPrompt(in, promptConfig())
	assert.Contains(t, result.Text, "Missing-evidence pre-check")
	assert.Contains(t, result.Text, "2 required modality row(s)")
}

func TestBuildPrompt_RequirementBullets(t *testing.T) {
	in := PromptInput{
		Submission: &model.Submission{BodyText: "body"},
		Requirements: []SectionRequirement{
			{Task: 1, Section: "b", Charts: []string{"bar"}, Table: true},
		},
	}

	result := BuildPrompt(in, promptConfig())
	assert.Contains(t, result.Text, "Task 1, section b: requires bar chart, table")
}
