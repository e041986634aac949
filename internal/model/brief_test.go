package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnit() *Unit {
	return &Unit{
		ID: "unit-1",
		LearningOutcomes: []LearningOutcome{
			{Code: "LO1", Criteria: []AssessmentCriterion{
				{Code: "P1", Band: GradeBandPass},
				{Code: "M1", Band: GradeBandMerit},
			}},
			{Code: "LO2", Criteria: []AssessmentCriterion{
				{Code: "P2", Band: GradeBandPass},
				{Code: "D1", Band: GradeBandDistinction, Excluded: true},
			}},
		},
	}
}

func TestUnitLocked(t *testing.T) {
	u := testUnit()
	assert.False(t, u.Locked())

	now := time.Now()
	u.LockedAt = &now
	assert.True(t, u.Locked())

	var nilUnit *Unit
	assert.False(t, nilUnit.Locked())
}

func TestUnitCriteria_FlattensAndSkipsExcluded(t *testing.T) {
	criteria := testUnit().Criteria()

	codes := make([]string, len(criteria))
	for i, c := range criteria {
		codes[i] = c.Code
	}
	assert.Equal(t, []string{"P1", "M1", "P2"}, codes)

	// LearningOutcome is backfilled from the parent LO.
	assert.Equal(t, "LO1", criteria[0].LearningOutcome)
	assert.Equal(t, "LO2", criteria[2].LearningOutcome)
}

func TestEffectiveCriteria_NoMappingUsesFullSet(t *testing.T) {
	brief := &AssignmentBrief{}
	criteria := EffectiveCriteria(brief, testUnit())
	assert.Len(t, criteria, 3)
}

func TestEffectiveCriteria_MappingOverrides(t *testing.T) {
	brief := &AssignmentBrief{
		CriteriaMaps: []CriteriaMapping{
			{TaskNumber: 1, Codes: []string{"P1"}},
			{TaskNumber: 2, Codes: []string{"M1"}},
		},
	}

	criteria := EffectiveCriteria(brief, testUnit())
	require.Len(t, criteria, 2)
	assert.Equal(t, "P1", criteria[0].Code)
	assert.Equal(t, "M1", criteria[1].Code)
}

func TestEffectiveCriteria_MappedUnknownCodeYieldsEmpty(t *testing.T) {
	brief := &AssignmentBrief{
		CriteriaMaps: []CriteriaMapping{{Codes: []string{"ZZ9"}}},
	}
	assert.Empty(t, EffectiveCriteria(brief, testUnit()))
}

func TestGradeWordVocabulary(t *testing.T) {
	for _, w := range AllGradeWords() {
		assert.True(t, ValidGradeWord(w))
	}
	assert.False(t, ValidGradeWord("EXCELLENT"))
	assert.False(t, ValidGradeWord(""))
}

func TestValidDecision(t *testing.T) {
	assert.True(t, ValidDecision(DecisionAchieved))
	assert.True(t, ValidDecision(DecisionNotAchieved))
	assert.True(t, ValidDecision(DecisionUnclear))
	assert.False(t, ValidDecision("PARTIAL"))
}

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{InputTokens: 10, OutputTokens: 5}
	u.Add(TokenUsage{InputTokens: 3, OutputTokens: 2, CacheReadTokens: 7})

	assert.Equal(t, 13, u.InputTokens)
	assert.Equal(t, 7, u.OutputTokens)
	assert.Equal(t, 7, u.CacheReadTokens)
}
