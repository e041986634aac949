package grading

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCompliance_AllSatisfied(t *testing.T) {
	reqs := []SectionRequirement{
		{Task: 1, Section: "a", Table: true, Percentage: true},
		{Task: 1, Section: "b", Charts: []string{"bar"}},
	}
	sig := EvidenceSignals{
		TableWords:    true,
		BarChartWords: true,
		PercentTokens: 5,
	}

	report := EvaluateCompliance(reqs, sig)

	assert.Equal(t, 0, report.MissingCount)
	assert.Empty(t, report.MissingSummary)
}

func TestEvaluateCompliance_MissingModalities(t *testing.T) {
	reqs := []SectionRequirement{
		{Task: 2, Section: "c", Charts: []string{"bar", "pie"}, Table: true},
	}
	// Only the bar chart is evidenced.
	sig := EvidenceSignals{BarChartWords: true}

	report := EvaluateCompliance(reqs, sig)

	require.Equal(t, 1, report.MissingCount)
	require.Len(t, report.MissingSummary, 1)
	gap := report.MissingSummary[0]
	assert.Equal(t, 2, gap.Task)
	assert.Equal(t, "c", gap.Section)
	assert.Equal(t, []string{"chart:pie", "table"}, gap.Missing)
}

func TestEvaluateCompliance_DataRowsCountAsTable(t *testing.T) {
	reqs := []SectionRequirement{{Task: 1, Section: "a", Table: true}}

	// One data-shaped row is not enough; two are.
	one := EvaluateCompliance(reqs, EvidenceSignals{DataRows: 1})
	assert.Equal(t, 1, one.MissingCount)

	two := EvaluateCompliance(reqs, EvidenceSignals{DataRows: 2})
	assert.Equal(t, 0, two.MissingCount)
}

func TestEvaluateCompliance_GenericChartFallsBackToGraph(t *testing.T) {
	reqs := []SectionRequirement{
		{Task: 1, Section: "a", Charts: []string{"histogram", "scatter", "line"}},
	}

	missing := EvaluateCompliance(reqs, EvidenceSignals{})
	assert.Equal(t, 1, missing.MissingCount)

	// Any figure-like evidence satisfies non-bar, non-pie chart types.
	found := EvaluateCompliance(reqs, EvidenceSignals{FigureWords: true})
	assert.Equal(t, 0, found.MissingCount)
}

func TestEvaluateCompliance_EquationEvidenceForms(t *testing.T) {
	reqs := []SectionRequirement{{Task: 1, Section: "a", Equation: true}}

	for _, sig := range []EvidenceSignals{
		{EquationMarker: true},
		{EquationWords: true},
		{EquationLines: 1},
	} {
		report := EvaluateCompliance(reqs, sig)
		assert.Equal(t, 0, report.MissingCount)
	}

	report := EvaluateCompliance(reqs, EvidenceSignals{})
	assert.Equal(t, 1, report.MissingCount)
}

func TestEvaluateCompliance_SummaryCapped(t *testing.T) {
	var reqs []SectionRequirement
	for i := 1; i <= maxMissingSummary+8; i++ {
		reqs = append(reqs, SectionRequirement{
			Task:    i,
			Section: fmt.Sprintf("s%d", i),
			Image:   true,
		})
	}

	report := EvaluateCompliance(reqs, EvidenceSignals{})

	assert.Equal(t, maxMissingSummary+8, report.MissingCount)
	assert.Len(t, report.MissingSummary, maxMissingSummary)
}
