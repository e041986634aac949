package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marker/internal/model"
)

func TestExtractRequirements_ChartsAndTables(t *testing.T) {
	tasks := []model.BriefTask{
		{
			Number: 1,
			Parts: []model.TaskPart{
				{Key: "a", Text: "Present the survey results in a table."},
				{Key: "b", Text: "Draw a bar chart and a pie chart of the totals."},
			},
		},
	}

	reqs := ExtractRequirements(tasks)
	require.Len(t, reqs, 2)

	assert.Equal(t, 1, reqs[0].Task)
	assert.Equal(t, "a", reqs[0].Section)
	assert.True(t, reqs[0].Table)
	assert.Empty(t, reqs[0].Charts)

	assert.Equal(t, "b", reqs[1].Section)
	assert.Equal(t, []string{"bar", "pie"}, reqs[1].Charts)
}

func TestExtractRequirements_SilentSectionsOmitted(t *testing.T) {
	tasks := []model.BriefTask{
		{
			Number: 2,
			Parts: []model.TaskPart{
				{Key: "a", Text: "Write a short report on your findings."},
			},
		},
	}

	reqs := ExtractRequirements(tasks)
	assert.Empty(t, reqs)
}

func TestExtractRequirements_RomanPartsInheritSection(t *testing.T) {
	tasks := []model.BriefTask{
		{
			Number: 3,
			Parts: []model.TaskPart{
				{Key: "c", Text: "Using the data set:"},
				{Key: "i", Text: "produce a histogram"},
				{Key: "ii", Text: "calculate the percentage change"},
			},
		},
	}

	reqs := ExtractRequirements(tasks)
	require.Len(t, reqs, 1)

	assert.Equal(t, "c", reqs[0].Section)
	assert.Equal(t, []string{"histogram"}, reqs[0].Charts)
	assert.True(t, reqs[0].Percentage)
}

func TestExtractRequirements_UnkeyedTextGoesToTaskBucket(t *testing.T) {
	tasks := []model.BriefTask{
		{
			Number: 4,
			Parts: []model.TaskPart{
				{Key: "", Text: "Include an equation for the line of best fit."},
				{Key: "a", Text: "Plot a scatter graph."},
			},
		},
	}

	reqs := ExtractRequirements(tasks)
	require.Len(t, reqs, 2)

	assert.Equal(t, "task", reqs[0].Section)
	assert.True(t, reqs[0].Equation)

	assert.Equal(t, "a", reqs[1].Section)
	assert.Contains(t, reqs[1].Charts, "scatter")
}

func TestDetectRequirement_PercentageForms(t *testing.T) {
	// Both the word and the symbol signal a percentage requirement.
	withWord := detectRequirement(1, "a", "express the result as a percentage")
	assert.True(t, withWord.Percentage)

	withSymbol := detectRequirement(1, "a", "what fraction reached 50% attendance")
	assert.True(t, withSymbol.Percentage)

	without := detectRequirement(1, "a", "describe the trend in the data")
	assert.False(t, without.Percentage)
}

func TestDetectRequirement_EquationAndImageMarkers(t *testing.T) {
	req := detectRequirement(1, "b", "see [[eq:quadratic]] and the diagram [[img:circuit1]]")
	assert.True(t, req.Equation)
	assert.True(t, req.Image)
}

func TestDetectRequirement_ChartTypesDeduplicated(t *testing.T) {
	req := detectRequirement(1, "a", "a bar chart, then another bar graph, and a scatter plot")
	assert.Equal(t, []string{"bar", "scatter"}, req.Charts)
}

func TestExtractRequirements_Idempotent(t *testing.T) {
	tasks := []model.BriefTask{
		{
			Number: 1,
			Parts: []model.TaskPart{
				{Key: "a", Text: "Draw a line graph and include a table of values."},
				{Key: "b", Text: "State the formula used."},
			},
		},
	}

	first := ExtractRequirements(tasks)
	second := ExtractRequirements(tasks)
	assert.Equal(t, first, second)
}
