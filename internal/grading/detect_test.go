package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	in := "Table  1:\tResults\nAVERAGE   Score"
	out := NormalizeText(in)
	assert.Equal(t, "table 1: results\naverage score", out)
}

func TestNormalizeText_KeepsLineBreaks(t *testing.T) {
	out := NormalizeText("a\nb\nc")
	assert.Equal(t, "a\nb\nc", out)
}

func TestNormalizeText_NFKC(t *testing.T) {
	// Fullwidth digits fold to ASCII so the percent detector sees them.
	out := NormalizeText("４２%")
	sig := DetectEvidence(out)
	assert.Equal(t, 1, sig.PercentTokens)
}

func TestDetectEvidence_Words(t *testing.T) {
	text := NormalizeText("Table 2 shows the results. The bar chart and pie chart illustrate the split. See figure 3 and the diagram.")

	sig := DetectEvidence(text)

	assert.True(t, sig.TableWords)
	assert.True(t, sig.BarChartWords)
	assert.True(t, sig.PieChartWords)
	assert.True(t, sig.FigureWords)
	assert.True(t, sig.ImageWords)
	assert.False(t, sig.EquationWords)
}

func TestDetectEvidence_EquationLines(t *testing.T) {
	text := NormalizeText("y = mx + c\nmean = total / count\nnot an equation line here")

	sig := DetectEvidence(text)

	assert.Equal(t, 2, sig.EquationLines)
	assert.False(t, sig.EquationMarker)
}

func TestDetectEvidence_EquationMarker(t *testing.T) {
	sig := DetectEvidence(NormalizeText("as shown in [[eq:ohms-law]]"))
	assert.True(t, sig.EquationMarker)
}

func TestDetectEvidence_PercentTokens(t *testing.T) {
	sig := DetectEvidence(NormalizeText("attendance rose from 45% to 62.5 % overall"))
	assert.Equal(t, 2, sig.PercentTokens)
}

func TestDetectEvidence_DataRows(t *testing.T) {
	text := NormalizeText("football 12\nswimming 9\nbadminton 4.5%\n")
	sig := DetectEvidence(text)
	assert.Equal(t, 3, sig.DataRows)
}

func TestDetectEvidence_CountsSaturate(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxEquationLines+50; i++ {
		b.WriteString("x = 1\n")
	}
	for i := 0; i < maxPercentTokens+50; i++ {
		b.WriteString("10% ")
	}

	sig := DetectEvidence(NormalizeText(b.String()))

	assert.Equal(t, maxEquationLines, sig.EquationLines)
	assert.Equal(t, maxPercentTokens, sig.PercentTokens)
}

func TestDetectEvidence_Deterministic(t *testing.T) {
	text := NormalizeText("table of values\ny = 2x\n30% increase")
	assert.Equal(t, DetectEvidence(text), DetectEvidence(text))
}
