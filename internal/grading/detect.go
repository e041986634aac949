package grading

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Saturating caps on counted signals. Pathological inputs (OCR noise,
// repeated tokens) must not inflate evidence scores or scanning cost.
const (
	maxEquationLines = 120
	maxPercentTokens = 200
	maxDataRows      = 80
)

// EvidenceSignals are the heuristic presence/count signals detected in a
// submission's extracted text. All counts saturate at fixed caps.
type EvidenceSignals struct {
	TableWords     bool `json:"tableWords"`
	BarChartWords  bool `json:"barChartWords"`
	PieChartWords  bool `json:"pieChartWords"`
	FigureWords    bool `json:"figureWords"`
	ImageWords     bool `json:"imageWords"`
	EquationWords  bool `json:"equationWords"`
	EquationMarker bool `json:"equationMarker"`
	EquationLines  int  `json:"equationLines"`
	PercentTokens  int  `json:"percentTokens"`
	DataRows       int  `json:"dataRows"`
}

var (
	reSubTable    = regexp.MustCompile(`\btables?\b`)
	reSubBar      = regexp.MustCompile(`\bbar\s*(chart|graph)s?\b`)
	reSubPie      = regexp.MustCompile(`\bpie\s*(chart|graph)s?\b`)
	reSubFigure   = regexp.MustCompile(`\b(figures?|graphs?|plots?|histograms?)\b`)
	reSubImage    = regexp.MustCompile(`\b(images?|diagrams?|screenshots?|photos?)\b`)
	reSubEqWords  = regexp.MustCompile(`\b(equations?|formulae?|formulas?)\b`)
	reSubEqMarker = regexp.MustCompile(`\[\[eq:[^\]]*\]\]`)

	// identifier = expression
	reEquationLine = regexp.MustCompile(`(?m)^\s*[a-z_][a-z0-9_]{0,31}\s*=\s*\S+`)

	// 42%, 3.5 %
	rePercentToken = regexp.MustCompile(`\b\d+(\.\d+)?\s*%`)

	// label text followed by a trailing number, optionally a percentage:
	// the shape of a table row flattened by text extraction.
	reDataRowLine = regexp.MustCompile(`(?m)^\s*[a-z][a-z\s]{2,40}\s\d+(\.\d+)?%?\s*$`)
)

// NormalizeText prepares extracted submission text for detection: NFKC
// normalization, lowercasing, and collapsing runs of spaces/tabs while
// keeping line breaks for the line-anchored detectors.
func NormalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

// DetectEvidence scans normalized submission text for heuristic signals
// that required modalities are actually present. Pure and deterministic.
func DetectEvidence(text string) EvidenceSignals {
	return EvidenceSignals{
		TableWords:     reSubTable.MatchString(text),
		BarChartWords:  reSubBar.MatchString(text),
		PieChartWords:  reSubPie.MatchString(text),
		FigureWords:    reSubFigure.MatchString(text),
		ImageWords:     reSubImage.MatchString(text),
		EquationWords:  reSubEqWords.MatchString(text),
		EquationMarker: reSubEqMarker.MatchString(text),
		EquationLines:  countCapped(reEquationLine, text, maxEquationLines),
		PercentTokens:  countCapped(rePercentToken, text, maxPercentTokens),
		DataRows:       countCapped(reDataRowLine, text, maxDataRows),
	}
}

// countCapped counts matches without materializing more than cap of them.
func countCapped(re *regexp.Regexp, text string, cap int) int {
	matches := re.FindAllStringIndex(text, cap)
	return len(matches)
}
