package grading

import (
	"github.com/sells-group/marker/internal/model"
)

// maxMissingSummary caps the per-row gap list carried into the prompt and
// the audit record; MissingCount still counts every failing row.
const maxMissingSummary = 12

// foundModalities derives what the submission actually evidences from the
// detector signals.
type foundModalities struct {
	table      bool
	bar        bool
	pie        bool
	graph      bool
	image      bool
	equation   bool
	percentage bool
}

func deriveFound(sig EvidenceSignals) foundModalities {
	return foundModalities{
		// Two or more data-shaped rows count as a table even when the word
		// "table" was lost in extraction.
		table:      sig.TableWords || sig.DataRows >= 2,
		bar:        sig.BarChartWords,
		pie:        sig.PieChartWords,
		graph:      sig.FigureWords || sig.ImageWords,
		image:      sig.FigureWords || sig.ImageWords,
		equation:   sig.EquationMarker || sig.EquationWords || sig.EquationLines >= 1,
		percentage: sig.PercentTokens > 0,
	}
}

func (f foundModalities) chart(chartType string) bool {
	switch chartType {
	case "bar":
		return f.bar
	case "pie":
		return f.pie
	default:
		return f.graph
	}
}

// EvaluateCompliance cross-references extracted requirements against
// detected evidence. A row fails when any required modality is
// unsatisfied; charts require every listed chart type to be found.
// Pure and deterministic given its inputs.
func EvaluateCompliance(reqs []SectionRequirement, sig EvidenceSignals) model.ComplianceReport {
	found := deriveFound(sig)

	var report model.ComplianceReport
	for _, req := range reqs {
		var missing []string

		for _, ct := range req.Charts {
			if !found.chart(ct) {
				missing = append(missing, "chart:"+ct)
			}
		}
		if req.Table && !found.table {
			missing = append(missing, "table")
		}
		if req.Percentage && !found.percentage {
			missing = append(missing, "percentage")
		}
		if req.Equation && !found.equation {
			missing = append(missing, "equation")
		}
		if req.Image && !found.image {
			missing = append(missing, "image")
		}

		if len(missing) == 0 {
			continue
		}

		report.MissingCount++
		if len(report.MissingSummary) < maxMissingSummary {
			report.MissingSummary = append(report.MissingSummary, model.ComplianceGap{
				Task:    req.Task,
				Section: req.Section,
				Missing: missing,
			})
		}
	}

	return report
}
