package grading

import (
	"fmt"
	"strings"

	"github.com/sells-group/marker/internal/model"
)

// EvaluateGate runs the extraction readiness check. It is a pure function:
// callers must refuse to proceed to prompting when the report's OK is false.
// A nil run means no extraction has been attempted yet.
func EvaluateGate(sub *model.Submission, run *model.ExtractionRun, minTextLen int, minConfidence float64) model.GateReport {
	report := model.GateReport{
		Metrics: model.GateMetrics{
			TextLength: len(strings.TrimSpace(sub.BodyText)),
		},
	}

	if run == nil {
		report.Blockers = append(report.Blockers, "no extraction run recorded for submission")
	} else {
		report.Metrics.PagesSampled = len(run.Pages)
		report.Metrics.ExtractionConfidence = run.Confidence

		switch run.Status {
		case model.ExtractionStatusFailed:
			report.Blockers = append(report.Blockers, "latest extraction run failed")
		case model.ExtractionStatusPending:
			report.Blockers = append(report.Blockers, "latest extraction run has not completed")
		}

		if run.Status == model.ExtractionStatusComplete && run.Confidence < minConfidence {
			report.Blockers = append(report.Blockers,
				fmt.Sprintf("extraction confidence %.2f below minimum %.2f", run.Confidence, minConfidence))
		}

		if sub.Status == model.SubmissionStatusNeedsOCR && !run.OCRApplied {
			report.Blockers = append(report.Blockers, "submission requires OCR that has not been applied")
		}

		report.Warnings = append(report.Warnings, run.Warnings...)
		if run.Mode == model.ExtractionModeCoverOnly {
			report.Warnings = append(report.Warnings, "cover-only extraction: body text unavailable, grading from sampled pages")
		}
	}

	// In cover-only mode the page samples stand in for body text, so the
	// length check applies to them instead.
	textLen := report.Metrics.TextLength
	if run != nil && run.Mode == model.ExtractionModeCoverOnly {
		textLen = 0
		for _, p := range run.Pages {
			textLen += len(strings.TrimSpace(p.Text))
		}
	}
	if textLen < minTextLen {
		report.Blockers = append(report.Blockers,
			fmt.Sprintf("extracted text too short: %d chars, need at least %d", textLen, minTextLen))
	}

	report.OK = len(report.Blockers) == 0
	return report
}
