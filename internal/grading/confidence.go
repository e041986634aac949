package grading

import (
	"math"

	"github.com/sells-group/marker/internal/model"
)

// ResolveConfidence applies the confidence-cap policy. The model's
// self-reported confidence is clamped to [0,1] (0.5 when non-finite); when
// modality evidence is missing and the clamped value exceeds the cap, the
// final confidence is the cap. Both values are recorded verbatim so the
// uncapped figure is never lost.
func ResolveConfidence(modelConfidence float64, missingCount int, cap float64) model.ConfidenceTrace {
	mc := modelConfidence
	if math.IsNaN(mc) || math.IsInf(mc, 0) {
		mc = 0.5
	}
	if mc < 0 {
		mc = 0
	}
	if mc > 1 {
		mc = 1
	}

	trace := model.ConfidenceTrace{
		ModelConfidence: mc,
		Cap:             cap,
		Final:           mc,
	}

	if missingCount > 0 && mc > cap {
		trace.Final = cap
		trace.WasCapped = true
	}

	return trace
}
