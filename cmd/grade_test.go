package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/marker/internal/model"
)

func TestBatchStatuses(t *testing.T) {
	gradeRetryFailed = false
	assert.Equal(t, []model.SubmissionStatus{model.SubmissionStatusExtracted}, batchStatuses())

	gradeRetryFailed = true
	defer func() { gradeRetryFailed = false }()
	assert.Equal(t, []model.SubmissionStatus{
		model.SubmissionStatusExtracted,
		model.SubmissionStatusFailed,
	}, batchStatuses())

	// DONE submissions are never picked up by a batch run.
	for _, status := range batchStatuses() {
		assert.NotEqual(t, model.SubmissionStatusDone, status)
	}
}
