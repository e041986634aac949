package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marker/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// SubmissionFilter specifies criteria for listing submissions.
type SubmissionFilter struct {
	Status       model.SubmissionStatus `json:"status,omitempty"`
	AssignmentID string                 `json:"assignment_id,omitempty"`
	Limit        int                    `json:"limit,omitempty"`
	Offset       int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the grading pipeline.
type Store interface {
	// Submissions
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error)
	SetSubmissionStatus(ctx context.Context, id string, status model.SubmissionStatus) error
	// BeginAssessing atomically transitions a submission to ASSESSING only
	// when its current status is one of from. It returns false when the
	// check-and-set matched no row, which means a concurrent grading
	// attempt holds the submission or it is not in a gradeable state.
	BeginAssessing(ctx context.Context, id string, from []model.SubmissionStatus) (bool, error)

	// Reference documents
	PutUnit(ctx context.Context, unit *model.Unit) error
	GetUnit(ctx context.Context, id string) (*model.Unit, error)
	PutBrief(ctx context.Context, brief *model.AssignmentBrief) error
	GetBriefByAssignment(ctx context.Context, assignmentCode string) (*model.AssignmentBrief, error)

	// Extraction runs
	PutExtractionRun(ctx context.Context, run *model.ExtractionRun) error
	LatestExtractionRun(ctx context.Context, submissionID string) (*model.ExtractionRun, error)

	// Assessments. CompleteGrading persists the assessment and moves the
	// submission to DONE in one transaction; assessments are append-only.
	CompleteGrading(ctx context.Context, a *model.Assessment) error
	GetAssessment(ctx context.Context, id string) (*model.Assessment, error)
	ListAssessments(ctx context.Context, submissionID string) ([]model.Assessment, error)

	// Usage metering
	RecordUsage(ctx context.Context, rec *model.UsageRecord) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
