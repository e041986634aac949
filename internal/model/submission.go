package model

import "time"

// SubmissionStatus represents the current state of a student submission.
type SubmissionStatus string

const (
	SubmissionStatusUploaded   SubmissionStatus = "UPLOADED"
	SubmissionStatusExtracting SubmissionStatus = "EXTRACTING"
	SubmissionStatusExtracted  SubmissionStatus = "EXTRACTED"
	SubmissionStatusNeedsOCR   SubmissionStatus = "NEEDS_OCR"
	SubmissionStatusAssessing  SubmissionStatus = "ASSESSING"
	SubmissionStatusDone       SubmissionStatus = "DONE"
	SubmissionStatusFailed     SubmissionStatus = "FAILED"
)

// GradeableStatuses are the states a submission may be in when a grading
// attempt starts. DONE and FAILED are included because re-grading a finished
// submission creates a fresh assessment.
func GradeableStatuses() []SubmissionStatus {
	return []SubmissionStatus{
		SubmissionStatusExtracted,
		SubmissionStatusDone,
		SubmissionStatusFailed,
	}
}

// Submission is a student's uploaded work for one assignment.
type Submission struct {
	ID           string           `json:"id"`
	StudentID    string           `json:"student_id"`
	StudentName  string           `json:"student_name"`
	AssignmentID string           `json:"assignment_id"`
	Status       SubmissionStatus `json:"status"`
	BodyText     string           `json:"body_text,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ExtractionStatus is the outcome of a text extraction attempt.
type ExtractionStatus string

const (
	ExtractionStatusPending  ExtractionStatus = "PENDING"
	ExtractionStatusComplete ExtractionStatus = "COMPLETE"
	ExtractionStatusFailed   ExtractionStatus = "FAILED"
)

// ExtractionMode describes which evidence substrate the extraction produced.
// In COVER_ONLY mode the body text is unavailable or unreliable and grading
// must rely on sampled page text alone.
type ExtractionMode string

const (
	ExtractionModeNormal    ExtractionMode = "NORMAL"
	ExtractionModeCoverOnly ExtractionMode = "COVER_ONLY"
)

// PageSample is one page of extracted text with its 1-based page number.
type PageSample struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// CoverMetadata is the student identification data read from the cover page.
type CoverMetadata struct {
	StudentName    string `json:"student_name,omitempty"`
	StudentID      string `json:"student_id,omitempty"`
	AssignmentCode string `json:"assignment_code,omitempty"`
	UnitCode       string `json:"unit_code,omitempty"`
}

// ExtractionRun is the record of one OCR/text-extraction attempt for a
// submission. The most recent run is the evidence substrate for grading.
type ExtractionRun struct {
	ID           string           `json:"id"`
	SubmissionID string           `json:"submission_id"`
	Status       ExtractionStatus `json:"status"`
	Confidence   float64          `json:"confidence"`
	Mode         ExtractionMode   `json:"mode"`
	OCRApplied   bool             `json:"ocr_applied"`
	Pages        []PageSample     `json:"pages,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Cover        CoverMetadata    `json:"cover"`
	CreatedAt    time.Time        `json:"created_at"`
}
