package grading

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to callers. These are stable machine-readable
// identifiers; messages may change, codes may not.
const (
	CodeSubmissionNotFound = "GRADE_SUBMISSION_NOT_FOUND"
	CodeBriefNotFound      = "GRADE_BRIEF_NOT_FOUND"
	CodeBriefNotLocked     = "GRADE_BRIEF_NOT_LOCKED"
	CodeSpecNotLocked      = "GRADE_SPEC_NOT_LOCKED"
	CodeCriteriaNotMapped  = "GRADE_CRITERIA_NOT_MAPPED"
	CodeExtractionNotReady = "GRADE_EXTRACTION_NOT_READY"
	CodeSubmissionBusy     = "GRADE_SUBMISSION_BUSY"
	CodeEvidenceMissing    = "GRADE_DECISION_EVIDENCE_MISSING"
	CodeValidationFailed   = "GRADE_VALIDATION_FAILED"
	CodeModelCallFailed    = "GRADE_MODEL_CALL_FAILED"
	CodeFailed             = "GRADE_FAILED"
)

// Error is a coded grading failure carrying the HTTP status the handler
// should return and structured diagnostic details for the client.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    any
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Precondition reports whether the error was detected before the submission
// transitioned to ASSESSING; precondition failures leave status unchanged.
func (e *Error) Precondition() bool {
	switch e.Code {
	case CodeSubmissionNotFound, CodeBriefNotFound, CodeBriefNotLocked,
		CodeSpecNotLocked, CodeCriteriaNotMapped, CodeExtractionNotReady,
		CodeSubmissionBusy:
		return true
	}
	return false
}

// AsError extracts a grading *Error from an error chain, wrapping unknown
// errors as a generic GRADE_FAILED.
func AsError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{
		Code:       CodeFailed,
		Message:    "grading failed",
		HTTPStatus: http.StatusInternalServerError,
		cause:      err,
	}
}

func errSubmissionNotFound(id string, cause error) *Error {
	return &Error{
		Code:       CodeSubmissionNotFound,
		Message:    fmt.Sprintf("submission %s not found", id),
		HTTPStatus: http.StatusNotFound,
		cause:      cause,
	}
}

func errBriefNotFound(assignmentID string, cause error) *Error {
	return &Error{
		Code:       CodeBriefNotFound,
		Message:    fmt.Sprintf("no brief for assignment %s", assignmentID),
		HTTPStatus: http.StatusUnprocessableEntity,
		cause:      cause,
	}
}

func errBriefNotLocked(briefID string) *Error {
	return &Error{
		Code:       CodeBriefNotLocked,
		Message:    fmt.Sprintf("brief %s is not locked", briefID),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

func errSpecNotLocked(unitID string) *Error {
	return &Error{
		Code:       CodeSpecNotLocked,
		Message:    fmt.Sprintf("unit %s is not locked", unitID),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

func errCriteriaNotMapped(briefID string) *Error {
	return &Error{
		Code:       CodeCriteriaNotMapped,
		Message:    fmt.Sprintf("brief %s resolves to an empty criteria set", briefID),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

func errExtractionNotReady(details any) *Error {
	return &Error{
		Code:       CodeExtractionNotReady,
		Message:    "submission text extraction is not ready for grading",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func errSubmissionBusy(id string) *Error {
	return &Error{
		Code:       CodeSubmissionBusy,
		Message:    fmt.Sprintf("submission %s is not in a gradeable state or is already being graded", id),
		HTTPStatus: http.StatusConflict,
	}
}

func errEvidenceMissing(codes []string) *Error {
	return &Error{
		Code:       CodeEvidenceMissing,
		Message:    fmt.Sprintf("criteria marked ACHIEVED without evidence: %v", codes),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"codes": codes},
	}
}

func errValidationFailed(violations []RuleViolation) *Error {
	return &Error{
		Code:       CodeValidationFailed,
		Message:    "model response violated the output contract",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"violations": violations},
	}
}

func errModelCallFailed(cause error) *Error {
	return &Error{
		Code:       CodeModelCallFailed,
		Message:    "grading model call failed",
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}
}
