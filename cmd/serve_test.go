package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/marker/internal/config"
	"github.com/sells-group/marker/internal/grading"
	"github.com/sells-group/marker/internal/model"
	"github.com/sells-group/marker/internal/store"
	"github.com/sells-group/marker/internal/usage"
	"github.com/sells-group/marker/pkg/anthropic"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubClient returns the same canned verdict for every call.
type stubClient struct {
	body string
	err  error
}

func (s *stubClient) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Model:   "claude-sonnet-4-5-20250929",
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.body}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

const serveVerdictJSON = `{
	"overallGradeWord": "PASS",
	"feedbackSummary": "Covers the required data handling.",
	"feedbackBullets": ["Cite page numbers."],
	"criterionChecks": [
		{"code": "P1", "decision": "ACHIEVED", "rationale": "Table on page 2.",
		 "confidence": 0.8, "evidence": [{"page": 2, "quote": "Table 1"}]}
	],
	"confidence": 0.8
}`

func serveTestConfig() config.GradingConfig {
	return config.GradingConfig{
		Model:                   "claude-sonnet-4-5-20250929",
		ConfidenceCap:           0.65,
		MaxSampledPages:         4,
		PageCharBudget:          1600,
		BodyTextLimit:           20000,
		MinTextLength:           20,
		MinExtractionConfidence: 0.3,
		TimeoutSecs:             5,
		MaxAttempts:             1,
		MaxOutputTokens:         1024,
	}
}

func newServerEnv(t *testing.T, client anthropic.Client) *gradingEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "marker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	now := time.Now().UTC()
	require.NoError(t, st.PutUnit(ctx, &model.Unit{
		ID:   "unit-1",
		Code: "U4",
		LearningOutcomes: []model.LearningOutcome{
			{Code: "LO1", Criteria: []model.AssessmentCriterion{
				{Code: "P1", Band: model.GradeBandPass, Description: "Collect and present data"},
			}},
		},
		LockedAt: &now,
	}))
	require.NoError(t, st.PutBrief(ctx, &model.AssignmentBrief{
		ID:             "brief-1",
		AssignmentCode: "A1",
		UnitID:         "unit-1",
		Tasks: []model.BriefTask{
			{Number: 1, Parts: []model.TaskPart{{Key: "a", Text: "Present your results in a table."}}},
		},
		LockedAt: &now,
	}))
	require.NoError(t, st.CreateSubmission(ctx, &model.Submission{
		ID:           "sub-1",
		StudentID:    "st-1",
		StudentName:  "Alex Morgan",
		AssignmentID: "A1",
		Status:       model.SubmissionStatusExtracted,
		BodyText:     strings.Repeat("the results are shown in table 1. ", 5),
	}))
	require.NoError(t, st.PutExtractionRun(ctx, &model.ExtractionRun{
		ID:           "run-1",
		SubmissionID: "sub-1",
		Status:       model.ExtractionStatusComplete,
		Confidence:   0.9,
		Mode:         model.ExtractionModeNormal,
	}))

	grader := grading.NewGrader(serveTestConfig(), st, client, usage.NewRecorder(st), nil)
	return &gradingEnv{Store: st, Client: client, Grader: grader}
}

func TestServeHealth(t *testing.T) {
	env := newServerEnv(t, &stubClient{body: serveVerdictJSON})
	srv := httptest.NewServer(newRouter(env, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestServeGetSubmission(t *testing.T) {
	env := newServerEnv(t, &stubClient{body: serveVerdictJSON})
	srv := httptest.NewServer(newRouter(env, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/submissions/sub-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sub model.Submission
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sub))
	assert.Equal(t, "Alex Morgan", sub.StudentName)

	missing, err := http.Get(srv.URL + "/submissions/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	var body struct {
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.NewDecoder(missing.Body).Decode(&body))
	assert.NotEmpty(t, body.RequestID)
}

func TestServeGradeSubmission(t *testing.T) {
	env := newServerEnv(t, &stubClient{body: serveVerdictJSON})
	srv := httptest.NewServer(newRouter(env, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/submissions/sub-1/grade", "application/json",
		strings.NewReader(`{"actor":"assessor-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome grading.GradeOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	require.NotNil(t, outcome.Assessment)
	assert.Equal(t, model.GradePass, outcome.Assessment.Grade)
	assert.Equal(t, "assessor-1", outcome.Assessment.AssessorID)

	// The submission is DONE and its assessment is retrievable.
	sub, err := env.Store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionStatusDone, sub.Status)

	list, err := http.Get(srv.URL + "/submissions/sub-1/assessments")
	require.NoError(t, err)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)

	var assessments []model.Assessment
	require.NoError(t, json.NewDecoder(list.Body).Decode(&assessments))
	require.Len(t, assessments, 1)

	one, err := http.Get(srv.URL + "/assessments/" + assessments[0].ID)
	require.NoError(t, err)
	defer one.Body.Close()
	assert.Equal(t, http.StatusOK, one.StatusCode)
}

func TestServeGradeErrors(t *testing.T) {
	env := newServerEnv(t, &stubClient{body: serveVerdictJSON})
	srv := httptest.NewServer(newRouter(env, nil))
	defer srv.Close()

	// Unknown submission maps to 404 with a stable error code.
	resp, err := http.Post(srv.URL+"/submissions/nope/grade", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, grading.CodeSubmissionNotFound, body.Code)
	assert.NotEmpty(t, body.RequestID)

	// A submission mid-assessment returns 409.
	require.NoError(t, env.Store.SetSubmissionStatus(context.Background(), "sub-1", model.SubmissionStatusAssessing))
	busy, err := http.Post(srv.URL+"/submissions/sub-1/grade", "application/json", nil)
	require.NoError(t, err)
	defer busy.Body.Close()
	assert.Equal(t, http.StatusConflict, busy.StatusCode)
}

func TestServeGradeModelFailure(t *testing.T) {
	env := newServerEnv(t, &stubClient{err: assert.AnError})
	srv := httptest.NewServer(newRouter(env, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/submissions/sub-1/grade", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, grading.CodeModelCallFailed, body.Code)

	sub, err := env.Store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionStatusFailed, sub.Status)
}
