package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/marker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and the one-shot CLI grading flow.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	student_id    TEXT NOT NULL,
	student_name  TEXT NOT NULL DEFAULT '',
	assignment_id TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'UPLOADED',
	body_text     TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS units (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS briefs (
	id              TEXT PRIMARY KEY,
	assignment_code TEXT NOT NULL UNIQUE,
	doc             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_runs (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id),
	doc           TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assessments (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id),
	grade         TEXT NOT NULL,
	feedback      TEXT NOT NULL,
	annotated_pdf TEXT NOT NULL DEFAULT '',
	assessor_id   TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_log (
	id            TEXT PRIMARY KEY,
	model         TEXT NOT NULL,
	operation     TEXT NOT NULL,
	submission_id TEXT,
	usage         TEXT NOT NULL,
	cost_usd      REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_submission ON extraction_runs(submission_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_assessments_submission ON assessments(submission_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = model.SubmissionStatusUploaded
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, student_id, student_name, assignment_id, status, body_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.StudentID, sub.StudentName, sub.AssignmentID, string(sub.Status), sub.BodyText, sub.CreatedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert submission")
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, student_name, assignment_id, status, body_text, created_at, updated_at
		 FROM submissions WHERE id = ?`,
		id,
	)

	var sub model.Submission
	err := row.Scan(&sub.ID, &sub.StudentID, &sub.StudentName, &sub.AssignmentID, &sub.Status, &sub.BodyText, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get submission %s", id)
	}
	return &sub, nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT id, student_id, student_name, assignment_id, status, body_text, created_at, updated_at
	          FROM submissions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssignmentID != "" {
		query += ` AND assignment_id = ?`
		args = append(args, filter.AssignmentID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list submissions")
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.StudentID, &sub.StudentName, &sub.AssignmentID, &sub.Status, &sub.BodyText, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan submission")
		}
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "sqlite: list submissions iterate")
}

func (s *SQLiteStore) SetSubmissionStatus(ctx context.Context, id string, status model.SubmissionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update submission status %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) BeginAssessing(ctx context.Context, id string, from []model.SubmissionStatus) (bool, error) {
	placeholders := make([]string, len(from))
	args := []any{string(model.SubmissionStatusAssessing), time.Now().UTC(), id}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: begin assessing %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) PutUnit(ctx context.Context, unit *model.Unit) error {
	doc, err := json.Marshal(unit)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal unit")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO units (id, doc) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET doc = excluded.doc`,
		unit.ID, string(doc),
	)
	return eris.Wrap(err, "sqlite: put unit")
}

func (s *SQLiteStore) GetUnit(ctx context.Context, id string) (*model.Unit, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM units WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get unit %s", id)
	}

	var unit model.Unit
	if err := json.Unmarshal([]byte(doc), &unit); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal unit")
	}
	return &unit, nil
}

func (s *SQLiteStore) PutBrief(ctx context.Context, brief *model.AssignmentBrief) error {
	doc, err := json.Marshal(brief)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal brief")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO briefs (id, assignment_code, doc) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET assignment_code = excluded.assignment_code, doc = excluded.doc`,
		brief.ID, brief.AssignmentCode, string(doc),
	)
	return eris.Wrap(err, "sqlite: put brief")
}

func (s *SQLiteStore) GetBriefByAssignment(ctx context.Context, assignmentCode string) (*model.AssignmentBrief, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM briefs WHERE assignment_code = ?`, assignmentCode).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get brief for %s", assignmentCode)
	}

	var brief model.AssignmentBrief
	if err := json.Unmarshal([]byte(doc), &brief); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal brief")
	}
	return &brief, nil
}

func (s *SQLiteStore) PutExtractionRun(ctx context.Context, run *model.ExtractionRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extraction run")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_runs (id, submission_id, doc, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.SubmissionID, string(doc), run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: put extraction run")
}

func (s *SQLiteStore) LatestExtractionRun(ctx context.Context, submissionID string) (*model.ExtractionRun, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM extraction_runs WHERE submission_id = ? ORDER BY created_at DESC LIMIT 1`,
		submissionID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest extraction run for %s", submissionID)
	}

	var run model.ExtractionRun
	if err := json.Unmarshal([]byte(doc), &run); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal extraction run")
	}
	return &run, nil
}

func (s *SQLiteStore) CompleteGrading(ctx context.Context, a *model.Assessment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal assessment result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assessments (id, submission_id, grade, feedback, annotated_pdf, assessor_id, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SubmissionID, string(a.Grade), a.Feedback, a.AnnotatedPDF, a.AssessorID, string(result), a.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert assessment")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.SubmissionStatusDone), time.Now().UTC(), a.SubmissionID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark submission done")
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit grading")
}

func (s *SQLiteStore) GetAssessment(ctx context.Context, id string) (*model.Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, submission_id, grade, feedback, annotated_pdf, assessor_id, result, created_at
		 FROM assessments WHERE id = ?`,
		id,
	)
	return scanSQLiteAssessment(row)
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, submissionID string) ([]model.Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submission_id, grade, feedback, annotated_pdf, assessor_id, result, created_at
		 FROM assessments WHERE submission_id = ? ORDER BY created_at DESC`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assessments")
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		a, err := scanSQLiteAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assessments iterate")
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, rec *model.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	usageJSON, err := json.Marshal(rec.Usage)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal usage")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_log (id, model, operation, submission_id, usage, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Model, rec.Operation, rec.SubmissionID, string(usageJSON), rec.CostUSD, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: record usage")
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteAssessment(row scannable) (*model.Assessment, error) {
	var a model.Assessment
	var result string

	err := row.Scan(&a.ID, &a.SubmissionID, &a.Grade, &a.Feedback, &a.AnnotatedPDF, &a.AssessorID, &result, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan assessment")
	}

	if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal assessment result")
	}
	return &a, nil
}
