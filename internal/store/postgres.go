package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/marker/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	student_id    TEXT NOT NULL,
	student_name  TEXT NOT NULL DEFAULT '',
	assignment_id TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'UPLOADED',
	body_text     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS units (
	id  TEXT PRIMARY KEY,
	doc JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS briefs (
	id              TEXT PRIMARY KEY,
	assignment_code TEXT NOT NULL UNIQUE,
	doc             JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_runs (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id),
	doc           JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assessments (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id),
	grade         TEXT NOT NULL,
	feedback      TEXT NOT NULL,
	annotated_pdf TEXT NOT NULL DEFAULT '',
	assessor_id   TEXT NOT NULL DEFAULT '',
	result        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_log (
	id            TEXT PRIMARY KEY,
	model         TEXT NOT NULL,
	operation     TEXT NOT NULL,
	submission_id TEXT,
	usage         JSONB NOT NULL,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_submission ON extraction_runs(submission_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_assessments_submission ON assessments(submission_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_usage_log_model ON usage_log(model);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = model.SubmissionStatusUploaded
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO submissions (id, student_id, student_name, assignment_id, status, body_text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.StudentID, sub.StudentName, sub.AssignmentID, string(sub.Status), sub.BodyText, sub.CreatedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert submission")
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, student_id, student_name, assignment_id, status, body_text, created_at, updated_at
		 FROM submissions WHERE id = $1`,
		id,
	)

	var sub model.Submission
	err := row.Scan(&sub.ID, &sub.StudentID, &sub.StudentName, &sub.AssignmentID, &sub.Status, &sub.BodyText, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get submission %s", id)
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT id, student_id, student_name, assignment_id, status, body_text, created_at, updated_at
	          FROM submissions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.AssignmentID != "" {
		args = append(args, filter.AssignmentID)
		query += ` AND assignment_id = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list submissions")
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.StudentID, &sub.StudentName, &sub.AssignmentID, &sub.Status, &sub.BodyText, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan submission")
		}
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "postgres: list submissions iterate")
}

func (s *PostgresStore) SetSubmissionStatus(ctx context.Context, id string, status model.SubmissionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update submission status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) BeginAssessing(ctx context.Context, id string, from []model.SubmissionStatus) (bool, error) {
	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`,
		string(model.SubmissionStatusAssessing), time.Now().UTC(), id, states,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: begin assessing %s", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) PutUnit(ctx context.Context, unit *model.Unit) error {
	doc, err := json.Marshal(unit)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal unit")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO units (id, doc) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`,
		unit.ID, doc,
	)
	return eris.Wrap(err, "postgres: put unit")
}

func (s *PostgresStore) GetUnit(ctx context.Context, id string) (*model.Unit, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM units WHERE id = $1`, id)

	var doc []byte
	err := row.Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get unit %s", id)
	}

	var unit model.Unit
	if err := json.Unmarshal(doc, &unit); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal unit")
	}
	return &unit, nil
}

func (s *PostgresStore) PutBrief(ctx context.Context, brief *model.AssignmentBrief) error {
	doc, err := json.Marshal(brief)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal brief")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO briefs (id, assignment_code, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET assignment_code = EXCLUDED.assignment_code, doc = EXCLUDED.doc`,
		brief.ID, brief.AssignmentCode, doc,
	)
	return eris.Wrap(err, "postgres: put brief")
}

func (s *PostgresStore) GetBriefByAssignment(ctx context.Context, assignmentCode string) (*model.AssignmentBrief, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM briefs WHERE assignment_code = $1`, assignmentCode)

	var doc []byte
	err := row.Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get brief for %s", assignmentCode)
	}

	var brief model.AssignmentBrief
	if err := json.Unmarshal(doc, &brief); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal brief")
	}
	return &brief, nil
}

func (s *PostgresStore) PutExtractionRun(ctx context.Context, run *model.ExtractionRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extraction run")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_runs (id, submission_id, doc, created_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.SubmissionID, doc, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: put extraction run")
}

func (s *PostgresStore) LatestExtractionRun(ctx context.Context, submissionID string) (*model.ExtractionRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT doc FROM extraction_runs WHERE submission_id = $1 ORDER BY created_at DESC LIMIT 1`,
		submissionID,
	)

	var doc []byte
	err := row.Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest extraction run for %s", submissionID)
	}

	var run model.ExtractionRun
	if err := json.Unmarshal(doc, &run); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal extraction run")
	}
	return &run, nil
}

func (s *PostgresStore) CompleteGrading(ctx context.Context, a *model.Assessment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal assessment result")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO assessments (id, submission_id, grade, feedback, annotated_pdf, assessor_id, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.SubmissionID, string(a.Grade), a.Feedback, a.AnnotatedPDF, a.AssessorID, result, a.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert assessment")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE submissions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(model.SubmissionStatusDone), time.Now().UTC(), a.SubmissionID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: mark submission done")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit grading")
}

func (s *PostgresStore) GetAssessment(ctx context.Context, id string) (*model.Assessment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, submission_id, grade, feedback, annotated_pdf, assessor_id, result, created_at
		 FROM assessments WHERE id = $1`,
		id,
	)
	return scanAssessment(row)
}

func (s *PostgresStore) ListAssessments(ctx context.Context, submissionID string) ([]model.Assessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, submission_id, grade, feedback, annotated_pdf, assessor_id, result, created_at
		 FROM assessments WHERE submission_id = $1 ORDER BY created_at DESC`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assessments")
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assessments iterate")
}

func (s *PostgresStore) RecordUsage(ctx context.Context, rec *model.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	usageJSON, err := json.Marshal(rec.Usage)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal usage")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO usage_log (id, model, operation, submission_id, usage, cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Model, rec.Operation, rec.SubmissionID, usageJSON, rec.CostUSD, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record usage")
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanAssessment(row pgScannable) (*model.Assessment, error) {
	var a model.Assessment
	var result []byte

	err := row.Scan(&a.ID, &a.SubmissionID, &a.Grade, &a.Feedback, &a.AnnotatedPDF, &a.AssessorID, &result, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan assessment")
	}

	if err := json.Unmarshal(result, &a.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal assessment result")
	}
	return &a, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
