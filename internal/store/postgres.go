package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spectraml/spectrajobs/pkg/models"
)

const jobColumns = `job_id, dir_path, type, phase, label, description, created_at, started_at, ended_at, execution_duration`

const labellingColumns = `labelling_id, job_id, spectrum_filename, spectrum_set, sequence_iteration, model_prediction, user_label, user_comment`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (job_id, dir_path, type, phase, label, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.DirPath, job.Type, job.Phase, job.Label, job.Description, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) UpdateJobMeta(ctx context.Context, id uuid.UUID, patch JobMetaPatch) (*models.Job, error) {
	sets := []string{}
	args := []any{id}
	argIdx := 2

	if patch.Label != nil {
		sets = append(sets, fmt.Sprintf("label = $%d", argIdx))
		args = append(args, *patch.Label)
		argIdx++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *patch.Description)
		argIdx++
	}
	if len(sets) == 0 {
		return s.GetJob(ctx, id)
	}

	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") +
		` WHERE job_id = $1 RETURNING ` + jobColumns
	row := s.pool.QueryRow(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update job meta: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) DeleteJobInPhases(ctx context.Context, id uuid.UUID, allowed []models.Phase) error {
	phases := make([]string, len(allowed))
	for i, p := range allowed {
		phases[i] = string(p)
	}

	// Labellings are removed by the ON DELETE CASCADE foreign key.
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE job_id = $1 AND phase = ANY($2)`, id, phases)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.phaseFailure(ctx, id)
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, offset, limit int) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 ORDER BY created_at DESC, job_id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) CountJobs(ctx context.Context) (int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return total, nil
}

// TransitionPhase applies a compare-and-swap phase update: the write succeeds
// only if the job is still in the required phase, so two concurrent callers
// can never both observe the same precondition and both win.
func (s *PostgresStore) TransitionPhase(ctx context.Context, id uuid.UUID, from, to models.Phase, opts ...TransitionOption) (*models.Job, error) {
	params := &transitionParams{}
	for _, opt := range opts {
		opt(params)
	}

	query := `UPDATE jobs SET phase = $3`
	args := []any{id, from, to}
	argIdx := 4

	if params.StartedAt != nil {
		query += fmt.Sprintf(", started_at = $%d, ended_at = $%d, execution_duration = $%d",
			argIdx, argIdx+1, argIdx+2)
		args = append(args, *params.StartedAt, *params.EndedAt, *params.ExecutionDuration)
	}
	query += ` WHERE job_id = $1 AND phase = $2 RETURNING ` + jobColumns

	row := s.pool.QueryRow(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.phaseFailure(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("transition phase: %w", err)
	}
	return job, nil
}

// phaseFailure distinguishes a missing job from one in a disallowed phase
// after a conditional write matched no rows.
func (s *PostgresStore) phaseFailure(ctx context.Context, id uuid.UUID) error {
	var current models.Phase
	err := s.pool.QueryRow(ctx, `SELECT phase FROM jobs WHERE job_id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job phase: %w", err)
	}
	return &PhaseConflictError{JobID: id, Current: current}
}

// --- Labellings ---

func (s *PostgresStore) CreateLabelling(ctx context.Context, l *models.Labelling) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO labellings (labelling_id, job_id, spectrum_filename, spectrum_set, sequence_iteration, model_prediction, user_label, user_comment)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.JobID, l.SpectrumFilename, l.SpectrumSet, l.SequenceIteration,
		l.ModelPrediction, l.UserLabel, l.UserComment)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrAbsentJob
		}
		return fmt.Errorf("create labelling: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateLabellingBatch(ctx context.Context, batch []*models.Labelling) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin labelling batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, l := range batch {
		_, err := tx.Exec(ctx,
			`INSERT INTO labellings (labelling_id, job_id, spectrum_filename, spectrum_set, sequence_iteration, model_prediction, user_label, user_comment)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			l.ID, l.JobID, l.SpectrumFilename, l.SpectrumSet, l.SequenceIteration,
			l.ModelPrediction, l.UserLabel, l.UserComment)
		if err != nil {
			if isForeignKeyError(err) {
				return ErrAbsentJob
			}
			return fmt.Errorf("create labelling batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit labelling batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLabelling(ctx context.Context, id uuid.UUID) (*models.Labelling, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+labellingColumns+` FROM labellings WHERE labelling_id = $1`, id)
	l, err := scanLabelling(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get labelling: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) UpdateLabelling(ctx context.Context, id uuid.UUID, patch LabellingPatch) (*models.Labelling, error) {
	sets := []string{}
	args := []any{id}
	argIdx := 2

	if patch.UserLabel != nil {
		sets = append(sets, fmt.Sprintf("user_label = $%d", argIdx))
		args = append(args, *patch.UserLabel)
		argIdx++
	}
	if patch.UserComment != nil {
		sets = append(sets, fmt.Sprintf("user_comment = $%d", argIdx))
		args = append(args, *patch.UserComment)
		argIdx++
	}
	if len(sets) == 0 {
		return s.GetLabelling(ctx, id)
	}

	query := `UPDATE labellings SET ` + strings.Join(sets, ", ") +
		` WHERE labelling_id = $1 RETURNING ` + labellingColumns
	row := s.pool.QueryRow(ctx, query, args...)
	l, err := scanLabelling(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update labelling: %w", err)
	}
	return l, nil
}

// UpdateLabellingBatch verifies every id exists before applying any edit,
// then applies all edits in one transaction. A single unknown id rejects the
// whole batch with ErrNotFound.
func (s *PostgresStore) UpdateLabellingBatch(ctx context.Context, ids []uuid.UUID, patches []LabellingPatch) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin labelling batch update: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM labellings WHERE labelling_id = ANY($1)`, ids).Scan(&existing)
	if err != nil {
		return fmt.Errorf("verify labelling batch: %w", err)
	}
	if existing != len(ids) {
		return ErrNotFound
	}

	for i, id := range ids {
		_, err := tx.Exec(ctx,
			`UPDATE labellings SET
			   user_label = COALESCE($2, user_label),
			   user_comment = COALESCE($3, user_comment)
			 WHERE labelling_id = $1`,
			id, patches[i].UserLabel, patches[i].UserComment)
		if err != nil {
			return fmt.Errorf("update labelling batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit labelling batch update: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLabellingsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Labelling, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+labellingColumns+` FROM labellings WHERE job_id = $1
		 ORDER BY CASE spectrum_set
		   WHEN 'ORACLE' THEN 1
		   WHEN 'PERFORMANCE_ESTIMATION' THEN 2
		   WHEN 'CANDIDATE' THEN 3
		   ELSE 4
		 END, seq ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list labellings by job: %w", err)
	}
	defer rows.Close()

	var labellings []*models.Labelling
	for rows.Next() {
		l, err := scanLabelling(rows)
		if err != nil {
			return nil, fmt.Errorf("scan labelling: %w", err)
		}
		labellings = append(labellings, l)
	}
	return labellings, rows.Err()
}

// --- scanning ---

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.DirPath, &j.Type, &j.Phase, &j.Label, &j.Description,
		&j.CreatedAt, &j.StartedAt, &j.EndedAt, &j.ExecutionDuration)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanLabelling(row pgx.Row) (*models.Labelling, error) {
	var l models.Labelling
	err := row.Scan(&l.ID, &l.JobID, &l.SpectrumFilename, &l.SpectrumSet,
		&l.SequenceIteration, &l.ModelPrediction, &l.UserLabel, &l.UserComment)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// isForeignKeyError checks if a pgx error is a foreign key violation.
func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}
