package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spectraml/spectrajobs/internal/store"
	"github.com/spectraml/spectrajobs/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("spectrajobs_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func setupStore(t *testing.T) store.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	return store.NewPostgresStore(setupTestDB(t))
}

func createJob(t *testing.T, s store.Store, label string) *models.Job {
	t.Helper()
	id := uuid.New()
	job := &models.Job{
		ID:        id,
		DirPath:   "/JOBS/job_" + label + "_" + id.String(),
		Type:      models.JobTypeActiveML,
		Phase:     models.PhasePending,
		Label:     label,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func createLabelling(t *testing.T, s store.Store, jobID uuid.UUID, set models.SpectrumSet, filename string) *models.Labelling {
	t.Helper()
	l := &models.Labelling{
		ID:               uuid.New(),
		JobID:            jobID,
		SpectrumFilename: filename,
		SpectrumSet:      set,
	}
	require.NoError(t, s.CreateLabelling(context.Background(), l))
	return l
}

// --- Job Tests ---

func TestCreateAndGetJob(t *testing.T) {
	s := setupStore(t)

	job := createJob(t, s, "benzene")

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.PhasePending, got.Phase)
	assert.Equal(t, models.JobTypeActiveML, got.Type)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.EndedAt)
	assert.Nil(t, got.ExecutionDuration)
}

func TestGetJob_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateJobMeta(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")

	label := "toluene"
	got, err := s.UpdateJobMeta(context.Background(), job.ID, store.JobMetaPatch{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, "toluene", got.Label)
	assert.Nil(t, got.Description, "unpatched field stays unchanged")

	desc := "rerun with wider window"
	got, err = s.UpdateJobMeta(context.Background(), job.ID, store.JobMetaPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "toluene", got.Label)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
}

func TestUpdateJobMeta_NotFound(t *testing.T) {
	s := setupStore(t)

	label := "x"
	_, err := s.UpdateJobMeta(context.Background(), uuid.New(), store.JobMetaPatch{Label: &label})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitionPhase(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")

	got, err := s.TransitionPhase(context.Background(), job.ID,
		models.PhasePending, models.PhaseProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseProcessing, got.Phase)
}

func TestTransitionPhase_Conflict(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")

	_, err := s.TransitionPhase(context.Background(), job.ID,
		models.PhasePending, models.PhaseProcessing)
	require.NoError(t, err)

	// Second swap from PENDING must lose: the job already moved on.
	_, err = s.TransitionPhase(context.Background(), job.ID,
		models.PhasePending, models.PhaseProcessing)
	require.Error(t, err)

	var conflictErr *store.PhaseConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, models.PhaseProcessing, conflictErr.Current)
	assert.ErrorIs(t, err, store.ErrPhaseConflict)
}

func TestTransitionPhase_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.TransitionPhase(context.Background(), uuid.New(),
		models.PhasePending, models.PhaseProcessing)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitionPhase_WithExecutionMetrics(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")

	_, err := s.TransitionPhase(context.Background(), job.ID,
		models.PhasePending, models.PhaseProcessing)
	require.NoError(t, err)

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ended := started.Add(30 * time.Second)

	got, err := s.TransitionPhase(context.Background(), job.ID,
		models.PhaseProcessing, models.PhaseCompleted,
		store.WithExecutionMetrics(started, ended, 30.0))
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCompleted, got.Phase)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.EndedAt)
	require.NotNil(t, got.ExecutionDuration)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.EndedAt.Equal(ended))
	assert.Equal(t, 30.0, *got.ExecutionDuration)
}

func TestDeleteJobInPhases(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")

	err := s.DeleteJobInPhases(context.Background(), job.ID,
		[]models.Phase{models.PhasePending})
	require.NoError(t, err)

	_, err = s.GetJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteJobInPhases_Conflict(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")

	_, err := s.TransitionPhase(context.Background(), job.ID,
		models.PhasePending, models.PhaseProcessing)
	require.NoError(t, err)

	err = s.DeleteJobInPhases(context.Background(), job.ID,
		[]models.Phase{models.PhasePending, models.PhaseCompleted})
	assert.ErrorIs(t, err, store.ErrPhaseConflict)

	_, err = s.GetJob(context.Background(), job.ID)
	assert.NoError(t, err, "rejected delete must leave the row intact")
}

func TestDeleteJobInPhases_CascadesLabellings(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")
	l := createLabelling(t, s, job.ID, models.SpectrumSetOracle, "a.csv")

	err := s.DeleteJobInPhases(context.Background(), job.ID,
		[]models.Phase{models.PhasePending})
	require.NoError(t, err)

	_, err = s.GetLabelling(context.Background(), l.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListJobs_NewestFirst(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	older := createJob(t, s, "first")
	// Distinct created_at values so ordering is deterministic.
	time.Sleep(10 * time.Millisecond)
	newer := createJob(t, s, "second")

	jobs, err := s.ListJobs(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, newer.ID, jobs[0].ID)
	assert.Equal(t, older.ID, jobs[1].ID)

	total, err := s.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	page, err := s.ListJobs(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, older.ID, page[0].ID)
}

// --- Labelling Tests ---

func TestCreateLabelling_AbsentJob(t *testing.T) {
	s := setupStore(t)

	err := s.CreateLabelling(context.Background(), &models.Labelling{
		ID:               uuid.New(),
		JobID:            uuid.New(),
		SpectrumFilename: "a.csv",
		SpectrumSet:      models.SpectrumSetOracle,
	})
	assert.ErrorIs(t, err, store.ErrAbsentJob)
}

func TestCreateLabellingBatch_AllOrNothing(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	job := createJob(t, s, "benzene")

	good := &models.Labelling{
		ID: uuid.New(), JobID: job.ID,
		SpectrumFilename: "a.csv", SpectrumSet: models.SpectrumSetOracle,
	}
	orphan := &models.Labelling{
		ID: uuid.New(), JobID: uuid.New(),
		SpectrumFilename: "b.csv", SpectrumSet: models.SpectrumSetOracle,
	}

	err := s.CreateLabellingBatch(ctx, []*models.Labelling{good, orphan})
	assert.ErrorIs(t, err, store.ErrAbsentJob)

	// The valid row must have been rolled back with the rest.
	_, err = s.GetLabelling(ctx, good.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateLabellingBatch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	job := createJob(t, s, "benzene")

	batch := []*models.Labelling{
		{ID: uuid.New(), JobID: job.ID, SpectrumFilename: "a.csv", SpectrumSet: models.SpectrumSetOracle},
		{ID: uuid.New(), JobID: job.ID, SpectrumFilename: "b.csv", SpectrumSet: models.SpectrumSetCandidate, SequenceIteration: 1},
	}
	require.NoError(t, s.CreateLabellingBatch(ctx, batch))

	got, err := s.ListLabellingsByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdateLabelling(t *testing.T) {
	s := setupStore(t)
	job := createJob(t, s, "benzene")
	l := createLabelling(t, s, job.ID, models.SpectrumSetOracle, "a.csv")

	label := "benzene"
	got, err := s.UpdateLabelling(context.Background(), l.ID,
		store.LabellingPatch{UserLabel: &label})
	require.NoError(t, err)
	require.NotNil(t, got.UserLabel)
	assert.Equal(t, "benzene", *got.UserLabel)
	assert.Nil(t, got.UserComment)
}

func TestUpdateLabellingBatch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	job := createJob(t, s, "benzene")
	l1 := createLabelling(t, s, job.ID, models.SpectrumSetOracle, "a.csv")
	l2 := createLabelling(t, s, job.ID, models.SpectrumSetOracle, "b.csv")

	label := "benzene"
	comment := "noisy baseline"
	err := s.UpdateLabellingBatch(ctx,
		[]uuid.UUID{l1.ID, l2.ID},
		[]store.LabellingPatch{
			{UserLabel: &label},
			{UserComment: &comment},
		})
	require.NoError(t, err)

	got1, err := s.GetLabelling(ctx, l1.ID)
	require.NoError(t, err)
	require.NotNil(t, got1.UserLabel)
	assert.Equal(t, "benzene", *got1.UserLabel)
	assert.Nil(t, got1.UserComment)

	got2, err := s.GetLabelling(ctx, l2.ID)
	require.NoError(t, err)
	assert.Nil(t, got2.UserLabel)
	require.NotNil(t, got2.UserComment)
	assert.Equal(t, "noisy baseline", *got2.UserComment)
}

func TestUpdateLabellingBatch_UnknownIDRejectsAll(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	job := createJob(t, s, "benzene")
	l := createLabelling(t, s, job.ID, models.SpectrumSetOracle, "a.csv")

	label := "benzene"
	err := s.UpdateLabellingBatch(ctx,
		[]uuid.UUID{l.ID, uuid.New()},
		[]store.LabellingPatch{{UserLabel: &label}, {UserLabel: &label}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetLabelling(ctx, l.ID)
	require.NoError(t, err)
	assert.Nil(t, got.UserLabel, "no edit may survive a rejected batch")
}

func TestListLabellingsByJob_SetPriorityOrder(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	job := createJob(t, s, "benzene")

	// Inserted deliberately out of priority order.
	candidate := createLabelling(t, s, job.ID, models.SpectrumSetCandidate, "c.csv")
	oracle1 := createLabelling(t, s, job.ID, models.SpectrumSetOracle, "o1.csv")
	perf := createLabelling(t, s, job.ID, models.SpectrumSetPerformanceEstimation, "p.csv")
	oracle2 := createLabelling(t, s, job.ID, models.SpectrumSetOracle, "o2.csv")

	got, err := s.ListLabellingsByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, oracle1.ID, got[0].ID)
	assert.Equal(t, oracle2.ID, got[1].ID, "insertion order within a set")
	assert.Equal(t, perf.ID, got[2].ID)
	assert.Equal(t, candidate.ID, got[3].ID)
}

func TestListLabellingsByJob_ScopedToJob(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	jobA := createJob(t, s, "benzene")
	jobB := createJob(t, s, "toluene")
	createLabelling(t, s, jobA.ID, models.SpectrumSetOracle, "a.csv")
	createLabelling(t, s, jobB.ID, models.SpectrumSetOracle, "b.csv")

	got, err := s.ListLabellingsByJob(ctx, jobA.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, jobA.ID, got[0].JobID)
}
