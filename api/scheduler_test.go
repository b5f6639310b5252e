package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rent-engine/dashboard"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqlite"
)

type brokenSource struct{}

func (brokenSource) ListActiveTenancies(context.Context, rent.OwnerID) ([]rent.Tenancy, error) {
	return nil, errors.New("backend unavailable")
}

func (brokenSource) PaymentsSince(context.Context, rent.OwnerID, rent.Date) ([]rent.PaymentRecord, error) {
	return nil, errors.New("backend unavailable")
}

func TestSweep_RecordsRunsOncePerDay(t *testing.T) {
	// GIVEN: Two owners, one with an overdue and an upcoming tenancy
	s := newTestServer(t, nil)
	s.seedOwner(t, "o1")
	s.seedOwner(t, "o2")
	s.seedTenancy(t, "o1", "t10", 10)
	s.seedTenancy(t, "o1", "t18", 18)

	// WHEN: The sweep runs twice on the same day
	first, err := s.handler.Scheduler.RunOnce(context.Background(), june15)
	require.NoError(t, err)
	second, err := s.handler.Scheduler.RunOnce(context.Background(), june15)
	require.NoError(t, err)

	// THEN: Each owner is processed once
	assert.Equal(t, SweepResult{Processed: 2}, first)
	assert.Equal(t, SweepResult{Skipped: 2}, second)

	runs, err := s.handler.Store.GetAlertRuns(context.Background(), RunCompleted)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, june15, r.RunDate)
		if r.OwnerID == "o1" {
			assert.Equal(t, 1, r.OverdueCount)
			assert.Equal(t, 1, r.UpcomingCount)
		}
		require.NotNil(t, r.CompletedAt)
	}

	// AND: A new day is swept again
	next, err := s.handler.Scheduler.RunOnce(context.Background(), june15.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, 2, next.Processed)
}

func TestSweep_FailedOwnerIsRecorded(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SaveOwner(context.Background(), sqlite.Owner{ID: "o1", Name: "Owner"}))

	svc := dashboard.NewService(brokenSource{}, nil, nil, quietLogger())
	sched := NewAlertScheduler(store, svc, quietLogger(), "0 8 * * *")

	result, err := sched.RunOnce(context.Background(), june15)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	runs, err := store.GetAlertRuns(context.Background(), RunFailed)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "backend unavailable")

	// A failed day is retried on the next sweep.
	result, err = sched.RunOnce(context.Background(), june15)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

// closingSource closes the store mid-sweep, after the running record is saved.
type closingSource struct {
	brokenSource
	store *sqlite.Store
}

func (c closingSource) ListActiveTenancies(ctx context.Context, owner rent.OwnerID) ([]rent.Tenancy, error) {
	c.store.Close()
	return c.brokenSource.ListActiveTenancies(ctx, owner)
}

func TestSweep_FailedRunRecordErrorIsLogged(t *testing.T) {
	// GIVEN: A sweep whose source fails and whose store goes away meanwhile
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.SaveOwner(context.Background(), sqlite.Owner{ID: "o1", Name: "Owner"}))

	log, hook := logtest.NewNullLogger()
	svc := dashboard.NewService(closingSource{store: store}, nil, nil, quietLogger())
	sched := NewAlertScheduler(store, svc, log, "0 8 * * *")

	// WHEN: The owner is swept
	result, err := sched.RunOnce(context.Background(), june15)
	require.NoError(t, err)

	// THEN: The owner counts as failed and the lost record is logged
	assert.Equal(t, 1, result.Failed)

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "failed to record failed alert run")
	assert.Contains(t, messages, "alert sweep failed for owner")
}

func TestSweep_TriggerEndpointAndAudit(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedOwner(t, "o1")
	s.seedTenancy(t, "o1", "t10", 10)

	rec := s.do(t, http.MethodPost, "/api/alert-runs/trigger", TriggerSweepRequest{Date: "2024-06-15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[SweepResultDTO](t, rec)
	assert.Equal(t, 1, result.Processed)

	rec = s.do(t, http.MethodGet, "/api/alert-runs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]AlertRunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "o1", runs[0].OwnerID)
	assert.Equal(t, 1, runs[0].OverdueCount)

	rec = s.do(t, http.MethodGet, "/api/alert-runs?status=failed", nil)
	assert.Empty(t, decode[[]AlertRunDTO](t, rec))
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestServer(t, nil)
	sched := s.handler.Scheduler

	assert.True(t, sched.NextRun().IsZero())
	require.NoError(t, sched.Start())
	next := sched.NextRun()
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, 8, next.Hour())
	sched.Stop()
	assert.True(t, sched.NextRun().IsZero())

	bad := NewAlertScheduler(s.handler.Store, s.handler.Dashboard, quietLogger(), "whenever")
	assert.Error(t, bad.Start())
}
