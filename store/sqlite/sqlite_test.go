package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveOwner(context.Background(), sqlite.Owner{ID: "owner-1", Name: "Dana Owner"}))
	return store
}

func testTenancy(id string, billingDay int) rent.Tenancy {
	return rent.Tenancy{
		ID:            rent.TenancyID(id),
		OwnerID:       "owner-1",
		TenantName:    "Tenant " + id,
		PropertyLabel: "12 Elm St, Unit " + id,
		BillingDay:    billingDay,
		MonthlyRent:   rent.MustParseAmount("1450.50", "USD"),
		LeaseStart:    rent.NewDate(2023, time.September, 1),
		Active:        true,
	}
}

func payment(id, tenancy string, date rent.Date) rent.PaymentRecord {
	return rent.PaymentRecord{
		ID:            id,
		TenancyID:     rent.TenancyID(tenancy),
		Amount:        rent.MustParseAmount("1450.50", "USD"),
		ReferenceDate: date,
		ReceiptNumber: "RCPT-" + id,
	}
}

// =============================================================================
// OWNERS
// =============================================================================

func TestOwner_SaveGetList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveOwner(ctx, sqlite.Owner{ID: "owner-0", Name: "Alex", Email: "alex@example.com"}))

	o, err := store.GetOwner(ctx, "owner-0")
	require.NoError(t, err)
	assert.Equal(t, "Alex", o.Name)
	assert.Equal(t, "alex@example.com", o.Email)

	owners, err := store.ListOwners(ctx)
	require.NoError(t, err)
	require.Len(t, owners, 2)
	assert.Equal(t, "Alex", owners[0].Name, "owners are ordered by name")

	_, err = store.GetOwner(ctx, "nobody")
	assert.ErrorIs(t, err, rent.ErrOwnerNotFound)
	assert.True(t, rent.IsNotFound(err))
}

// =============================================================================
// TENANCIES
// =============================================================================

func TestTenancy_RoundTripKeepsDecimalAndDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTenancy(ctx, testTenancy("t1", 28)))

	got, err := store.GetTenancy(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 28, got.BillingDay)
	assert.Equal(t, "1450.50", got.MonthlyRent.Value.StringFixed(2))
	assert.Equal(t, "USD", got.MonthlyRent.Currency)
	assert.Equal(t, rent.NewDate(2023, time.September, 1), got.LeaseStart)
	assert.True(t, got.Active)
}

func TestTenancy_ActiveListInCreationOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTenancy(ctx, testTenancy("zeta", 5)))
	require.NoError(t, store.SaveTenancy(ctx, testTenancy("alpha", 10)))
	require.NoError(t, store.SaveTenancy(ctx, testTenancy("mid", 15)))
	require.NoError(t, store.SetTenancyActive(ctx, "mid", false))

	// Updating a tenancy must not move it to the end.
	updated := testTenancy("zeta", 6)
	require.NoError(t, store.SaveTenancy(ctx, updated))

	active, err := store.ListActiveTenancies(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, rent.TenancyID("zeta"), active[0].ID)
	assert.Equal(t, 6, active[0].BillingDay)
	assert.Equal(t, rent.TenancyID("alpha"), active[1].ID)

	all, err := store.ListTenancies(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTenancy_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveTenancy(ctx, testTenancy("bad", 32))
	assert.ErrorIs(t, err, rent.ErrInvalidBillingDay)

	orphan := testTenancy("orphan", 3)
	orphan.OwnerID = "missing-owner"
	err = store.SaveTenancy(ctx, orphan)
	assert.ErrorIs(t, err, rent.ErrOwnerNotFound)

	_, err = store.GetTenancy(ctx, "nope")
	assert.ErrorIs(t, err, rent.ErrTenancyNotFound)

	err = store.SetTenancyActive(ctx, "nope", false)
	assert.ErrorIs(t, err, rent.ErrTenancyNotFound)
}

func TestTenancy_SaveUnderAnotherOwnerConflicts(t *testing.T) {
	// GIVEN: Tenancy x belongs to owner-1, and owner-2 exists
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTenancy(ctx, testTenancy("x", 10)))
	require.NoError(t, store.SaveOwner(ctx, sqlite.Owner{ID: "owner-2", Name: "Other"}))

	// WHEN: owner-2 saves a tenancy with the same ID
	hijack := testTenancy("x", 3)
	hijack.OwnerID = "owner-2"
	hijack.TenantName = "Hijack"
	err := store.SaveTenancy(ctx, hijack)

	// THEN: The save is rejected and owner-1's record is unchanged
	assert.ErrorIs(t, err, sqlite.ErrTenancyOwnerConflict)

	got, err := store.GetTenancy(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, rent.OwnerID("owner-1"), got.OwnerID)
	assert.Equal(t, "Tenant x", got.TenantName)
	assert.Equal(t, 10, got.BillingDay)

	others, err := store.ListActiveTenancies(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, others)

	// AND: The owner can still update its own tenancy
	update := testTenancy("x", 12)
	require.NoError(t, store.SaveTenancy(ctx, update))
	got, err = store.GetTenancy(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 12, got.BillingDay)
}

func TestTenancy_DeleteCascadesPayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTenancy(ctx, testTenancy("t1", 1)))
	require.NoError(t, store.SavePayment(ctx, payment("p1", "t1", rent.NewDate(2024, time.June, 1))))
	require.NoError(t, store.DeleteTenancy(ctx, "t1"))

	payments, err := store.ListPayments(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestPayments_SinceFiltersByOwnerAndDate(t *testing.T) {
	// GIVEN: Two owners with payments in May and June
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveOwner(ctx, sqlite.Owner{ID: "owner-2", Name: "Other"}))

	other := testTenancy("other", 1)
	other.OwnerID = "owner-2"
	require.NoError(t, store.SaveTenancy(ctx, testTenancy("t1", 1)))
	require.NoError(t, store.SaveTenancy(ctx, other))

	require.NoError(t, store.SavePayment(ctx, payment("may", "t1", rent.NewDate(2024, time.May, 31))))
	require.NoError(t, store.SavePayment(ctx, payment("june", "t1", rent.NewDate(2024, time.June, 1))))
	require.NoError(t, store.SavePayment(ctx, payment("other-june", "other", rent.NewDate(2024, time.June, 2))))

	// WHEN: Asking for owner-1 payments since June 1
	got, err := store.PaymentsSince(ctx, "owner-1", rent.NewDate(2024, time.June, 1))

	// THEN: Only owner-1's June payment is returned
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "june", got[0].ID)
	assert.Equal(t, "1450.5", got[0].Amount.Value.String())

	// AND: It drives the paid set for June
	paid := rent.PaidThisCycle(rent.NewDate(2024, time.June, 15), got)
	assert.True(t, paid.Has("t1"))
}

func TestPayments_DuplicateReceiptRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTenancy(ctx, testTenancy("t1", 1)))

	first := payment("p1", "t1", rent.NewDate(2024, time.June, 1))
	require.NoError(t, store.SavePayment(ctx, first))

	dup := payment("p2", "t1", rent.NewDate(2024, time.June, 2))
	dup.ReceiptNumber = first.ReceiptNumber
	assert.ErrorIs(t, store.SavePayment(ctx, dup), sqlite.ErrDuplicateReceipt)

	again := payment("p1", "t1", rent.NewDate(2024, time.June, 3))
	assert.ErrorIs(t, store.SavePayment(ctx, again), sqlite.ErrDuplicatePayment)

	orphan := payment("p3", "missing", rent.NewDate(2024, time.June, 1))
	assert.ErrorIs(t, store.SavePayment(ctx, orphan), rent.ErrTenancyNotFound)

	noDate := payment("p4", "t1", rent.Date{})
	assert.ErrorIs(t, store.SavePayment(ctx, noDate), rent.ErrInvalidDate)
}

func TestPayments_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTenancy(ctx, testTenancy("t1", 1)))

	require.NoError(t, store.SavePayment(ctx, payment("apr", "t1", rent.NewDate(2024, time.April, 1))))
	require.NoError(t, store.SavePayment(ctx, payment("jun", "t1", rent.NewDate(2024, time.June, 1))))
	require.NoError(t, store.SavePayment(ctx, payment("may", "t1", rent.NewDate(2024, time.May, 1))))

	got, err := store.ListPayments(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"jun", "may", "apr"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

// =============================================================================
// ALERT RUNS
// =============================================================================

func TestAlertRuns_UpsertPerOwnerAndDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := rent.NewDate(2024, time.June, 15)
	started := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)

	run := sqlite.AlertRun{ID: "run-1", OwnerID: "owner-1", RunDate: day, Status: "running", StartedAt: &started}
	require.NoError(t, store.SaveAlertRun(ctx, run))

	done, err := store.IsAlertRunComplete(ctx, "owner-1", day)
	require.NoError(t, err)
	assert.False(t, done)

	completed := started.Add(time.Second)
	run.Status = "completed"
	run.OverdueCount = 2
	run.UpcomingCount = 1
	run.CompletedAt = &completed
	require.NoError(t, store.SaveAlertRun(ctx, run))

	done, err = store.IsAlertRunComplete(ctx, "owner-1", day)
	require.NoError(t, err)
	assert.True(t, done)

	runs, err := store.GetAlertRuns(ctx, "completed")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].OverdueCount)
	assert.Equal(t, 1, runs[0].UpcomingCount)
	assert.Equal(t, day, runs[0].RunDate)
	require.NotNil(t, runs[0].CompletedAt)
	assert.True(t, completed.Equal(*runs[0].CompletedAt))

	failed, err := store.GetAlertRuns(ctx, "failed")
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTenancy(ctx, testTenancy("t1", 1)))

	require.NoError(t, store.Reset(ctx))

	owners, err := store.ListOwners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)
}
