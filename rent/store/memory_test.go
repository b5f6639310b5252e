package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/rent/store"
)

func TestMemory_ActiveTenanciesInInsertionOrder(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	m.PutTenancy(rent.Tenancy{ID: "b", OwnerID: "o1", Active: true})
	m.PutTenancy(rent.Tenancy{ID: "a", OwnerID: "o1", Active: true})
	m.PutTenancy(rent.Tenancy{ID: "gone", OwnerID: "o1", Active: false})
	m.PutTenancy(rent.Tenancy{ID: "other", OwnerID: "o2", Active: true})

	got, err := m.ListActiveTenancies(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rent.TenancyID("b"), got[0].ID)
	assert.Equal(t, rent.TenancyID("a"), got[1].ID)

	// Replacing keeps position.
	m.PutTenancy(rent.Tenancy{ID: "b", OwnerID: "o1", Active: true, TenantName: "Renamed"})
	got, _ = m.ListActiveTenancies(ctx, "o1")
	assert.Equal(t, "Renamed", got[0].TenantName)
}

func TestMemory_PaymentsSince(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	m.PutTenancy(rent.Tenancy{ID: "t1", OwnerID: "o1", Active: true})

	require.NoError(t, m.PutPayment(rent.PaymentRecord{ID: "p2", TenancyID: "t1", ReferenceDate: rent.NewDate(2024, time.June, 3)}))
	require.NoError(t, m.PutPayment(rent.PaymentRecord{ID: "p1", TenancyID: "t1", ReferenceDate: rent.NewDate(2024, time.May, 3)}))

	got, err := m.PaymentsSince(ctx, "o1", rent.NewDate(2024, time.June, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)

	err = m.PutPayment(rent.PaymentRecord{ID: "px", TenancyID: "missing"})
	assert.ErrorIs(t, err, rent.ErrTenancyNotFound)
}
