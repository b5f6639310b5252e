// Package store provides in-memory rent.Source implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/rent-engine/rent"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	tenancies map[rent.OwnerID][]rent.Tenancy
	payments  map[rent.TenancyID][]rent.PaymentRecord
	owners    map[rent.TenancyID]rent.OwnerID
}

var _ rent.Source = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tenancies: make(map[rent.OwnerID][]rent.Tenancy),
		payments:  make(map[rent.TenancyID][]rent.PaymentRecord),
		owners:    make(map[rent.TenancyID]rent.OwnerID),
	}
}

// PutTenancy inserts or replaces a tenancy. Replacement keeps its position.
func (m *Memory) PutTenancy(t rent.Tenancy) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.tenancies[t.OwnerID]
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return
		}
	}
	m.tenancies[t.OwnerID] = append(list, t)
	m.owners[t.ID] = t.OwnerID
}

// PutPayment records a payment. Payments are kept sorted by reference date.
func (m *Memory) PutPayment(p rent.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owners[p.TenancyID]; !ok {
		return rent.ErrTenancyNotFound
	}

	ps := m.payments[p.TenancyID]
	i := sort.Search(len(ps), func(i int) bool {
		return ps[i].ReferenceDate.After(p.ReferenceDate)
	})
	ps = append(ps, rent.PaymentRecord{})
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	m.payments[p.TenancyID] = ps
	return nil
}

func (m *Memory) ListActiveTenancies(_ context.Context, owner rent.OwnerID) ([]rent.Tenancy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rent.Tenancy
	for _, t := range m.tenancies[owner] {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) PaymentsSince(_ context.Context, owner rent.OwnerID, since rent.Date) ([]rent.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []rent.PaymentRecord
	for _, t := range m.tenancies[owner] {
		for _, p := range m.payments[t.ID] {
			if p.ReferenceDate.AfterOrEqual(since) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}
