package rent

import "time"

// =============================================================================
// CYCLE - One calendar month of billing
// =============================================================================

// Cycle is the calendar-month billing period [Start, End]. Rent for a
// tenancy falls due once per cycle, on its billing day.
type Cycle struct {
	Start Date
	End   Date
}

// CycleFor returns the cycle containing the given date.
func CycleFor(d Date) Cycle {
	return Cycle{
		Start: StartOfMonth(d.Year(), d.Month()),
		End:   EndOfMonth(d.Year(), d.Month()),
	}
}

// Contains returns true if the date is within the cycle [Start, End].
func (c Cycle) Contains(d Date) bool {
	return d.AfterOrEqual(c.Start) && d.BeforeOrEqual(c.End)
}

// Next returns the following calendar month.
func (c Cycle) Next() Cycle { return CycleFor(c.End.AddDays(1)) }

// Previous returns the preceding calendar month.
func (c Cycle) Previous() Cycle { return CycleFor(c.Start.AddDays(-1)) }

// DueDate returns the day rent falls due within this cycle.
func (c Cycle) DueDate(billingDay int) Date {
	return DueDateIn(c.Start.Year(), c.Start.Month(), billingDay)
}

func (c Cycle) String() string {
	return "[" + c.Start.String() + ", " + c.End.String() + "]"
}

// DueDateIn returns the billing day within the given month, clamped to the
// month's last day.
func DueDateIn(year int, month time.Month, billingDay int) Date {
	return NewDate(year, month, ClampDay(year, month, billingDay))
}

// =============================================================================
// FIRST DUE DATE - Proration by lease start
// =============================================================================

// FirstDueDate returns the first date rent is owed for a tenancy.
//
// A tenant who moves in on or before the billing day owes that same month.
// One who moves in after it owes nothing until the next month's billing day.
func FirstDueDate(t Tenancy) Date {
	start := t.LeaseStart
	year, month := start.Year(), start.Month()
	if start.Day() > t.BillingDay {
		next := StartOfMonth(year, month).AddMonths(1)
		year, month = next.Year(), next.Month()
	}
	return DueDateIn(year, month, t.BillingDay)
}

// firstWindowOpen reports whether the tenancy has reached its first payment
// window as of now. Before that no alert of any kind is produced.
func firstWindowOpen(now Date, t Tenancy) bool {
	first := FirstDueDate(t)
	switch {
	case now.MonthIndex() < first.MonthIndex():
		return false
	case now.MonthIndex() == first.MonthIndex() && now.Day() < first.Day():
		return false
	}
	return true
}

// =============================================================================
// PAYMENTS IN CYCLE
// =============================================================================

// PaidThisCycle returns the tenancies with a payment whose reference date is
// on or after the first day of now's month.
func PaidThisCycle(now Date, payments []PaymentRecord) PaidSet {
	since := CycleFor(now).Start
	paid := NewPaidSet()
	for _, p := range payments {
		if p.ReferenceDate.AfterOrEqual(since) {
			paid.Add(p.TenancyID)
		}
	}
	return paid
}
