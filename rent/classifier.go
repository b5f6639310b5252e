/*
classifier.go - Rent-due classification

PURPOSE:
  Turns an owner's portfolio into dashboard alerts. Each active, unpaid
  tenancy whose first payment window has opened is classified as overdue,
  upcoming (due within the window), or left alone.

RULES (per tenancy):
  1. Paid this cycle: no alert.
  2. Proration gate: no alert before the first due date. A tenant who moved
     in after the billing day owes nothing until next month's billing day.
  3. billingDay < today                    -> overdue
     today <= billingDay <= today + window -> upcoming
     otherwise                             -> nothing

  A billing day past the end of the current month is clamped to its last
  day before both the gate and the comparison, and the alert's DueDay is the
  clamped day: billing day 31 in February 2023 reports DueDay 28.

WINDOW MODES:
  ModeDayOfMonth (default) compares day-of-month numbers only, so it does not
  wrap across a month boundary: with today = 30 a billing day of 3 is not
  "upcoming" even though it is four days away.

  ModeCalendar measures real days to the next due date. An unpaid tenancy
  whose first due date is next month gets an upcoming alert when that date
  falls inside the window. A paid tenancy never alerts in either mode.

ORDERING:
  Overdue alerts first, then upcoming; ascending due day within each group;
  input order breaks ties.

SEE ALSO:
  - cycle.go: FirstDueDate, DueDateIn, PaidThisCycle
  - errors.go: Validate
*/
package rent

import (
	"io"
	"sort"

	"github.com/sirupsen/logrus"
)

// DefaultWindow is how many days ahead a due date counts as upcoming.
const DefaultWindow = 5

// WindowMode selects how "days until due" is measured.
type WindowMode string

const (
	ModeDayOfMonth WindowMode = "day_of_month"
	ModeCalendar   WindowMode = "calendar"
)

// ParseWindowMode maps a config value onto a WindowMode.
func ParseWindowMode(s string) (WindowMode, bool) {
	switch WindowMode(s) {
	case ModeDayOfMonth, "":
		return ModeDayOfMonth, true
	case ModeCalendar:
		return ModeCalendar, true
	}
	return ModeDayOfMonth, false
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier holds classification options. The zero value is not usable;
// build one with NewClassifier. A Classifier has no mutable state and is
// safe for concurrent use.
type Classifier struct {
	Window int
	Mode   WindowMode
	Log    logrus.FieldLogger
}

type Option func(*Classifier)

func WithWindow(days int) Option             { return func(c *Classifier) { c.Window = days } }
func WithMode(mode WindowMode) Option        { return func(c *Classifier) { c.Mode = mode } }
func WithLogger(l logrus.FieldLogger) Option { return func(c *Classifier) { c.Log = l } }

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		Window: DefaultWindow,
		Mode:   ModeDayOfMonth,
		Log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Window < 0 {
		c.Window = 0
	}
	if c.Log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		c.Log = quiet
	}
	return c
}

var defaultClassifier = NewClassifier()

// Classify runs the default classifier (5-day window, day-of-month mode).
func Classify(now Date, tenancies []Tenancy, paid PaidSet) []Alert {
	return defaultClassifier.Classify(now, tenancies, paid)
}

// Report is the full result of a classification run.
type Report struct {
	Alerts     []Alert
	Skipped    []*InvalidTenancyError
	Considered int
}

// Classify returns the ordered alerts for the portfolio. Invalid tenancies
// are skipped with a warning.
func (c *Classifier) Classify(now Date, tenancies []Tenancy, paid PaidSet) []Alert {
	return c.ClassifyReport(now, tenancies, paid).Alerts
}

// ClassifyReport is Classify plus the tenancies that failed validation.
func (c *Classifier) ClassifyReport(now Date, tenancies []Tenancy, paid PaidSet) Report {
	report := Report{Alerts: []Alert{}}

	for _, t := range tenancies {
		if !t.Active {
			continue
		}
		if err := Validate(t); err != nil {
			invalid := err.(*InvalidTenancyError)
			report.Skipped = append(report.Skipped, invalid)
			c.Log.WithFields(logrus.Fields{
				"tenancy_id": t.ID,
				"owner_id":   t.OwnerID,
			}).WithError(invalid.Err).Warn("skipping invalid tenancy")
			continue
		}
		report.Considered++

		var (
			alert Alert
			ok    bool
		)
		if c.Mode == ModeCalendar {
			alert, ok = c.classifyCalendar(now, t, paid.Has(t.ID))
		} else {
			alert, ok = c.classifyDayOfMonth(now, t, paid.Has(t.ID))
		}
		if ok {
			report.Alerts = append(report.Alerts, alert)
		}
	}

	SortAlerts(report.Alerts)
	return report
}

// classifyDayOfMonth reports DueDay as the billing day clamped to now's month.
func (c *Classifier) classifyDayOfMonth(now Date, t Tenancy, paid bool) (Alert, bool) {
	if paid || !firstWindowOpen(now, t) {
		return Alert{}, false
	}

	today := now.Day()
	due := ClampDay(now.Year(), now.Month(), t.BillingDay)
	switch {
	case due < today:
		return newAlert(t, KindOverdue, due), true
	case due <= today+c.Window:
		return newAlert(t, KindUpcoming, due), true
	}
	return Alert{}, false
}

func (c *Classifier) classifyCalendar(now Date, t Tenancy, paid bool) (Alert, bool) {
	if paid {
		return Alert{}, false
	}

	first := FirstDueDate(t)
	cycle := CycleFor(now)
	thisDue := cycle.DueDate(t.BillingDay)

	if thisDue.Before(now) && thisDue.AfterOrEqual(first) {
		return newAlert(t, KindOverdue, thisDue.Day()), true
	}

	target := thisDue
	if thisDue.Before(now) {
		target = cycle.Next().DueDate(t.BillingDay)
	}
	if target.Before(first) {
		return Alert{}, false
	}
	if days := DaysBetween(now, target); days >= 0 && days <= c.Window {
		return newAlert(t, KindUpcoming, target.Day()), true
	}
	return Alert{}, false
}

func newAlert(t Tenancy, kind AlertKind, dueDay int) Alert {
	return Alert{
		ID:            alertID(kind, t.ID),
		TenancyID:     t.ID,
		TenantName:    t.TenantName,
		PropertyLabel: t.PropertyLabel,
		DueDay:        dueDay,
		Kind:          kind,
		Amount:        t.MonthlyRent.Value,
		Currency:      t.MonthlyRent.Currency,
	}
}

// SortAlerts orders alerts overdue-first, then by ascending due day. The sort
// is stable so equal keys keep their input order.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := kindRank(alerts[i].Kind), kindRank(alerts[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return alerts[i].DueDay < alerts[j].DueDay
	})
}

func kindRank(k AlertKind) int {
	if k == KindOverdue {
		return 0
	}
	return 1
}
