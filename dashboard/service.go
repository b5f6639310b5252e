// Package dashboard serves an owner's alert list and summary cards.
//
// It glues a rent.Source to the classifier and an alert cache. Cache failures
// are logged and never fail a request; source failures are returned wrapped.
package dashboard

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/rent-engine/cache"
	"github.com/warp/rent-engine/rent"
)

type Service struct {
	Source     rent.Source
	Cache      cache.AlertCache
	Classifier *rent.Classifier
	Log        logrus.FieldLogger
}

// NewService fills nil collaborators with defaults: no cache, the default
// classifier, and a discarding logger.
func NewService(source rent.Source, c cache.AlertCache, classifier *rent.Classifier, log logrus.FieldLogger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if classifier == nil {
		classifier = rent.NewClassifier()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Service{Source: source, Cache: c, Classifier: classifier, Log: log}
}

// Summary backs the dashboard header cards.
type Summary struct {
	OwnerID         rent.OwnerID    `json:"owner_id"`
	Date            rent.Date       `json:"date"`
	Currency        string          `json:"currency"`
	ActiveTenancies int             `json:"active_tenancies"`
	PaidCount       int             `json:"paid_count"`
	OverdueCount    int             `json:"overdue_count"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
	UpcomingCount   int             `json:"upcoming_count"`
	UpcomingAmount  decimal.Decimal `json:"upcoming_amount"`
	Collected       decimal.Decimal `json:"collected"`
	SkippedCount    int             `json:"skipped_count"`
	Alerts          []rent.Alert    `json:"alerts"`
}

// snapshot is the owner's portfolio as of now.
type snapshot struct {
	tenancies []rent.Tenancy
	payments  []rent.PaymentRecord
	paid      rent.PaidSet
}

func (s *Service) load(ctx context.Context, owner rent.OwnerID, now rent.Date) (*snapshot, error) {
	tenancies, err := s.Source.ListActiveTenancies(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenancies for %s: %w", owner, err)
	}
	payments, err := s.Source.PaymentsSince(ctx, owner, rent.CycleFor(now).Start)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for %s: %w", owner, err)
	}
	return &snapshot{
		tenancies: tenancies,
		payments:  payments,
		paid:      rent.PaidThisCycle(now, payments),
	}, nil
}

// Alerts returns the owner's ordered alert list for now, read through the cache.
// The cache version is taken before loading so that a list computed from data
// an Invalidate has since replaced is stored under a version nobody reads.
func (s *Service) Alerts(ctx context.Context, owner rent.OwnerID, now rent.Date) ([]rent.Alert, error) {
	log := s.Log.WithFields(logrus.Fields{"owner_id": owner, "date": now.String()})

	version, err := s.Cache.Version(ctx, owner)
	cached := err == nil
	if err != nil {
		log.WithError(err).Warn("alert cache version read failed")
	}

	if cached {
		if alerts, ok, err := s.Cache.Get(ctx, owner, version, now); err != nil {
			log.WithError(err).Warn("alert cache read failed")
		} else if ok {
			return alerts, nil
		}
	}

	snap, err := s.load(ctx, owner, now)
	if err != nil {
		return nil, err
	}
	alerts := s.Classifier.Classify(now, snap.tenancies, snap.paid)

	if cached {
		if err := s.Cache.Set(ctx, owner, version, now, alerts); err != nil {
			log.WithError(err).Warn("alert cache write failed")
		}
	}
	return alerts, nil
}

// Report classifies without the cache and keeps the skipped tenancies.
func (s *Service) Report(ctx context.Context, owner rent.OwnerID, now rent.Date) (rent.Report, error) {
	snap, err := s.load(ctx, owner, now)
	if err != nil {
		return rent.Report{}, err
	}
	return s.Classifier.ClassifyReport(now, snap.tenancies, snap.paid), nil
}

// Summary computes the dashboard cards. Amounts are summed in the currency of
// the owner's first tenancy; other currencies are left out of the totals.
func (s *Service) Summary(ctx context.Context, owner rent.OwnerID, now rent.Date) (Summary, error) {
	snap, err := s.load(ctx, owner, now)
	if err != nil {
		return Summary{}, err
	}
	report := s.Classifier.ClassifyReport(now, snap.tenancies, snap.paid)

	sum := Summary{
		OwnerID:         owner,
		Date:            now,
		Currency:        rent.DefaultCurrency,
		ActiveTenancies: len(snap.tenancies),
		OverdueAmount:   decimal.Zero,
		UpcomingAmount:  decimal.Zero,
		Collected:       decimal.Zero,
		SkippedCount:    len(report.Skipped),
		Alerts:          report.Alerts,
	}
	if len(snap.tenancies) > 0 && snap.tenancies[0].MonthlyRent.Currency != "" {
		sum.Currency = snap.tenancies[0].MonthlyRent.Currency
	}

	for _, t := range snap.tenancies {
		if snap.paid.Has(t.ID) {
			sum.PaidCount++
		}
	}
	for _, a := range report.Alerts {
		switch a.Kind {
		case rent.KindOverdue:
			sum.OverdueCount++
			if a.Currency == sum.Currency {
				sum.OverdueAmount = sum.OverdueAmount.Add(a.Amount)
			}
		case rent.KindUpcoming:
			sum.UpcomingCount++
			if a.Currency == sum.Currency {
				sum.UpcomingAmount = sum.UpcomingAmount.Add(a.Amount)
			}
		}
	}
	for _, p := range snap.payments {
		if p.Amount.Currency == sum.Currency || p.Amount.Currency == "" {
			sum.Collected = sum.Collected.Add(p.Amount.Value)
		}
	}
	return sum, nil
}

// Invalidate drops cached alerts after a tenancy or payment write.
func (s *Service) Invalidate(ctx context.Context, owner rent.OwnerID) {
	if err := s.Cache.Invalidate(ctx, owner); err != nil {
		s.Log.WithField("owner_id", owner).WithError(err).Warn("alert cache invalidation failed")
	}
}
