// Package sweep runs the daily gift card email sweeps: delivery of digital
// cards whose delivery date has arrived, and expiry reminders ahead of a
// card's expiration date.
package sweep

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/models"
	"github.com/lumenshop/giftcards/internal/settings"

	"github.com/shopspring/decimal"
)

// Sweeper periodically runs the delivery and reminder sweeps. Each sweep
// runs at most once per calendar day regardless of the tick interval.
type Sweeper struct {
	svc      *giftcard.Service
	notifier giftcard.Notifier

	mu         sync.Mutex
	lastRunDay time.Time
}

// NewSweeper constructs a sweeper, or nil when dependencies are missing.
func NewSweeper(svc *giftcard.Service, notifier giftcard.Notifier) *Sweeper {
	if svc == nil || notifier == nil {
		return nil
	}
	return &Sweeper{svc: svc, notifier: notifier}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("gift card sweeper started (interval=%s)", settings.SweepInterval())
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx)

		interval := settings.SweepInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// tick runs both sweeps if they have not run yet today.
func (s *Sweeper) tick(ctx context.Context) {
	today := giftcard.DateOnly(time.Now())

	s.mu.Lock()
	if s.lastRunDay.Equal(today) {
		s.mu.Unlock()
		return
	}
	s.lastRunDay = today
	s.mu.Unlock()

	s.RunDeliveries(ctx, today)
	s.RunReminders(ctx, settings.ExpiryReminderDays())
}

// RunDeliveries emails digital cards whose delivery date is the given day.
func (s *Sweeper) RunDeliveries(ctx context.Context, day time.Time) {
	cards, errDue := s.svc.DueForDelivery(ctx, day)
	if errDue != nil {
		log.WithError(errDue).Warn("sweep: delivery query failed")
		return
	}
	for i := range cards {
		card := &cards[i]
		if errNotify := s.notifier.DeliverGiftCard(ctx, card); errNotify != nil {
			log.WithError(errNotify).WithField("code", card.Code).Warn("sweep: delivery notification failed")
		}
	}
	if len(cards) > 0 {
		log.Infof("sweep: delivered %d gift card emails", len(cards))
	}
}

// RunReminders emails cards expiring within the reminder window. A card is
// reminded at most once, gated on its expiration_reminder_sent log entry.
func (s *Sweeper) RunReminders(ctx context.Context, daysBefore int) int {
	cards, errDue := s.svc.DueForReminder(ctx, daysBefore)
	if errDue != nil {
		log.WithError(errDue).Warn("sweep: reminder query failed")
		return 0
	}

	sent := 0
	activity := s.svc.Activity()
	for i := range cards {
		card := &cards[i]
		already, errCheck := activity.HasReminderFor(ctx, card.Code)
		if errCheck != nil {
			log.WithError(errCheck).WithField("code", card.Code).Warn("sweep: reminder lookup failed")
			continue
		}
		if already {
			continue
		}
		if errNotify := s.notifier.RemindExpiry(ctx, card); errNotify != nil {
			log.WithError(errNotify).WithField("code", card.Code).Warn("sweep: reminder notification failed")
			continue
		}
		code := card.Code
		activity.Record(ctx, models.ActionReminderSent, &code, decimal.NullDecimal{}, card.UserID)
		sent++
	}
	if sent > 0 {
		log.Infof("sweep: sent %d expiry reminders", sent)
	}
	return sent
}
