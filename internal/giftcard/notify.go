package giftcard

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/lumenshop/giftcards/internal/models"
	"github.com/lumenshop/giftcards/internal/settings"
)

// Notifier delivers gift card emails. The mail transport is a collaborator;
// the ledger only decides when a notification is due.
type Notifier interface {
	// DeliverGiftCard sends the issuance email for a digital card.
	DeliverGiftCard(ctx context.Context, card *models.GiftCard) error
	// RemindExpiry sends the pre-expiration reminder email.
	RemindExpiry(ctx context.Context, card *models.GiftCard) error
}

// LogNotifier writes notifications to the process log. It stands in for the
// mail subsystem in development and in tests.
type LogNotifier struct{}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

// DeliverGiftCard logs the issuance notification.
func (n *LogNotifier) DeliverGiftCard(_ context.Context, card *models.GiftCard) error {
	if card == nil {
		return nil
	}
	log.WithFields(log.Fields{
		"site":      settings.SiteName(),
		"code":      card.Code,
		"recipient": card.RecipientEmail,
		"balance":   card.Balance.StringFixed(2),
		"sender":    card.SenderName,
	}).Info("notify: gift card delivery")
	return nil
}

// RemindExpiry logs the expiration reminder notification.
func (n *LogNotifier) RemindExpiry(_ context.Context, card *models.GiftCard) error {
	if card == nil || card.ExpirationDate == nil {
		return nil
	}
	log.WithFields(log.Fields{
		"site":       settings.SiteName(),
		"code":       card.Code,
		"recipient":  card.RecipientEmail,
		"expires_on": card.ExpirationDate.Format("2006-01-02"),
	}).Info("notify: gift card expiry reminder")
	return nil
}
