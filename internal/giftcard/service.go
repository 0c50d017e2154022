package giftcard

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	dbutil "github.com/lumenshop/giftcards/internal/db"
	"github.com/lumenshop/giftcards/internal/models"
)

// Service is the gift card balance ledger. Every mutation it performs is
// mirrored into the activity log, and issuance of digital cards triggers the
// notifier when the delivery date allows.
type Service struct {
	db       *gorm.DB
	activity *Recorder
	notifier Notifier
}

// NewService wires a ledger service with its collaborators.
func NewService(db *gorm.DB, notifier Notifier) *Service {
	return &Service{
		db:       db,
		activity: NewRecorder(db),
		notifier: notifier,
	}
}

// DB exposes the underlying connection for collaborating components.
func (s *Service) DB() *gorm.DB { return s.db }

// Activity exposes the activity recorder.
func (s *Service) Activity() *Recorder { return s.activity }

// NormalizeCode uppercases and trims a redemption code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DateOnly truncates a timestamp to its calendar date at UTC midnight. All
// date columns (expiration, delivery) are stored and compared in this form.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sameCalendarDate compares two optional dates by calendar day, treating nil
// as "no date". An empty value and a real date are never equal.
func sameCalendarDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return DateOnly(*a).Equal(DateOnly(*b))
}

// validEmail reports whether the address parses as a bare RFC 5322 address.
func validEmail(address string) bool {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return false
	}
	parsed, err := mail.ParseAddress(trimmed)
	return err == nil && parsed.Address == trimmed
}

// resolveUserID matches a recipient email to an existing account. The result
// is a weak reference: cards keep working when no account matches.
func (s *Service) resolveUserID(ctx context.Context, email string) *uint64 {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil
	}
	var row struct {
		ID uint64
	}
	errFind := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id").
		Where("email = ?", trimmed).
		Order("id ASC").
		Take(&row).Error
	if errFind != nil || row.ID == 0 {
		return nil
	}
	id := row.ID
	return &id
}

// IssueParams carries the issuance form fields.
type IssueParams struct {
	Balance        decimal.Decimal
	RecipientEmail string
	SenderName     string
	SenderEmail    string
	Message        string
	DeliveryDate   *time.Time
	ExpirationDate *time.Time
	GiftCardType   string
	ActorID        *uint64
}

// Issue validates the request, allocates a unique code, persists the card,
// logs the creation, and fires the delivery notification when due.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*models.GiftCard, error) {
	if !p.Balance.IsPositive() {
		return nil, fmt.Errorf("%w: balance must be positive", ErrInvalidInput)
	}
	if !validEmail(p.RecipientEmail) {
		return nil, fmt.Errorf("%w: invalid recipient email", ErrInvalidInput)
	}
	cardType := strings.TrimSpace(p.GiftCardType)
	if cardType == "" {
		cardType = models.GiftCardTypeDigital
	}
	if cardType != models.GiftCardTypeDigital && cardType != models.GiftCardTypePhysical {
		return nil, fmt.Errorf("%w: unknown gift card type %q", ErrInvalidInput, p.GiftCardType)
	}

	code, errCode := GenerateUniqueCode(ctx, s.db)
	if errCode != nil {
		return nil, errCode
	}

	card := models.GiftCard{
		Code:           code,
		Balance:        p.Balance,
		ExpirationDate: normalizeDate(p.ExpirationDate),
		SenderName:     strings.TrimSpace(p.SenderName),
		SenderEmail:    strings.TrimSpace(p.SenderEmail),
		RecipientEmail: strings.TrimSpace(p.RecipientEmail),
		Message:        p.Message,
		IssuedDate:     time.Now().UTC(),
		DeliveryDate:   normalizeDate(p.DeliveryDate),
		GiftCardType:   cardType,
		UserID:         s.resolveUserID(ctx, p.RecipientEmail),
	}
	if errCreate := s.db.WithContext(ctx).Create(&card).Error; errCreate != nil {
		return nil, fmt.Errorf("create gift card: %w", errCreate)
	}

	s.activity.Record(ctx, models.ActionCreated, codeOf(card.Code), amountOf(card.Balance), p.ActorID)

	if s.deliveryDue(&card, time.Now()) {
		if errNotify := s.notifier.DeliverGiftCard(ctx, &card); errNotify != nil {
			log.WithError(errNotify).WithField("code", card.Code).Warn("gift card delivery notification failed")
		}
	}

	return &card, nil
}

// deliveryDue reports whether the issuance email should fire now. Physical
// cards never auto-email; a future delivery date defers to the daily sweep.
func (s *Service) deliveryDue(card *models.GiftCard, now time.Time) bool {
	if card.GiftCardType != models.GiftCardTypeDigital {
		return false
	}
	if card.DeliveryDate == nil {
		return true
	}
	return !card.DeliveryDate.After(DateOnly(now))
}

// AdjustParams carries the admin edit fields. Nil pointers leave a field
// unchanged; ClearExpiration removes the expiry date entirely.
type AdjustParams struct {
	NewBalance      decimal.Decimal
	RecipientEmail  *string
	SenderName      *string
	Message         *string
	ExpirationDate  *time.Time
	ClearExpiration bool
	ActorID         *uint64
}

// Adjust applies an admin correction to a card. It always logs
// balance_adjusted with the new balance, and logs expiration_updated only
// when the calendar date actually changed.
func (s *Service) Adjust(ctx context.Context, code string, p AdjustParams) error {
	if p.NewBalance.IsNegative() {
		return fmt.Errorf("%w: balance cannot be negative", ErrInvalidInput)
	}

	card, errGet := s.Get(ctx, code)
	if errGet != nil {
		return errGet
	}

	updates := map[string]any{
		"balance": p.NewBalance,
	}
	if p.RecipientEmail != nil {
		email := strings.TrimSpace(*p.RecipientEmail)
		if !validEmail(email) {
			return fmt.Errorf("%w: invalid recipient email", ErrInvalidInput)
		}
		updates["recipient_email"] = email
		updates["user_id"] = s.resolveUserID(ctx, email)
	}
	if p.SenderName != nil {
		updates["sender_name"] = strings.TrimSpace(*p.SenderName)
	}
	if p.Message != nil {
		updates["message"] = *p.Message
	}

	var nextExpiration *time.Time
	expirationChanged := false
	switch {
	case p.ClearExpiration:
		nextExpiration = nil
		expirationChanged = card.ExpirationDate != nil
	case p.ExpirationDate != nil:
		nextExpiration = normalizeDate(p.ExpirationDate)
		expirationChanged = !sameCalendarDate(card.ExpirationDate, nextExpiration)
	}
	if p.ClearExpiration || p.ExpirationDate != nil {
		updates["expiration_date"] = nextExpiration
	}

	if errUpdate := s.db.WithContext(ctx).
		Model(&models.GiftCard{}).
		Where("id = ?", card.ID).
		Updates(updates).Error; errUpdate != nil {
		return fmt.Errorf("update gift card: %w", errUpdate)
	}

	s.activity.Record(ctx, models.ActionBalanceAdjusted, codeOf(card.Code), amountOf(p.NewBalance), p.ActorID)
	if expirationChanged {
		s.activity.Record(ctx, models.ActionExpirationUpdated, codeOf(card.Code), decimal.NullDecimal{}, p.ActorID)
	}
	return nil
}

// Delete removes a card and logs the deletion.
func (s *Service) Delete(ctx context.Context, code string, actorID *uint64) error {
	normalized := NormalizeCode(code)
	res := s.db.WithContext(ctx).Where("code = ?", normalized).Delete(&models.GiftCard{})
	if res.Error != nil {
		return fmt.Errorf("delete gift card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.activity.Record(ctx, models.ActionDeleted, codeOf(normalized), decimal.NullDecimal{}, actorID)
	return nil
}

// Get fetches a card by code.
func (s *Service) Get(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	errFind := s.db.WithContext(ctx).
		Where("code = ?", NormalizeCode(code)).
		First(&card).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query gift card: %w", errFind)
	}
	return &card, nil
}

// ListFilter narrows and orders the admin card listing.
type ListFilter struct {
	Code             string // Substring match on code.
	Recipient        string // Substring match on recipient email.
	Type             string // Exact gift card type.
	ExcludeExhausted bool   // Drop cards with zero balance.
	SortBy           string // issued_date, balance, or expiration_date.
	Order            string // asc or desc.
	Limit            int
	Offset           int
}

// List returns cards matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.GiftCard, error) {
	q := s.db.WithContext(ctx).Model(&models.GiftCard{})
	if code := strings.TrimSpace(f.Code); code != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+code+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(s.db, "code"), pattern)
	}
	if recipient := strings.TrimSpace(f.Recipient); recipient != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+recipient+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(s.db, "recipient_email"), pattern)
	}
	if cardType := strings.TrimSpace(f.Type); cardType != "" {
		q = q.Where("gift_card_type = ?", cardType)
	}
	if f.ExcludeExhausted {
		q = q.Where("balance > 0")
	}

	sortBy := "issued_date"
	switch f.SortBy {
	case "balance", "expiration_date", "issued_date":
		sortBy = f.SortBy
	}
	order := "ASC"
	if strings.EqualFold(f.Order, "desc") {
		order = "DESC"
	}
	q = q.Order(fmt.Sprintf("%s %s", sortBy, order)).Order("id ASC")

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []models.GiftCard
	if errFind := q.Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("list gift cards: %w", errFind)
	}
	return rows, nil
}

// CardsForUser returns a user's cards with remaining balance, oldest first.
func (s *Service) CardsForUser(ctx context.Context, userID uint64) ([]models.GiftCard, error) {
	var rows []models.GiftCard
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND balance > 0", userID).
		Order("issued_date ASC").
		Order("id ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("list user gift cards: %w", errFind)
	}
	return rows, nil
}

// TotalBalance sums the remaining balance over a user's live cards.
func (s *Service) TotalBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	errSum := s.db.WithContext(ctx).
		Model(&models.GiftCard{}).
		Where("user_id = ? AND balance > 0", userID).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	if errSum != nil {
		return decimal.Zero, fmt.Errorf("sum balances: %w", errSum)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// DueForReminder returns cards whose expiration falls within
// [today, today+daysBefore] and which still hold balance.
func (s *Service) DueForReminder(ctx context.Context, daysBefore int) ([]models.GiftCard, error) {
	if daysBefore < 0 {
		daysBefore = 0
	}
	today := DateOnly(time.Now())
	windowEnd := today.AddDate(0, 0, daysBefore)

	var rows []models.GiftCard
	errFind := s.db.WithContext(ctx).
		Where("expiration_date IS NOT NULL AND expiration_date >= ? AND expiration_date <= ?", today, windowEnd).
		Where("balance > 0").
		Order("expiration_date ASC, id ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("query reminder window: %w", errFind)
	}
	return rows, nil
}

// DueForDelivery returns digital cards whose delivery date is the given day.
func (s *Service) DueForDelivery(ctx context.Context, day time.Time) ([]models.GiftCard, error) {
	var rows []models.GiftCard
	errFind := s.db.WithContext(ctx).
		Where("gift_card_type = ? AND delivery_date = ?", models.GiftCardTypeDigital, DateOnly(day)).
		Order("id ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("query delivery window: %w", errFind)
	}
	return rows, nil
}

// normalizeDate truncates an optional timestamp to its calendar date.
func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DateOnly(*t)
	return &d
}
