package giftcard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/models"
)

// errOrderClaimed marks a commit that lost the claim race for its order.
var errOrderClaimed = errors.New("order already claimed")

// Deduction is one card's share of a redeemed discount.
type Deduction struct {
	CardID uint64          `json:"card_id"`
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Redemption is the outcome of a discount preview or commit.
type Redemption struct {
	OrderID    string          `json:"order_id,omitempty"`
	Applied    decimal.Decimal `json:"applied"`
	Deductions []Deduction     `json:"deductions,omitempty"`
	// Replayed is true when a commit found the order already redeemed and
	// deducted nothing.
	Replayed bool `json:"replayed,omitempty"`
}

// PreviewDiscount computes the discount that would apply at checkout without
// touching any balance. Applied is min(requested, total balance, cart total)
// and never negative; deductions are planned oldest-issued-first.
func (s *Service) PreviewDiscount(ctx context.Context, userID uint64, requested, cartTotal decimal.Decimal) (*Redemption, error) {
	cards, errCards := s.redeemableCards(ctx, s.db, userID)
	if errCards != nil {
		return nil, errCards
	}
	target := clampDiscount(requested, cartTotal, sumBalances(cards))
	deductions := planDeductions(cards, target)
	return &Redemption{Applied: target, Deductions: deductions}, nil
}

// CommitRedemption performs the final balance deduction for a completed
// order. It is idempotent per order: the order ID is claimed before any
// balance changes, and a duplicate commit returns the recorded amount with
// no further deduction. Each per-card deduction is an atomic conditional
// decrement, so a concurrent redemption can never push a balance negative.
func (s *Service) CommitRedemption(ctx context.Context, orderID string, userID uint64, requested, cartTotal decimal.Decimal) (*Redemption, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrInvalidInput)
	}

	var result Redemption
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claim the order first. The unique index on order_id makes this
		// the idempotency gate: whoever inserts the row owns the deduction.
		// The claim lives inside the transaction, so a failed deduction
		// rolls it back and the order stays retryable.
		claim := models.OrderRedemption{OrderID: orderID, UserID: userID, Amount: decimal.Zero}
		if errClaim := tx.WithContext(ctx).Create(&claim).Error; errClaim != nil {
			return fmt.Errorf("%w: %w", errOrderClaimed, errClaim)
		}

		cards, errCards := s.redeemableCards(ctx, tx, userID)
		if errCards != nil {
			return errCards
		}
		target := clampDiscount(requested, cartTotal, sumBalances(cards))

		remaining := target
		deductions := make([]Deduction, 0, len(cards))
		for _, card := range cards {
			if !remaining.IsPositive() {
				break
			}
			applied, errDeduct := s.deductCard(ctx, tx, &card, remaining)
			if errDeduct != nil {
				return errDeduct
			}
			if !applied.IsPositive() {
				continue
			}
			deductions = append(deductions, Deduction{CardID: card.ID, Code: card.Code, Amount: applied})
			remaining = remaining.Sub(applied)
		}

		applied := target.Sub(remaining)
		if errUpdate := tx.WithContext(ctx).
			Model(&models.OrderRedemption{}).
			Where("id = ?", claim.ID).
			Update("amount", applied).Error; errUpdate != nil {
			return fmt.Errorf("record redemption: %w", errUpdate)
		}

		result = Redemption{OrderID: orderID, Applied: applied, Deductions: deductions}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, errOrderClaimed) {
			existing, errExisting := s.findRedemption(ctx, orderID)
			if errExisting != nil {
				return nil, fmt.Errorf("claim order: %w", errTx)
			}
			return &Redemption{OrderID: orderID, Applied: existing.Amount, Replayed: true}, nil
		}
		return nil, errTx
	}

	// Balance updates are committed; log each deduction best-effort.
	for _, d := range result.Deductions {
		s.activity.Record(ctx, models.ActionUsed, codeOf(d.Code), amountOf(d.Amount), &userID)
	}
	return &result, nil
}

// deductCard subtracts up to want from one card using a conditional update,
// re-reading the row when a concurrent redemption shrank the balance since
// the candidate list was loaded.
func (s *Service) deductCard(ctx context.Context, tx *gorm.DB, card *models.GiftCard, want decimal.Decimal) (decimal.Decimal, error) {
	amount := decimal.Min(card.Balance, want)
	for attempt := 0; attempt < 3; attempt++ {
		if !amount.IsPositive() {
			return decimal.Zero, nil
		}
		res := tx.WithContext(ctx).
			Model(&models.GiftCard{}).
			Where("id = ? AND balance >= ?", card.ID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return decimal.Zero, fmt.Errorf("deduct card %s: %w", card.Code, res.Error)
		}
		if res.RowsAffected > 0 {
			return amount, nil
		}

		// Lost a race: someone drained this card in between. Re-read and
		// retry with whatever is left.
		var fresh models.GiftCard
		if errFind := tx.WithContext(ctx).Select("balance").First(&fresh, card.ID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return decimal.Zero, nil
			}
			return decimal.Zero, fmt.Errorf("reread card %s: %w", card.Code, errFind)
		}
		amount = decimal.Min(fresh.Balance, want)
	}
	return decimal.Zero, nil
}

// redeemableCards loads a user's cards with balance left, oldest issued
// first. The stable id tie-break keeps allocation deterministic.
func (s *Service) redeemableCards(ctx context.Context, tx *gorm.DB, userID uint64) ([]models.GiftCard, error) {
	var cards []models.GiftCard
	errFind := tx.WithContext(ctx).
		Where("user_id = ? AND balance > 0", userID).
		Order("issued_date ASC, id ASC").
		Find(&cards).Error
	if errFind != nil {
		return nil, fmt.Errorf("load redeemable cards: %w", errFind)
	}
	return cards, nil
}

// findRedemption fetches the committed redemption for an order.
func (s *Service) findRedemption(ctx context.Context, orderID string) (*models.OrderRedemption, error) {
	var row models.OrderRedemption
	errFind := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error
	if errFind != nil {
		return nil, errFind
	}
	return &row, nil
}

// clampDiscount bounds the applied amount by the request, the cart total,
// and the available balance, flooring at zero.
func clampDiscount(requested, cartTotal, available decimal.Decimal) decimal.Decimal {
	target := decimal.Min(requested, cartTotal, available)
	if target.IsNegative() {
		return decimal.Zero
	}
	return target
}

// sumBalances totals the remaining balance across candidate cards.
func sumBalances(cards []models.GiftCard) decimal.Decimal {
	total := decimal.Zero
	for _, card := range cards {
		total = total.Add(card.Balance)
	}
	return total
}

// planDeductions walks cards in order, taking min(balance, remaining) from
// each until the target is covered.
func planDeductions(cards []models.GiftCard, target decimal.Decimal) []Deduction {
	remaining := target
	out := make([]Deduction, 0, len(cards))
	for _, card := range cards {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(card.Balance, remaining)
		if !take.IsPositive() {
			continue
		}
		out = append(out, Deduction{CardID: card.ID, Code: card.Code, Amount: take})
		remaining = remaining.Sub(take)
	}
	return out
}
