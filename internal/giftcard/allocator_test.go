package giftcard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenshop/giftcards/internal/models"
)

// seedCards inserts three cards for one user with balances 10, 5, 20 issued
// a day apart, oldest first.
func seedCards(t *testing.T, svc *Service, userID uint64) []models.GiftCard {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cards := []models.GiftCard{
		{Code: "OLDEST1111", Balance: decimal.NewFromInt(10), RecipientEmail: "u@example.com", IssuedDate: base, GiftCardType: models.GiftCardTypeDigital, UserID: &userID},
		{Code: "MIDDLE2222", Balance: decimal.NewFromInt(5), RecipientEmail: "u@example.com", IssuedDate: base.AddDate(0, 0, 1), GiftCardType: models.GiftCardTypeDigital, UserID: &userID},
		{Code: "NEWEST3333", Balance: decimal.NewFromInt(20), RecipientEmail: "u@example.com", IssuedDate: base.AddDate(0, 0, 2), GiftCardType: models.GiftCardTypeDigital, UserID: &userID},
	}
	for i := range cards {
		require.NoError(t, svc.DB().Create(&cards[i]).Error)
	}
	return cards
}

func balanceOf(t *testing.T, svc *Service, code string) decimal.Decimal {
	t.Helper()
	card, errGet := svc.Get(context.Background(), code)
	require.NoError(t, errGet)
	return card.Balance
}

func TestPreviewDiscountPlansOldestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	seedCards(t, svc, 1)

	r, errPreview := svc.PreviewDiscount(context.Background(), 1, decimal.NewFromInt(12), decimal.NewFromInt(100))
	require.NoError(t, errPreview)
	require.True(t, r.Applied.Equal(decimal.NewFromInt(12)))
	require.Len(t, r.Deductions, 2)
	require.Equal(t, "OLDEST1111", r.Deductions[0].Code)
	require.True(t, r.Deductions[0].Amount.Equal(decimal.NewFromInt(10)))
	require.Equal(t, "MIDDLE2222", r.Deductions[1].Code)
	require.True(t, r.Deductions[1].Amount.Equal(decimal.NewFromInt(2)))

	// A preview never touches balances.
	require.True(t, balanceOf(t, svc, "OLDEST1111").Equal(decimal.NewFromInt(10)))
	require.True(t, balanceOf(t, svc, "MIDDLE2222").Equal(decimal.NewFromInt(5)))
}

func TestPreviewDiscountClamps(t *testing.T) {
	svc, _ := newTestService(t)
	seedCards(t, svc, 1) // 35 available

	cases := []struct {
		name      string
		requested int64
		cartTotal int64
		want      int64
	}{
		{"clamped to cart total", 50, 30, 30},
		{"clamped to available balance", 100, 200, 35},
		{"clamped to request", 12, 100, 12},
		{"negative request floors at zero", -5, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, errPreview := svc.PreviewDiscount(context.Background(), 1, decimal.NewFromInt(tc.requested), decimal.NewFromInt(tc.cartTotal))
			require.NoError(t, errPreview)
			require.True(t, r.Applied.Equal(decimal.NewFromInt(tc.want)), "got %s", r.Applied)
		})
	}
}

func TestPreviewDiscountNoCards(t *testing.T) {
	svc, _ := newTestService(t)

	r, errPreview := svc.PreviewDiscount(context.Background(), 42, decimal.NewFromInt(10), decimal.NewFromInt(10))
	require.NoError(t, errPreview)
	require.True(t, r.Applied.IsZero())
	require.Empty(t, r.Deductions)
}

func TestCommitRedemptionDeductsOldestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	seedCards(t, svc, 1)

	r, errCommit := svc.CommitRedemption(context.Background(), "order-1001", 1, decimal.NewFromInt(12), decimal.NewFromInt(100))
	require.NoError(t, errCommit)
	require.False(t, r.Replayed)
	require.True(t, r.Applied.Equal(decimal.NewFromInt(12)))

	require.True(t, balanceOf(t, svc, "OLDEST1111").IsZero())
	require.True(t, balanceOf(t, svc, "MIDDLE2222").Equal(decimal.NewFromInt(3)))
	require.True(t, balanceOf(t, svc, "NEWEST3333").Equal(decimal.NewFromInt(20)))

	used := activityRows(t, svc, models.ActionUsed)
	require.Len(t, used, 2)
}

func TestCommitRedemptionIsIdempotentPerOrder(t *testing.T) {
	svc, _ := newTestService(t)
	seedCards(t, svc, 1)
	ctx := context.Background()

	first, errFirst := svc.CommitRedemption(ctx, "order-2002", 1, decimal.NewFromInt(12), decimal.NewFromInt(100))
	require.NoError(t, errFirst)

	second, errSecond := svc.CommitRedemption(ctx, "order-2002", 1, decimal.NewFromInt(12), decimal.NewFromInt(100))
	require.NoError(t, errSecond)
	require.True(t, second.Replayed)
	require.True(t, second.Applied.Equal(first.Applied))

	// Balances unchanged by the replay.
	require.True(t, balanceOf(t, svc, "OLDEST1111").IsZero())
	require.True(t, balanceOf(t, svc, "MIDDLE2222").Equal(decimal.NewFromInt(3)))

	var claims []models.OrderRedemption
	require.NoError(t, svc.DB().Where("order_id = ?", "order-2002").Find(&claims).Error)
	require.Len(t, claims, 1)
}

func TestCommitRedemptionRetriesAfterStorageFailure(t *testing.T) {
	svc, _ := newTestService(t)
	seedCards(t, svc, 1)
	ctx := context.Background()

	// Knock the card table out so the deduction fails mid-commit, then
	// restore it. The order claim must roll back with the transaction.
	backup := make([]models.GiftCard, 0, 3)
	require.NoError(t, svc.DB().Order("id ASC").Find(&backup).Error)
	require.NoError(t, svc.DB().Migrator().DropTable(&models.GiftCard{}))

	_, errFailed := svc.CommitRedemption(ctx, "order-4004", 1, decimal.NewFromInt(12), decimal.NewFromInt(100))
	require.Error(t, errFailed)

	var claims int64
	require.NoError(t, svc.DB().Model(&models.OrderRedemption{}).Where("order_id = ?", "order-4004").Count(&claims).Error)
	require.Zero(t, claims, "failed commit must not leave a claim behind")

	require.NoError(t, svc.DB().AutoMigrate(&models.GiftCard{}))
	for i := range backup {
		require.NoError(t, svc.DB().Create(&backup[i]).Error)
	}

	retry, errRetry := svc.CommitRedemption(ctx, "order-4004", 1, decimal.NewFromInt(12), decimal.NewFromInt(100))
	require.NoError(t, errRetry)
	require.False(t, retry.Replayed)
	require.True(t, retry.Applied.Equal(decimal.NewFromInt(12)), "got %s", retry.Applied)
	require.True(t, balanceOf(t, svc, "OLDEST1111").IsZero())
	require.True(t, balanceOf(t, svc, "MIDDLE2222").Equal(decimal.NewFromInt(3)))
}

func TestCommitRedemptionRequiresOrderID(t *testing.T) {
	svc, _ := newTestService(t)

	_, errCommit := svc.CommitRedemption(context.Background(), "  ", 1, decimal.NewFromInt(5), decimal.NewFromInt(10))
	require.ErrorIs(t, errCommit, ErrInvalidInput)
}

func TestCommitRedemptionIgnoresOtherUsersCards(t *testing.T) {
	svc, _ := newTestService(t)
	seedCards(t, svc, 1)

	r, errCommit := svc.CommitRedemption(context.Background(), "order-3003", 2, decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, errCommit)
	require.True(t, r.Applied.IsZero())
	require.True(t, balanceOf(t, svc, "OLDEST1111").Equal(decimal.NewFromInt(10)))
}

func TestClampDiscount(t *testing.T) {
	got := clampDiscount(decimal.NewFromInt(50), decimal.NewFromInt(30), decimal.NewFromInt(100))
	require.True(t, got.Equal(decimal.NewFromInt(30)))

	got = clampDiscount(decimal.NewFromInt(-1), decimal.NewFromInt(30), decimal.NewFromInt(100))
	require.True(t, got.IsZero())
}

func TestPlanDeductionsSkipsDrainedCards(t *testing.T) {
	cards := []models.GiftCard{
		{ID: 1, Code: "A", Balance: decimal.Zero},
		{ID: 2, Code: "B", Balance: decimal.NewFromInt(8)},
	}
	out := planDeductions(cards, decimal.NewFromInt(5))
	require.Len(t, out, 1)
	require.Equal(t, "B", out[0].Code)
	require.True(t, out[0].Amount.Equal(decimal.NewFromInt(5)))
}
