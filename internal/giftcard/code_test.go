package giftcard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenshop/giftcards/internal/models"
)

func TestGenerateUniqueCodeShape(t *testing.T) {
	conn := setupLedgerDB(t)

	code, errGen := GenerateUniqueCode(context.Background(), conn)
	require.NoError(t, errGen)
	require.Len(t, code, codeLength)
	for _, r := range code {
		require.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q in code %s", r, code)
	}
}

func TestGenerateUniqueCodeAvoidsCollisions(t *testing.T) {
	conn := setupLedgerDB(t)
	ctx := context.Background()

	seen := make(map[string]struct{}, 50)
	for i := 0; i < 50; i++ {
		code, errGen := GenerateUniqueCode(ctx, conn)
		require.NoError(t, errGen)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}

func TestGenerateUniqueCodeSaturatedSpace(t *testing.T) {
	conn := setupLedgerDB(t)
	ctx := context.Background()

	// A one-letter alphabet at length one admits exactly one code. Once that
	// code is taken, every attempt collides and the generator must give up.
	taken := models.GiftCard{
		Code:           "Z",
		Balance:        decimal.NewFromInt(1),
		RecipientEmail: "full@example.com",
		IssuedDate:     time.Now().UTC(),
		GiftCardType:   models.GiftCardTypeDigital,
	}
	require.NoError(t, conn.Create(&taken).Error)

	_, errGen := generateUniqueCode(ctx, conn, "Z", 1, 5)
	require.ErrorIs(t, errGen, ErrCodeSpaceExhausted)
}

func TestRandomCodeLength(t *testing.T) {
	code, errGen := randomCode(codeAlphabet, 16)
	require.NoError(t, errGen)
	require.Len(t, code, 16)
}
