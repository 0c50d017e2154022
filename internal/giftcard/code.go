package giftcard

import (
	"context"
	"crypto/rand"
	"fmt"

	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/models"
)

const (
	// codeAlphabet excludes 0/O/1/I to keep codes readable over the phone.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// codeLength is the fixed redemption code length.
	codeLength = 10
	// maxCodeAttempts bounds collision retries before giving up.
	maxCodeAttempts = 100
)

// GenerateUniqueCode returns a fresh uppercase redemption code that does not
// collide with any stored card. The existence check does not reserve the
// code; the unique index on gift_cards.code is the final arbiter.
func GenerateUniqueCode(ctx context.Context, db *gorm.DB) (string, error) {
	return generateUniqueCode(ctx, db, codeAlphabet, codeLength, maxCodeAttempts)
}

func generateUniqueCode(ctx context.Context, db *gorm.DB, alphabet string, length, attempts int) (string, error) {
	for attempt := 0; attempt < attempts; attempt++ {
		code, errGen := randomCode(alphabet, length)
		if errGen != nil {
			return "", errGen
		}
		var count int64
		if errCount := db.WithContext(ctx).
			Model(&models.GiftCard{}).
			Where("code = ?", code).
			Count(&count).Error; errCount != nil {
			return "", fmt.Errorf("check code: %w", errCount)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// randomCode returns a random token of the requested length from alphabet.
func randomCode(alphabet string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
