package exchange

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/db"
	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/models"
)

func setupExchangeDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:exchange_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, errOpen)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func newTestReconciler(t *testing.T) (*Reconciler, *gorm.DB) {
	t.Helper()
	conn := setupExchangeDB(t)
	return NewReconciler(conn, giftcard.NewRecorder(conn)), conn
}

func csvWithHeader(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	require.NoError(t, w.Write(Columns))
	require.NoError(t, w.WriteAll(rows))
	w.Flush()
	require.NoError(t, w.Error())
	return buf
}

func TestExportImportRoundTrip(t *testing.T) {
	source, sourceDB := newTestReconciler(t)
	ctx := context.Background()

	expiry := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)
	delivery := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	staleID := uint64(99)
	seed := []models.GiftCard{
		{
			Code:           "ROUNDTRIP1",
			Balance:        decimal.NewFromFloat(25.50),
			ExpirationDate: &expiry,
			SenderName:     "Mara",
			SenderEmail:    "mara@example.com",
			RecipientEmail: "gwen@example.com",
			Message:        "enjoy, with a comma",
			IssuedDate:     time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
			DeliveryDate:   &delivery,
			GiftCardType:   models.GiftCardTypeDigital,
			UserID:         &staleID,
		},
		{
			Code:           "ROUNDTRIP2",
			Balance:        decimal.NewFromInt(5),
			RecipientEmail: "nobody@example.com",
			IssuedDate:     time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
			GiftCardType:   models.GiftCardTypePhysical,
		},
	}
	for i := range seed {
		require.NoError(t, sourceDB.Create(&seed[i]).Error)
	}

	rows, complete, errExport := source.ExportBatch(ctx, 0, 100)
	require.NoError(t, errExport)
	require.True(t, complete)
	require.Len(t, rows, 2)
	// Absent dates export as empty strings, never a zero-date sentinel.
	require.Equal(t, "", rows[1][2])
	require.Equal(t, "", rows[1][8])

	// Import into a fresh store that has an account for the recipient.
	target, targetDB := newTestReconciler(t)
	owner := models.User{Username: "gwen", Email: "gwen@example.com", Password: "x"}
	require.NoError(t, targetDB.Create(&owner).Error)

	result, errImport := target.ImportBatch(ctx, csvWithHeader(t, rows), 0, 100)
	require.NoError(t, errImport)
	require.True(t, result.Complete)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 0, result.Failed)

	var first models.GiftCard
	require.NoError(t, targetDB.Where("code = ?", "ROUNDTRIP1").First(&first).Error)
	require.True(t, first.Balance.Equal(decimal.NewFromFloat(25.50)))
	require.Equal(t, "enjoy, with a comma", first.Message)
	require.NotNil(t, first.ExpirationDate)
	require.True(t, first.ExpirationDate.Equal(expiry))
	// The association is re-derived from the email, not copied from the file.
	require.NotNil(t, first.UserID)
	require.Equal(t, owner.ID, *first.UserID)

	var second models.GiftCard
	require.NoError(t, targetDB.Where("code = ?", "ROUNDTRIP2").First(&second).Error)
	require.Nil(t, second.ExpirationDate)
	require.Nil(t, second.DeliveryDate)
	require.Nil(t, second.UserID)
}

func TestExportBatchPaging(t *testing.T) {
	source, sourceDB := newTestReconciler(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		card := models.GiftCard{
			Code:           fmt.Sprintf("PAGING%04d", i),
			Balance:        decimal.NewFromInt(int64(i + 1)),
			RecipientEmail: "p@example.com",
			IssuedDate:     time.Now().UTC(),
			GiftCardType:   models.GiftCardTypeDigital,
		}
		require.NoError(t, sourceDB.Create(&card).Error)
	}

	rows, complete, errFirst := source.ExportBatch(ctx, 0, 2)
	require.NoError(t, errFirst)
	require.False(t, complete)
	require.Len(t, rows, 2)

	rows, complete, errLast := source.ExportBatch(ctx, 4, 2)
	require.NoError(t, errLast)
	require.True(t, complete)
	require.Len(t, rows, 1)
	require.Equal(t, "PAGING0004", rows[0][0])
}

func TestImportBatchOffsetResumes(t *testing.T) {
	rec, conn := newTestReconciler(t)
	ctx := context.Background()

	rows := make([][]string, 0, 4)
	for i := 0; i < 4; i++ {
		card := models.GiftCard{
			Code:           fmt.Sprintf("RESUME%04d", i),
			Balance:        decimal.NewFromInt(10),
			RecipientEmail: "r@example.com",
			IssuedDate:     time.Now().UTC(),
			GiftCardType:   models.GiftCardTypeDigital,
		}
		rows = append(rows, EncodeRow(&card))
	}

	first, errFirst := rec.ImportBatch(ctx, csvWithHeader(t, rows), 0, 2)
	require.NoError(t, errFirst)
	require.Equal(t, 2, first.Imported)
	require.False(t, first.Complete)

	second, errSecond := rec.ImportBatch(ctx, csvWithHeader(t, rows), 2, 2)
	require.NoError(t, errSecond)
	require.Equal(t, 2, second.Imported)

	third, errThird := rec.ImportBatch(ctx, csvWithHeader(t, rows), 4, 2)
	require.NoError(t, errThird)
	require.Equal(t, 0, third.Imported)
	require.True(t, third.Complete)

	var count int64
	require.NoError(t, conn.Model(&models.GiftCard{}).Count(&count).Error)
	require.Equal(t, int64(4), count)
}

func TestImportBatchCountsBadRows(t *testing.T) {
	rec, conn := newTestReconciler(t)
	ctx := context.Background()

	good := models.GiftCard{
		Code:           "GOODROW111",
		Balance:        decimal.NewFromInt(10),
		RecipientEmail: "g@example.com",
		IssuedDate:     time.Now().UTC(),
		GiftCardType:   models.GiftCardTypeDigital,
	}
	dup := good
	badBalance := EncodeRow(&good)
	badBalance[0] = "BADROW1111"
	badBalance[1] = "not-a-number"

	rows := [][]string{EncodeRow(&good), EncodeRow(&dup), badBalance}
	result, errImport := rec.ImportBatch(ctx, csvWithHeader(t, rows), 0, 100)
	require.NoError(t, errImport)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 2, result.Failed)
	require.True(t, result.Complete)

	var count int64
	require.NoError(t, conn.Model(&models.GiftCard{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestImportBatchResumesPastMalformedLine(t *testing.T) {
	rec, conn := newTestReconciler(t)
	ctx := context.Background()

	// A CSV-syntax error in the middle of the file. The malformed line must
	// advance the resume offset like a data row, or the skip phase of the
	// next batch would swallow a good row instead.
	csvBody := strings.Join(Columns, ",") + "\n" +
		"MALFORMED1,10.00,,,,m@example.com,,2026-08-01 10:00:00,,digital,\n" +
		"bad\"quote,oops\n" +
		"MALFORMED2,10.00,,,,m@example.com,,2026-08-01 10:00:00,,digital,\n"

	first, errFirst := rec.ImportBatch(ctx, strings.NewReader(csvBody), 0, 2)
	require.NoError(t, errFirst)
	require.Equal(t, 1, first.Imported)
	require.Equal(t, 1, first.Failed)
	require.False(t, first.Complete)

	second, errSecond := rec.ImportBatch(ctx, strings.NewReader(csvBody), 2, 2)
	require.NoError(t, errSecond)
	require.Equal(t, 1, second.Imported)
	require.Equal(t, 0, second.Failed, "failure already counted in the first batch")
	require.True(t, second.Complete)

	var count int64
	require.NoError(t, conn.Model(&models.GiftCard{}).Where("code LIKE ?", "MALFORMED%").Count(&count).Error)
	require.Equal(t, int64(2), count, "every well-formed row must land exactly once")
}

func TestExportBatchSkipsLogForEmptyPage(t *testing.T) {
	rec, conn := newTestReconciler(t)
	ctx := context.Background()

	rows, complete, errExport := rec.ExportBatch(ctx, 0, 10)
	require.NoError(t, errExport)
	require.True(t, complete)
	require.Empty(t, rows)

	var logged int64
	require.NoError(t, conn.Model(&models.ActivityLog{}).Where("action_type = ?", models.ActionExportCSV).Count(&logged).Error)
	require.Zero(t, logged, "empty terminal page must not pad the audit trail")

	card := models.GiftCard{
		Code:           "EXPORTLOG1",
		Balance:        decimal.NewFromInt(5),
		RecipientEmail: "x@example.com",
		IssuedDate:     time.Now().UTC(),
		GiftCardType:   models.GiftCardTypeDigital,
	}
	require.NoError(t, conn.Create(&card).Error)

	_, _, errAgain := rec.ExportBatch(ctx, 0, 10)
	require.NoError(t, errAgain)
	require.NoError(t, conn.Model(&models.ActivityLog{}).Where("action_type = ?", models.ActionExportCSV).Count(&logged).Error)
	require.Equal(t, int64(1), logged)
}

func TestImportBatchWithoutHeader(t *testing.T) {
	rec, conn := newTestReconciler(t)

	card := models.GiftCard{
		Code:           "NOHEADER11",
		Balance:        decimal.NewFromInt(3),
		RecipientEmail: "n@example.com",
		IssuedDate:     time.Now().UTC(),
		GiftCardType:   models.GiftCardTypeDigital,
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	require.NoError(t, w.Write(EncodeRow(&card)))
	w.Flush()

	result, errImport := rec.ImportBatch(context.Background(), buf, 0, 100)
	require.NoError(t, errImport)
	require.Equal(t, 1, result.Imported)

	var count int64
	require.NoError(t, conn.Model(&models.GiftCard{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestDecodeRowValidation(t *testing.T) {
	base := func() []string {
		card := models.GiftCard{
			Code:           "DECODE1111",
			Balance:        decimal.NewFromInt(10),
			RecipientEmail: "d@example.com",
			IssuedDate:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			GiftCardType:   models.GiftCardTypeDigital,
		}
		return EncodeRow(&card)
	}

	t.Run("zero date sentinel reads as absent", func(t *testing.T) {
		row := base()
		row[2] = "0000-00-00"
		card, errDecode := DecodeRow(row)
		require.NoError(t, errDecode)
		require.Nil(t, card.ExpirationDate)
	})

	t.Run("lowercase code is normalized", func(t *testing.T) {
		row := base()
		row[0] = "decode1111"
		card, errDecode := DecodeRow(row)
		require.NoError(t, errDecode)
		require.Equal(t, "DECODE1111", card.Code)
	})

	t.Run("negative balance rejected", func(t *testing.T) {
		row := base()
		row[1] = "-5.00"
		_, errDecode := DecodeRow(row)
		require.Error(t, errDecode)
	})

	t.Run("wrong column count rejected", func(t *testing.T) {
		_, errDecode := DecodeRow([]string{"CODE", "10.00"})
		require.Error(t, errDecode)
	})

	t.Run("empty code rejected", func(t *testing.T) {
		row := base()
		row[0] = "  "
		_, errDecode := DecodeRow(row)
		require.Error(t, errDecode)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		row := base()
		row[9] = "virtual"
		_, errDecode := DecodeRow(row)
		require.Error(t, errDecode)
	})

	t.Run("bad user id rejected", func(t *testing.T) {
		row := base()
		row[10] = "abc"
		_, errDecode := DecodeRow(row)
		require.Error(t, errDecode)
	})
}

func TestEncodeRowStableColumnOrder(t *testing.T) {
	require.Equal(t, []string{
		"code", "balance", "expiration_date", "sender_name", "sender_email",
		"recipient_email", "message", "issued_date", "delivery_date",
		"gift_card_type", "user_id",
	}, Columns)

	card := models.GiftCard{
		Code:           "STABLE1111",
		Balance:        decimal.NewFromFloat(7.5),
		RecipientEmail: "s@example.com",
		IssuedDate:     time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		GiftCardType:   models.GiftCardTypeDigital,
	}
	row := EncodeRow(&card)
	require.Len(t, row, len(Columns))
	require.Equal(t, "7.50", row[1])
	require.Equal(t, "2026-08-01 10:30:00", row[7])
	require.False(t, strings.Contains(strings.Join(row, ","), "0000-00-00"))
}
