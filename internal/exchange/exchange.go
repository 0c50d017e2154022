// Package exchange implements the bulk gift card import/export reconciler.
// Both directions share one fixed-column row format so an exported file can
// be re-imported unchanged.
package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/models"
)

// Columns is the fixed exchange row column order.
var Columns = []string{
	"code", "balance", "expiration_date", "sender_name", "sender_email",
	"recipient_email", "message", "issued_date", "delivery_date",
	"gift_card_type", "user_id",
}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// Reconciler moves ledger rows in and out in caller-driven batches. It holds
// no cursor state; the caller advances the offset until a batch reports
// completion.
type Reconciler struct {
	db       *gorm.DB
	activity *giftcard.Recorder
}

// NewReconciler constructs a Reconciler.
func NewReconciler(db *gorm.DB, activity *giftcard.Recorder) *Reconciler {
	return &Reconciler{db: db, activity: activity}
}

// ExportBatch serializes one page of cards ordered by primary key. Complete
// is true when the page came back shorter than batchSize.
func (r *Reconciler) ExportBatch(ctx context.Context, offset, batchSize int) ([][]string, bool, error) {
	if batchSize <= 0 {
		return nil, false, fmt.Errorf("%w: batch size must be positive", giftcard.ErrInvalidInput)
	}
	if offset < 0 {
		offset = 0
	}

	var cards []models.GiftCard
	if errFind := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(batchSize).
		Find(&cards).Error; errFind != nil {
		return nil, false, fmt.Errorf("export batch: %w", errFind)
	}

	rows := make([][]string, 0, len(cards))
	for i := range cards {
		rows = append(rows, EncodeRow(&cards[i]))
	}

	complete := len(cards) < batchSize
	if len(rows) > 0 {
		r.activity.Record(ctx, models.ActionExportCSV, nil,
			decimal.NullDecimal{Decimal: decimal.NewFromInt(int64(len(rows))), Valid: true}, nil)
	}
	return rows, complete, nil
}

// ImportResult summarizes one import batch.
type ImportResult struct {
	Imported int  `json:"rows_imported"`
	Failed   int  `json:"failed_rows"`
	Complete bool `json:"is_complete"`
}

// ImportBatch reads up to batchSize data rows from the CSV stream, skipping
// the header and the first offset data rows, and inserts one card per row.
// A row that fails to parse or insert (e.g. a duplicate code) is counted and
// skipped; the batch never aborts on a single bad row.
func (r *Reconciler) ImportBatch(ctx context.Context, src io.Reader, offset, batchSize int) (ImportResult, error) {
	if batchSize <= 0 {
		return ImportResult{}, fmt.Errorf("%w: batch size must be positive", giftcard.ErrInvalidInput)
	}
	if offset < 0 {
		offset = 0
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	result := ImportResult{}
	seenHeader := false
	skipped := 0
	for result.Imported+result.Failed < batchSize {
		record, errRead := reader.Read()
		if errors.Is(errRead, io.EOF) {
			result.Complete = true
			break
		}
		if errRead != nil {
			// A malformed line is a consumed data row: it advances the
			// offset like any other, and is counted as a failure only in
			// the batch where it falls past the skip region. Re-counting
			// it during the skip phase would eat a good row instead.
			if skipped < offset {
				skipped++
				continue
			}
			result.Failed++
			continue
		}
		if !seenHeader {
			seenHeader = true
			if isHeaderRow(record) {
				continue
			}
		}
		if skipped < offset {
			skipped++
			continue
		}

		if errRow := r.importRow(ctx, record); errRow != nil {
			log.WithError(errRow).Warn("import: row skipped")
			result.Failed++
			continue
		}
		result.Imported++
	}

	r.activity.Record(ctx, models.ActionImportCSV, nil,
		decimal.NullDecimal{Decimal: decimal.NewFromInt(int64(result.Imported)), Valid: true}, nil)
	return result, nil
}

// importRow decodes and inserts one exchange row. The user association is
// re-derived from the recipient email rather than copied from the file, so
// imports land on the accounts of the importing store.
func (r *Reconciler) importRow(ctx context.Context, record []string) error {
	card, errDecode := DecodeRow(record)
	if errDecode != nil {
		return errDecode
	}

	var row struct {
		ID uint64
	}
	errFind := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id").
		Where("email = ?", card.RecipientEmail).
		Order("id ASC").
		Take(&row).Error
	if errFind == nil && row.ID != 0 {
		id := row.ID
		card.UserID = &id
	}

	if errCreate := r.db.WithContext(ctx).Create(card).Error; errCreate != nil {
		return fmt.Errorf("insert %s: %w", card.Code, errCreate)
	}
	return nil
}

// EncodeRow serializes a card into the fixed column order. Absent dates
// round-trip as empty strings.
func EncodeRow(card *models.GiftCard) []string {
	userID := ""
	if card.UserID != nil {
		userID = strconv.FormatUint(*card.UserID, 10)
	}
	return []string{
		card.Code,
		card.Balance.StringFixed(2),
		formatDate(card.ExpirationDate),
		card.SenderName,
		card.SenderEmail,
		card.RecipientEmail,
		card.Message,
		card.IssuedDate.UTC().Format(timestampLayout),
		formatDate(card.DeliveryDate),
		card.GiftCardType,
		userID,
	}
}

// DecodeRow parses one exchange row into a card. The user_id column is
// validated but not trusted; callers re-derive the association.
func DecodeRow(record []string) (*models.GiftCard, error) {
	if len(record) != len(Columns) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(Columns), len(record))
	}

	code := giftcard.NormalizeCode(record[0])
	if code == "" {
		return nil, errors.New("empty code")
	}

	balance, errBalance := decimal.NewFromString(strings.TrimSpace(record[1]))
	if errBalance != nil {
		return nil, fmt.Errorf("bad balance %q: %w", record[1], errBalance)
	}
	if balance.IsNegative() {
		return nil, fmt.Errorf("negative balance %q", record[1])
	}

	expiration, errExpiration := parseDate(record[2])
	if errExpiration != nil {
		return nil, fmt.Errorf("bad expiration_date: %w", errExpiration)
	}

	issued := time.Now().UTC()
	if trimmed := strings.TrimSpace(record[7]); trimmed != "" {
		parsed, errIssued := time.ParseInLocation(timestampLayout, trimmed, time.UTC)
		if errIssued != nil {
			return nil, fmt.Errorf("bad issued_date: %w", errIssued)
		}
		issued = parsed
	}

	delivery, errDelivery := parseDate(record[8])
	if errDelivery != nil {
		return nil, fmt.Errorf("bad delivery_date: %w", errDelivery)
	}

	cardType := strings.TrimSpace(record[9])
	if cardType == "" {
		cardType = models.GiftCardTypeDigital
	}
	if cardType != models.GiftCardTypeDigital && cardType != models.GiftCardTypePhysical {
		return nil, fmt.Errorf("unknown gift_card_type %q", record[9])
	}

	if trimmed := strings.TrimSpace(record[10]); trimmed != "" {
		if _, errUser := strconv.ParseUint(trimmed, 10, 64); errUser != nil {
			return nil, fmt.Errorf("bad user_id %q: %w", record[10], errUser)
		}
	}

	return &models.GiftCard{
		Code:           code,
		Balance:        balance,
		ExpirationDate: expiration,
		SenderName:     strings.TrimSpace(record[3]),
		SenderEmail:    strings.TrimSpace(record[4]),
		RecipientEmail: strings.TrimSpace(record[5]),
		Message:        record[6],
		IssuedDate:     issued,
		DeliveryDate:   delivery,
		GiftCardType:   cardType,
	}, nil
}

// isHeaderRow reports whether a record is the column header.
func isHeaderRow(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "code")
}

// formatDate renders an optional date, with "" for absent.
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// parseDate accepts "" as no date and otherwise requires YYYY-MM-DD. The
// zero-date sentinel some exports emit is treated as absent, never as a
// real date.
func parseDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "0000-00-00" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(dateLayout, trimmed, time.UTC)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
