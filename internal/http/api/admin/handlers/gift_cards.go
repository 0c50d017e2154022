package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/models"
)

const dateLayout = "2006-01-02"

// GiftCardHandler handles admin operations for gift cards.
type GiftCardHandler struct {
	svc *giftcard.Service
}

// NewGiftCardHandler wires a gift card handler with the ledger service.
func NewGiftCardHandler(svc *giftcard.Service) *GiftCardHandler {
	return &GiftCardHandler{svc: svc}
}

// createGiftCardRequest captures the payload for issuing a card.
type createGiftCardRequest struct {
	Balance        decimal.Decimal `json:"balance"`
	RecipientEmail string          `json:"recipient_email"`
	SenderName     string          `json:"sender_name"`
	SenderEmail    string          `json:"sender_email"`
	Message        string          `json:"message"`
	DeliveryDate   string          `json:"delivery_date"`
	ExpirationDate string          `json:"expiration_date"`
	GiftCardType   string          `json:"gift_card_type"`
}

// Create validates input and issues a new gift card.
func (h *GiftCardHandler) Create(c *gin.Context) {
	var body createGiftCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	delivery, errDelivery := parseOptionalDate(body.DeliveryDate)
	if errDelivery != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delivery_date"})
		return
	}
	expiration, errExpiration := parseOptionalDate(body.ExpirationDate)
	if errExpiration != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expiration_date"})
		return
	}

	actorID := getAdminID(c)
	card, errIssue := h.svc.Issue(c.Request.Context(), giftcard.IssueParams{
		Balance:        body.Balance,
		RecipientEmail: body.RecipientEmail,
		SenderName:     body.SenderName,
		SenderEmail:    body.SenderEmail,
		Message:        body.Message,
		DeliveryDate:   delivery,
		ExpirationDate: expiration,
		GiftCardType:   body.GiftCardType,
		ActorID:        actorID,
	})
	if errIssue != nil {
		if errors.Is(errIssue, giftcard.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errIssue.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue gift card failed"})
		return
	}
	c.JSON(http.StatusCreated, formatGiftCard(card))
}

// List returns gift cards filtered by query parameters.
func (h *GiftCardHandler) List(c *gin.Context) {
	filter := giftcard.ListFilter{
		Code:      c.Query("code"),
		Recipient: c.Query("recipient"),
		Type:      c.Query("type"),
		SortBy:    c.Query("sort_by"),
		Order:     c.Query("order"),
		Limit:     intQuery(c, "limit", 50),
		Offset:    intQuery(c, "offset", 0),
	}
	if exhausted := strings.TrimSpace(c.Query("exclude_exhausted")); exhausted == "true" || exhausted == "1" {
		filter.ExcludeExhausted = true
	}

	rows, errList := h.svc.List(c.Request.Context(), filter)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list gift cards failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatGiftCard(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"gift_cards": out})
}

// Get fetches a single gift card by code.
func (h *GiftCardHandler) Get(c *gin.Context) {
	card, errGet := h.svc.Get(c.Request.Context(), c.Param("code"))
	if errGet != nil {
		if errors.Is(errGet, giftcard.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatGiftCard(card))
}

// updateGiftCardRequest captures the admin edit fields. Omitted fields stay
// unchanged; an explicit empty expiration_date clears the expiry.
type updateGiftCardRequest struct {
	Balance        decimal.Decimal `json:"balance"`
	RecipientEmail *string         `json:"recipient_email"`
	SenderName     *string         `json:"sender_name"`
	Message        *string         `json:"message"`
	ExpirationDate *string         `json:"expiration_date"`
}

// Update applies an admin correction to a gift card.
func (h *GiftCardHandler) Update(c *gin.Context) {
	var body updateGiftCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	params := giftcard.AdjustParams{
		NewBalance:     body.Balance,
		RecipientEmail: body.RecipientEmail,
		SenderName:     body.SenderName,
		Message:        body.Message,
		ActorID:        getAdminID(c),
	}
	if body.ExpirationDate != nil {
		trimmed := strings.TrimSpace(*body.ExpirationDate)
		if trimmed == "" {
			params.ClearExpiration = true
		} else {
			parsed, errParse := time.ParseInLocation(dateLayout, trimmed, time.UTC)
			if errParse != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expiration_date"})
				return
			}
			params.ExpirationDate = &parsed
		}
	}

	if errAdjust := h.svc.Adjust(c.Request.Context(), c.Param("code"), params); errAdjust != nil {
		switch {
		case errors.Is(errAdjust, giftcard.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errAdjust, giftcard.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": errAdjust.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a gift card by code.
func (h *GiftCardHandler) Delete(c *gin.Context) {
	if errDelete := h.svc.Delete(c.Request.Context(), c.Param("code"), getAdminID(c)); errDelete != nil {
		if errors.Is(errDelete, giftcard.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// formatGiftCard maps a gift card model into a response payload.
func formatGiftCard(card *models.GiftCard) gin.H {
	return gin.H{
		"id":              card.ID,
		"code":            card.Code,
		"balance":         card.Balance.StringFixed(2),
		"expiration_date": formatOptionalDate(card.ExpirationDate),
		"sender_name":     card.SenderName,
		"sender_email":    card.SenderEmail,
		"recipient_email": card.RecipientEmail,
		"message":         card.Message,
		"issued_date":     card.IssuedDate.UTC(),
		"delivery_date":   formatOptionalDate(card.DeliveryDate),
		"gift_card_type":  card.GiftCardType,
		"user_id":         card.UserID,
	}
}

// parseOptionalDate accepts "" as no date and otherwise requires YYYY-MM-DD.
func parseOptionalDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(dateLayout, trimmed, time.UTC)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// formatOptionalDate renders an optional date, with "" for absent.
func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// intQuery parses an integer query parameter with a default.
func intQuery(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	parsed, errParse := strconv.Atoi(raw)
	if errParse != nil || parsed < 0 {
		return def
	}
	return parsed
}

// getAdminID extracts the acting admin ID from gin context.
func getAdminID(c *gin.Context) *uint64 {
	val, exists := c.Get("adminID")
	if !exists {
		return nil
	}
	id, ok := val.(uint64)
	if !ok {
		return nil
	}
	return &id
}
