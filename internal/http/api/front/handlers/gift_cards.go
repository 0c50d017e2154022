package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/models"
)

const dateLayout = "2006-01-02"

// GiftCardFrontHandler handles gift card reads for storefront customers.
type GiftCardFrontHandler struct {
	svc *giftcard.Service
}

// NewGiftCardFrontHandler wires the storefront gift card handler.
func NewGiftCardFrontHandler(svc *giftcard.Service) *GiftCardFrontHandler {
	return &GiftCardFrontHandler{svc: svc}
}

// List returns the caller's gift cards that still hold balance.
func (h *GiftCardFrontHandler) List(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	rows, errList := h.svc.CardsForUser(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list gift cards failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatOwnCard(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"gift_cards": out})
}

// Balance returns the caller's total remaining balance across cards.
func (h *GiftCardFrontHandler) Balance(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	total, errSum := h.svc.TotalBalance(c.Request.Context(), userID)
	if errSum != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sum balances failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": total.StringFixed(2)})
}

// formatOwnCard renders a card for its owner. Sender details stay visible;
// internal IDs do not.
func formatOwnCard(card *models.GiftCard) gin.H {
	return gin.H{
		"code":            maskCode(card.Code),
		"balance":         card.Balance.StringFixed(2),
		"expiration_date": formatDate(card.ExpirationDate),
		"sender_name":     card.SenderName,
		"message":         card.Message,
		"issued_date":     card.IssuedDate.UTC().Format(dateLayout),
	}
}

// maskCode hides all but the last four characters of a card code.
func maskCode(code string) string {
	if len(code) <= 4 {
		return code
	}
	return strings.Repeat("*", len(code)-4) + code[len(code)-4:]
}

// formatDate renders an optional date, with "" for absent.
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
