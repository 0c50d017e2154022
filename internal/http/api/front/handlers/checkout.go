package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/lumenshop/giftcards/internal/giftcard"
)

// CheckoutHandler applies gift card balance at checkout.
type CheckoutHandler struct {
	svc *giftcard.Service
}

// NewCheckoutHandler wires the checkout handler.
func NewCheckoutHandler(svc *giftcard.Service) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

// previewRequest defines the body for a discount preview.
type previewRequest struct {
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	CartTotal       decimal.Decimal `json:"cart_total"`
}

// commitRequest defines the body for a final redemption.
type commitRequest struct {
	OrderID         string          `json:"order_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	CartTotal       decimal.Decimal `json:"cart_total"`
}

// Preview computes the discount that would apply, without deducting.
func (h *CheckoutHandler) Preview(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body previewRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	redemption, errPreview := h.svc.PreviewDiscount(c.Request.Context(), userID, body.RequestedAmount, body.CartTotal)
	if errPreview != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preview failed"})
		return
	}
	c.JSON(http.StatusOK, formatRedemption(redemption))
}

// Commit deducts gift card balance for a completed order. Repeating the same
// order_id returns the originally applied amount without deducting again.
func (h *CheckoutHandler) Commit(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body commitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.OrderID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order_id"})
		return
	}

	redemption, errCommit := h.svc.CommitRedemption(c.Request.Context(), body.OrderID, userID, body.RequestedAmount, body.CartTotal)
	if errCommit != nil {
		if errors.Is(errCommit, giftcard.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errCommit.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "commit failed"})
		return
	}
	c.JSON(http.StatusOK, formatRedemption(redemption))
}

// formatRedemption maps a redemption outcome into a response payload.
func formatRedemption(r *giftcard.Redemption) gin.H {
	deductions := make([]gin.H, 0, len(r.Deductions))
	for _, d := range r.Deductions {
		deductions = append(deductions, gin.H{
			"code":   maskCode(d.Code),
			"amount": d.Amount.StringFixed(2),
		})
	}
	out := gin.H{
		"applied":    r.Applied.StringFixed(2),
		"deductions": deductions,
	}
	if r.OrderID != "" {
		out["order_id"] = r.OrderID
	}
	if r.Replayed {
		out["replayed"] = true
	}
	return out
}
