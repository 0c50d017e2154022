package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/models"
)

// ActivityHandler serves the append-only activity log to admins.
type ActivityHandler struct {
	db *gorm.DB
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler(db *gorm.DB) *ActivityHandler {
	return &ActivityHandler{db: db}
}

// List returns activity entries, newest first, filtered by query parameters.
func (h *ActivityHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.ActivityLog{})
	if actionType := strings.TrimSpace(c.Query("action_type")); actionType != "" {
		q = q.Where("action_type = ?", actionType)
	}
	if code := strings.TrimSpace(c.Query("code")); code != "" {
		q = q.Where("code = ?", giftcard.NormalizeCode(code))
	}

	var rows []models.ActivityLog
	if errFind := q.Order("action_date DESC, id DESC").
		Limit(intQuery(c, "limit", 100)).
		Offset(intQuery(c, "offset", 0)).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list activity failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		item := gin.H{
			"id":          row.ID,
			"action_type": row.ActionType,
			"code":        row.Code,
			"user_id":     row.UserID,
			"action_date": row.ActionDate.UTC(),
		}
		if row.Amount.Valid {
			item["amount"] = row.Amount.Decimal.StringFixed(2)
		} else {
			item["amount"] = nil
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"activity": out})
}
