package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenshop/giftcards/internal/settings"
	"github.com/lumenshop/giftcards/internal/sweep"
)

// SweepHandler lets admins trigger sweeps outside the daily schedule.
type SweepHandler struct {
	sweeper *sweep.Sweeper
}

// NewSweepHandler constructs a SweepHandler.
func NewSweepHandler(sweeper *sweep.Sweeper) *SweepHandler {
	return &SweepHandler{sweeper: sweeper}
}

// RunReminders runs the expiry reminder sweep immediately.
func (h *SweepHandler) RunReminders(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweeper not running"})
		return
	}
	days := intQuery(c, "days", settings.ExpiryReminderDays())
	sent := h.sweeper.RunReminders(c.Request.Context(), days)
	c.JSON(http.StatusOK, gin.H{"reminders_sent": sent, "days": days})
}
