package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenshop/giftcards/internal/models"
	"github.com/lumenshop/giftcards/internal/settings"
)

// SettingsHandler manages DB-backed runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns all stored settings.
func (h *SettingsHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list settings failed"})
		return
	}

	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// Update upserts the provided settings and refreshes the in-memory snapshot.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings to update"})
		return
	}

	rows := make([]models.Setting, 0, len(body))
	for key, value := range body {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty setting key"})
			return
		}
		rows = append(rows, models.Setting{Key: trimmed, Value: value})
	}

	if errSave := h.db.WithContext(c.Request.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rows).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save settings failed"})
		return
	}

	if errRefresh := settings.RefreshDBConfigSnapshot(c.Request.Context(), h.db); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings: snapshot refresh failed")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
