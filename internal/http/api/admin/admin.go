package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/config"
	"github.com/lumenshop/giftcards/internal/exchange"
	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/http/api/admin/handlers"
	"github.com/lumenshop/giftcards/internal/models"
	"github.com/lumenshop/giftcards/internal/security"
	"github.com/lumenshop/giftcards/internal/sweep"
)

// RegisterAdminRoutes registers the management API under /v0/admin.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *giftcard.Service, rec *exchange.Reconciler, sweeper *sweep.Sweeper) {
	if r == nil || db == nil || svc == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	cardHandler := handlers.NewGiftCardHandler(svc)
	authed.POST("/gift-cards", cardHandler.Create)
	authed.GET("/gift-cards", cardHandler.List)
	authed.GET("/gift-cards/:code", cardHandler.Get)
	authed.PUT("/gift-cards/:code", cardHandler.Update)
	authed.DELETE("/gift-cards/:code", cardHandler.Delete)

	activityHandler := handlers.NewActivityHandler(db)
	authed.GET("/activity", activityHandler.List)

	exchangeHandler := handlers.NewExchangeHandler(rec)
	authed.GET("/export", exchangeHandler.Export)
	authed.POST("/import", exchangeHandler.Import)

	sweepHandler := handlers.NewSweepHandler(sweeper)
	authed.POST("/sweeps/reminders", sweepHandler.RunReminders)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.List)
	authed.PUT("/settings", settingsHandler.Update)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
