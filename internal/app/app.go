package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumenshop/giftcards/internal/config"
	"github.com/lumenshop/giftcards/internal/db"
	"github.com/lumenshop/giftcards/internal/exchange"
	"github.com/lumenshop/giftcards/internal/giftcard"
	"github.com/lumenshop/giftcards/internal/http/api/admin"
	"github.com/lumenshop/giftcards/internal/http/api/front"
	"github.com/lumenshop/giftcards/internal/models"
	"github.com/lumenshop/giftcards/internal/security"
	"github.com/lumenshop/giftcards/internal/settings"
	"github.com/lumenshop/giftcards/internal/sweep"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the gift card API server with database-backed components.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSnapshot := settings.RefreshDBConfigSnapshot(ctx, conn); errSnapshot != nil {
		return fmt.Errorf("load settings: %w", errSnapshot)
	}
	if errBootstrap := bootstrapAdmin(ctx, conn, cfg); errBootstrap != nil {
		return errBootstrap
	}

	notifier := giftcard.NewLogNotifier()
	svc := giftcard.NewService(conn, notifier)
	reconciler := exchange.NewReconciler(conn, svc.Activity())

	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sweeper := sweep.NewSweeper(svc, notifier)
	admin.RegisterAdminRoutes(engine, conn, cfg.JWT, svc, reconciler, sweeper)
	front.RegisterFrontRoutes(engine, conn, cfg.JWT, svc)
	if sweeper != nil {
		sweeper.Start(ctx)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// bootstrapAdmin creates the configured admin account when no admins exist.
func bootstrapAdmin(ctx context.Context, conn *gorm.DB, cfg *config.Config) error {
	if cfg.Admin.Username == "" || cfg.Admin.Password == "" {
		return nil
	}

	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("count admins: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	hashed, errHash := security.HashPassword(cfg.Admin.Password)
	if errHash != nil {
		return fmt.Errorf("hash admin password: %w", errHash)
	}
	adminRow := models.Admin{
		Username: cfg.Admin.Username,
		Password: hashed,
		Active:   true,
	}
	if errCreate := conn.WithContext(ctx).Create(&adminRow).Error; errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}
	log.Infof("bootstrapped admin account %q", cfg.Admin.Username)
	return nil
}
