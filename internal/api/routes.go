package api

import (
	"github.com/gin-gonic/gin"

	"github.com/courtlens/courtlens/internal/captcha"
	"github.com/courtlens/courtlens/internal/config"
	"github.com/courtlens/courtlens/internal/court"
	"github.com/courtlens/courtlens/internal/querylog"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

// SetupRoutes configures all application routes.
func SetupRoutes(router *gin.Engine, res resolver.Resolver, store *querylog.Store, sessions *captcha.SessionStore, pdf *court.PDFFetcher, logger *logger.Logger, cfg *config.Config) {
	h := NewHandlers(res, store, sessions, pdf, logger, cfg)

	api := router.Group("/api")
	{
		// Health check
		api.GET("/health", h.HealthCheck)

		// Case endpoints
		api.POST("/case", h.SearchCase)
		api.POST("/cases/bulk", h.BulkSearch)

		// Query log
		api.GET("/log", h.ListQueries)

		// CAPTCHA endpoints
		api.GET("/captcha/new", h.NewCaptcha)
		api.GET("/captcha/:id", h.GetCaptcha)
		api.POST("/captcha/:id/solve", h.SolveCaptcha)
		api.POST("/captcha/verify", h.VerifyCaptcha)

		// Order documents
		api.GET("/orders/pdf", h.OrderPDF)
	}
}
