package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/aishort/config"
	"github.com/cppla/aishort/controllers"
	"github.com/cppla/aishort/middleware"
	"github.com/cppla/aishort/services"
	"github.com/cppla/aishort/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, shortener *services.Shortener) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Sugar.Warnf("gin access log falls back to the application logger: %v", err)
		gl = utils.Named("gin")
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// wildcard origins cannot carry credentials
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	urlController := controllers.NewURLController(shortener, cfg.BaseURL, cfg.IsAdmin, utils.Named("http"))
	statsController := controllers.NewStatsController(shortener)

	authRequired := middleware.AuthRequired(cfg.JWTSecret)
	writeLimit := middleware.RateLimitMiddleware(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")
	api.POST("/urls", writeLimit, middleware.AuthOptional(cfg.JWTSecret), urlController.CreateURL)
	api.GET("/urls/:alias", urlController.GetURL)
	api.GET("/stats", statsController.GetStats)

	protected := api.Group("")
	protected.Use(authRequired, writeLimit)
	protected.DELETE("/urls/:alias", urlController.DeleteURL)
	protected.GET("/users/me/urls", urlController.ListMyURLs)

	admin := api.Group("/admin")
	admin.Use(authRequired, middleware.AdminRequired(cfg.IsAdmin))
	admin.DELETE("/urls/:alias", urlController.PurgeURL)

	r.GET("/:alias", urlController.Redirect)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40401, "short url not found")
	})

	return r
}
