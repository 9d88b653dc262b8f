package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/handler/http/middleware"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/rate"
)

// SetupRouter wires the HTTP surface.
func SetupRouter(
	mfaHandler *MFAHandler,
	adminHandler *AdminHandler,
	limiter *rate.Limiter,
	dbPool *pgxpool.Pool,
	redisClient *redis.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CorsMiddleware())
	if cfg.Metrics.Enabled {
		router.Use(middleware.MetricsMiddleware())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readiness", func(c *gin.Context) {
		if err := dbPool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "redis"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		mfa := api.Group("/mfa")
		mfa.Use(middleware.RateLimitMiddleware(limiter))
		{
			// Verify authenticates through the challenge token when the
			// gateway header is absent, so it sits outside the identity
			// middleware.
			mfa.POST("/verify", mfaHandler.Verify)

			authed := mfa.Group("/")
			authed.Use(middleware.UserIdentityMiddleware(logger))
			{
				authed.GET("/status", mfaHandler.GetStatus)
				authed.GET("/methods", mfaHandler.ListMethods)
				authed.POST("/methods/:methodId/primary", mfaHandler.SetPrimaryMethod)
				authed.POST("/totp/enroll", mfaHandler.EnrollTOTP)
				authed.POST("/totp/activate", mfaHandler.ActivateMethod)
				authed.POST("/channel/enroll", mfaHandler.EnrollChannel)
				authed.POST("/channel/activate", mfaHandler.ActivateMethod)
				authed.POST("/challenge", mfaHandler.Challenge)
				authed.POST("/challenge/send", mfaHandler.SendChallengeCode)
				authed.POST("/disable", mfaHandler.Disable)
				authed.POST("/backup-codes/regenerate", mfaHandler.RegenerateBackupCodes)
				authed.PATCH("/settings", mfaHandler.UpdateSettings)
				authed.GET("/devices", mfaHandler.ListDevices)
				authed.DELETE("/devices/:deviceId", mfaHandler.RevokeDevice)
			}
		}

		admin := api.Group("/admin")
		admin.Use(middleware.UserIdentityMiddleware(logger))
		admin.Use(middleware.RoleMiddleware("admin", logger))
		{
			admin.POST("/users/:userId/mfa/unlock", adminHandler.UnlockUser)
			admin.POST("/users/:userId/mfa/enforce", adminHandler.SetEnforced)
			admin.POST("/users/:userId/mfa/devices/revoke", adminHandler.RevokeUserDevices)
		}
	}

	return router
}
