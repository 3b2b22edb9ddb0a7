package api

import (
	"net/http"
	"strconv"
	"time"

	"stars_referral_bot/internal/metrics"
	"stars_referral_bot/internal/middleware"
	"stars_referral_bot/internal/service"
	"stars_referral_bot/pkg/auth"
	"stars_referral_bot/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Referrals     service.ReferralServiceI
	Users         service.UserServiceI
	Publisher     Publisher
	Feed          *ReferralFeed
	Auth          *auth.TelegramAuth
	Authorization *middleware.Authorization
	BotUsername   string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
	}
	config.AllowHeaders = []string{"*"}
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a := router.Group("/api/v1")
	NewStartRoutes(a, deps.Referrals, deps.Publisher, deps.Auth)
	NewUserRoutes(a, deps.Users, deps.BotUsername, deps.Auth)
	NewFeedRoutes(a, deps.Feed, deps.Auth)
	NewAdminRoutes(a, deps.Users, deps.Auth, deps.Authorization)

	return router
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()

		logger.Named("http").Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)))
	}
}
