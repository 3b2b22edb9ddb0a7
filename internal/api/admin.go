package api

import (
	"net/http"
	"strconv"
	"time"

	"stars_referral_bot/internal/middleware"
	"stars_referral_bot/internal/service"
	"stars_referral_bot/pkg/auth"
	"stars_referral_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type adminRoutes struct {
	us service.UserServiceI
}

func NewAdminRoutes(handler *gin.RouterGroup, us service.UserServiceI, a *auth.TelegramAuth, authz *middleware.Authorization) {
	r := &adminRoutes{us: us}
	h := handler.Group("/admin")
	h.Use(a.TelegramAuthMiddleware(), authz.AdminOnly())
	{
		h.GET("/leaderboard", r.GetLeaderboard)
	}
}

type leaderboardEntry struct {
	Rank          int       `json:"rank"`
	TelegramID    int64     `json:"telegram_id"`
	Handle        string    `json:"handle"`
	DisplayName   string    `json:"display_name"`
	ReferralCount int       `json:"referral_count"`
	JoinTime      time.Time `json:"join_time"`
}

func (r *adminRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Named("api")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	standings, err := r.us.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	out := make([]leaderboardEntry, len(standings))
	for i, s := range standings {
		out[i] = leaderboardEntry{
			Rank:          i + 1,
			TelegramID:    s.TelegramID,
			Handle:        s.Handle,
			DisplayName:   s.DisplayName,
			ReferralCount: s.ReferralCount,
			JoinTime:      s.JoinTime,
		}
	}

	c.JSON(http.StatusOK, out)
}
