package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stars_referral_bot/internal/service"
	"stars_referral_bot/pkg/auth"
	"stars_referral_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type userRoutes struct {
	us          service.UserServiceI
	botUsername string
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI, botUsername string, a *auth.TelegramAuth) {
	r := &userRoutes{us: us, botUsername: botUsername}
	h := handler.Group("/users")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/:telegram_id", r.GetUserByTelegramID)
		h.GET("/:telegram_id/referrals", r.GetUserReferrals)
		h.GET("/:telegram_id/invite-link", r.GetInviteLink)
	}
}

type UserResponse struct {
	TelegramID    int64     `json:"telegram_id"`
	Handle        string    `json:"handle"`
	DisplayName   string    `json:"display_name"`
	ReferredBy    *int64    `json:"referred_by"`
	JoinTime      time.Time `json:"join_time"`
	ReferralCount int       `json:"referral_count"`
}

func parseTelegramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		logger.Named("api").Info("failed to parse telegram_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return 0, false
	}
	return id, true
}

func (r *userRoutes) GetUserByTelegramID(c *gin.Context) {
	log := logger.Named("api")

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	user, err := r.us.GetUserByTelegramID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no user associated with the provided telegram_id"})
			return
		}
		log.Error("failed to get user", zap.Int64("telegram_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		TelegramID:    user.TelegramID,
		Handle:        user.Handle,
		DisplayName:   user.DisplayName,
		ReferredBy:    user.ReferredBy,
		JoinTime:      user.JoinTime,
		ReferralCount: user.ReferralCount(),
	})
}

func (r *userRoutes) GetUserReferrals(c *gin.Context) {
	log := logger.Named("api")

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	referrals, err := r.us.GetUserReferrals(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error("failed to get user referrals", zap.Int64("telegram_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_id": id,
		"referrals":   referrals,
	})
}

func (r *userRoutes) GetInviteLink(c *gin.Context) {
	log := logger.Named("api")

	id, ok := parseTelegramID(c)
	if !ok {
		return
	}

	count, err := r.us.ReferralCount(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get referral count", zap.Int64("telegram_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invite_link":    r.us.InviteLink(r.botUsername, id),
		"referral_count": count,
	})
}
