package api

import (
	"errors"
	"io"
	"net/http"

	"stars_referral_bot/internal/model"
	"stars_referral_bot/internal/service"
	"stars_referral_bot/pkg/auth"
	"stars_referral_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Publisher hands handled start events to the notification pipeline.
type Publisher interface {
	Publish(event model.StartEvent, result *model.StartResult)
}

type startRoutes struct {
	rs  service.ReferralServiceI
	pub Publisher
}

func NewStartRoutes(handler *gin.RouterGroup, rs service.ReferralServiceI, pub Publisher, a *auth.TelegramAuth) {
	r := &startRoutes{rs: rs, pub: pub}
	h := handler.Group("/start")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("", r.Start)
	}
}

type StartRequest struct {
	Referrer *int64 `json:"referrer"`
}

type StartResponse struct {
	TelegramID               int64        `json:"telegram_id"`
	IsNewUser                bool         `json:"is_new_user"`
	ReferralAccepted         bool         `json:"referral_accepted"`
	Reason                   model.Reason `json:"reason,omitempty"`
	ReferrerID               *int64       `json:"referrer_id,omitempty"`
	ReferrerNewReferralCount int          `json:"referrer_new_referral_count"`
}

func (r *startRoutes) Start(c *gin.Context) {
	log := logger.Named("api")

	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		log.Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	event := model.StartEvent{
		UserID: user.ID,
		Attributes: model.UserAttributes{
			Handle:      user.Username,
			DisplayName: user.DisplayName(),
		},
	}
	if req.Referrer != nil && *req.Referrer > 0 {
		event.ClaimedReferrerID = req.Referrer
	}

	result, err := r.rs.HandleStart(c.Request.Context(), event)
	if err != nil {
		log.Error("failed to handle start", zap.Int64("telegram_id", user.ID), zap.Error(err))
		if errors.Is(err, service.ErrRegistryFault) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registry unavailable, try again later"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to handle start"})
		return
	}
	r.pub.Publish(event, result)

	status := http.StatusOK
	if result.IsNewUser {
		status = http.StatusCreated
	}

	c.JSON(status, StartResponse{
		TelegramID:               result.User.TelegramID,
		IsNewUser:                result.IsNewUser,
		ReferralAccepted:         result.ReferralAccepted,
		Reason:                   result.Reason,
		ReferrerID:               result.ReferrerID,
		ReferrerNewReferralCount: result.ReferrerNewReferralCount,
	})
}
