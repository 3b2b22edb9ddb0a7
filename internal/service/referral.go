package service

import (
	"context"
	"errors"
	"fmt"

	"stars_referral_bot/internal/metrics"
	"stars_referral_bot/internal/model"
	"stars_referral_bot/pkg/logger"

	"go.uber.org/zap"
)

// ReferralService decides whether a claimed referral is valid and new and
// applies it exactly once. It never performs network I/O.
type ReferralService struct {
	registry UserRegistry
}

func NewReferralService(registry UserRegistry) *ReferralService {
	return &ReferralService{
		registry: registry,
	}
}

func (s *ReferralService) HandleStart(ctx context.Context, event model.StartEvent) (*model.StartResult, error) {
	user, isNew, err := s.registry.GetOrCreate(ctx, event.UserID, event.Attributes)
	if err != nil {
		return nil, registryFault("register user", err)
	}

	result := &model.StartResult{
		User:      user,
		IsNewUser: isNew,
	}

	if err := s.attribute(ctx, event, result); err != nil {
		return nil, err
	}

	metrics.StartEvents.WithLabelValues(outcome(result)).Inc()
	logger.Logger().Debug("start event handled",
		zap.Int64("telegram_id", event.UserID),
		zap.Bool("is_new_user", result.IsNewUser),
		zap.Bool("referral_accepted", result.ReferralAccepted),
		zap.String("reason", string(result.Reason)),
		zap.Int("referrer_count", result.ReferrerNewReferralCount))

	return result, nil
}

func (s *ReferralService) attribute(ctx context.Context, event model.StartEvent, result *model.StartResult) error {
	if !result.IsNewUser {
		result.Reason = model.ReasonReturningUser
		return nil
	}

	if event.ClaimedReferrerID == nil {
		return nil
	}
	referrerID := *event.ClaimedReferrerID

	if referrerID == event.UserID {
		result.Reason = model.ReasonSelfReferral
		return nil
	}

	// SetReferredBy is the only gate that authorizes a RecordReferral call for this user.
	set, err := s.registry.SetReferredBy(ctx, event.UserID, referrerID)
	if err != nil {
		return registryFault("set referrer", err)
	}
	if !set {
		result.Reason = model.ReasonAlreadyAttributed
		return nil
	}

	result.ReferralAccepted = true
	result.ReferrerID = &referrerID
	result.User.ReferredBy = &referrerID

	added, err := s.registry.RecordReferral(ctx, referrerID, event.UserID)
	if err != nil {
		return registryFault("record referral", err)
	}
	if !added {
		result.Reason = model.ReasonReferrerUnknown
		return nil
	}

	referrer, err := s.registry.Get(ctx, referrerID)
	if err != nil {
		return registryFault("load referrer", err)
	}
	result.ReferrerNewReferralCount = referrer.ReferralCount()

	return nil
}

func registryFault(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrRegistryFault, err))
}

func outcome(r *model.StartResult) string {
	switch {
	case !r.IsNewUser:
		return metrics.OutcomeReturningUser
	case r.Reason == model.ReasonSelfReferral:
		return metrics.OutcomeSelfReferral
	case r.Reason == model.ReasonAlreadyAttributed:
		return metrics.OutcomeAlreadyAttributed
	case r.Reason == model.ReasonReferrerUnknown:
		return metrics.OutcomeReferrerUnknown
	case r.ReferralAccepted:
		return metrics.OutcomeReferralAccepted
	default:
		return metrics.OutcomeNewUser
	}
}
