package service

import (
	"context"
	"errors"

	"stars_referral_bot/internal/model"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrRegistryFault = errors.New("user registry unavailable")
)

type Service struct {
	*ReferralService
	*UserService
}

func NewService(referralService *ReferralService, userService *UserService) *Service {
	return &Service{
		ReferralService: referralService,
		UserService:     userService,
	}
}

// UserRegistry owns the set of known participants. Returned errors are faults
// only; business outcomes are reported through the boolean results.
// Get returns an error satisfying errors.Is(err, repository.ErrNotFound) for unknown ids.
type UserRegistry interface {
	GetOrCreate(ctx context.Context, telegramID int64, attrs model.UserAttributes) (model.User, bool, error)
	Get(ctx context.Context, telegramID int64) (model.User, error)
	RecordReferral(ctx context.Context, referrerID, newUserID int64) (bool, error)
	SetReferredBy(ctx context.Context, telegramID, referrerID int64) (bool, error)
	TopReferrers(ctx context.Context, limit int) ([]model.ReferrerStanding, error)
}

type ReferralServiceI interface {
	HandleStart(ctx context.Context, event model.StartEvent) (*model.StartResult, error)
}

type UserServiceI interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetUserReferrals(ctx context.Context, telegramID int64) ([]int64, error)
	ReferralCount(ctx context.Context, telegramID int64) (int, error)
	InviteLink(botUsername string, telegramID int64) string
	GetLeaderboard(ctx context.Context, limit int) ([]model.ReferrerStanding, error)
}
