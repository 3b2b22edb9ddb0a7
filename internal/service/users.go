package service

import (
	"context"
	"errors"
	"fmt"

	"stars_referral_bot/internal/model"
	"stars_referral_bot/internal/repository"
)

const DefaultLeaderboardSize = 100

type UserService struct {
	registry UserRegistry
}

func NewUserService(registry UserRegistry) *UserService {
	return &UserService{
		registry: registry,
	}
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.registry.Get(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return &user, nil
}

func (s *UserService) GetUserReferrals(ctx context.Context, telegramID int64) ([]int64, error) {
	user, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user.Referrals == nil {
		return []int64{}, nil
	}
	return user.Referrals, nil
}

// ReferralCount reports zero for users the registry has never seen.
func (s *UserService) ReferralCount(ctx context.Context, telegramID int64) (int, error) {
	user, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return user.ReferralCount(), nil
}

func (s *UserService) InviteLink(botUsername string, telegramID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, telegramID)
}

func (s *UserService) GetLeaderboard(ctx context.Context, limit int) ([]model.ReferrerStanding, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	standings, err := s.registry.TopReferrers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top referrers: %w", err)
	}
	return standings, nil
}
