package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"stars_referral_bot/internal/model"
)

// MemoryRegistry keeps users for the lifetime of the process. The map lock
// serializes creation; each entry's own lock serializes its mutations.
type MemoryRegistry struct {
	mu    sync.RWMutex
	users map[int64]*memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	mu   sync.Mutex
	user model.User
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		users: make(map[int64]*memoryEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRegistry) GetOrCreate(_ context.Context, telegramID int64, attrs model.UserAttributes) (model.User, bool, error) {
	if entry, ok := r.lookup(telegramID); ok {
		return entry.snapshot(), false, nil
	}

	r.mu.Lock()
	entry, ok := r.users[telegramID]
	if !ok {
		entry = &memoryEntry{
			user: model.User{
				TelegramID:  telegramID,
				Handle:      attrs.Handle,
				DisplayName: attrs.DisplayName,
				JoinTime:    r.now(),
				Referrals:   []int64{},
			},
		}
		r.users[telegramID] = entry
	}
	r.mu.Unlock()

	return entry.snapshot(), !ok, nil
}

func (r *MemoryRegistry) Get(_ context.Context, telegramID int64) (model.User, error) {
	entry, ok := r.lookup(telegramID)
	if !ok {
		return model.User{}, ErrNotFound
	}
	return entry.snapshot(), nil
}

func (r *MemoryRegistry) RecordReferral(_ context.Context, referrerID, newUserID int64) (bool, error) {
	if referrerID == newUserID {
		return false, nil
	}

	entry, ok := r.lookup(referrerID)
	if !ok {
		return false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if slices.Contains(entry.user.Referrals, newUserID) {
		return false, nil
	}
	entry.user.Referrals = append(entry.user.Referrals, newUserID)

	return true, nil
}

func (r *MemoryRegistry) SetReferredBy(_ context.Context, telegramID, referrerID int64) (bool, error) {
	if telegramID == referrerID {
		return false, nil
	}

	entry, ok := r.lookup(telegramID)
	if !ok {
		return false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.user.ReferredBy != nil {
		return false, nil
	}
	entry.user.ReferredBy = &referrerID

	return true, nil
}

func (r *MemoryRegistry) TopReferrers(_ context.Context, limit int) ([]model.ReferrerStanding, error) {
	r.mu.RLock()
	entries := make([]*memoryEntry, 0, len(r.users))
	for _, entry := range r.users {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	standings := make([]model.ReferrerStanding, 0)
	for _, entry := range entries {
		user := entry.snapshot()
		if user.ReferralCount() == 0 {
			continue
		}
		standings = append(standings, model.ReferrerStanding{
			TelegramID:    user.TelegramID,
			Handle:        user.Handle,
			DisplayName:   user.DisplayName,
			ReferralCount: user.ReferralCount(),
			JoinTime:      user.JoinTime,
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].ReferralCount != standings[j].ReferralCount {
			return standings[i].ReferralCount > standings[j].ReferralCount
		}
		if !standings[i].JoinTime.Equal(standings[j].JoinTime) {
			return standings[i].JoinTime.Before(standings[j].JoinTime)
		}
		return standings[i].TelegramID < standings[j].TelegramID
	})

	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}

	return standings, nil
}

func (r *MemoryRegistry) lookup(telegramID int64) (*memoryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.users[telegramID]
	return entry, ok
}

func (e *memoryEntry) snapshot() model.User {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.user.Clone()
}
