package model

import "time"

type User struct {
	TelegramID  int64
	Handle      string
	DisplayName string
	ReferredBy  *int64
	JoinTime    time.Time
	Referrals   []int64
}

// UserAttributes is the descriptive data carried by a start event.
type UserAttributes struct {
	Handle      string
	DisplayName string
}

func (u *User) ReferralCount() int {
	return len(u.Referrals)
}

// Clone returns a deep copy so callers never share the referrals slice with a registry.
func (u User) Clone() User {
	out := u
	if u.ReferredBy != nil {
		ref := *u.ReferredBy
		out.ReferredBy = &ref
	}
	if u.Referrals != nil {
		out.Referrals = append([]int64(nil), u.Referrals...)
	}
	return out
}

type ReferrerStanding struct {
	TelegramID    int64
	Handle        string
	DisplayName   string
	ReferralCount int
	JoinTime      time.Time
}
