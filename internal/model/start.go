package model

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonReturningUser     Reason = "ReturningUser"
	ReasonSelfReferral      Reason = "SelfReferral"
	ReasonAlreadyAttributed Reason = "AlreadyAttributed"
	ReasonReferrerUnknown   Reason = "ReferrerUnknown"
)

// StartEvent is an inbound "user started" event. ClaimedReferrerID is nil when
// the invite payload was absent or unusable.
type StartEvent struct {
	UserID            int64
	Attributes        UserAttributes
	ClaimedReferrerID *int64
}

type StartResult struct {
	User                     User
	IsNewUser                bool
	ReferralAccepted         bool
	Reason                   Reason
	ReferrerID               *int64
	ReferrerNewReferralCount int
}

// NotifyReferrer reports whether the referrer should hear about this result.
func (r *StartResult) NotifyReferrer() bool {
	return r.ReferralAccepted && r.ReferrerID != nil && r.Reason != ReasonReferrerUnknown
}
