package bot

import (
	"context"
	"fmt"
	"time"

	"stars_referral_bot/internal/model"
	"stars_referral_bot/internal/notify"
	"stars_referral_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	profileCacheSize = 1024
	profileCacheTTL  = 30 * time.Minute
)

// Notifier delivers notification intents to Telegram chats.
type Notifier struct {
	sender     Sender
	logsChatID int64
	location   *time.Location
	profiles   *expirable.LRU[int64, Profile]
}

func NewNotifier(sender Sender, logsChatID int64, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		sender:     sender,
		logsChatID: logsChatID,
		location:   loc,
		profiles:   expirable.NewLRU[int64, Profile](profileCacheSize, nil, profileCacheTTL),
	}
}

// Register attaches the notifier's sinks to d. The audit sink is only
// registered when a logs chat is configured.
func (n *Notifier) Register(d *notify.Dispatcher) {
	d.Register(notify.KindReferrerNotification, notify.SinkFunc(n.NotifyReferrer))
	if n.logsChatID != 0 {
		d.Register(notify.KindAudit, notify.SinkFunc(n.Audit))
	}
}

func (n *Notifier) NotifyReferrer(ctx context.Context, intent notify.Intent) error {
	if intent.Result.ReferrerID == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(*intent.Result.ReferrerID, ReferrerNotificationText(intent.Result.ReferrerNewReferralCount))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("notify referrer %d: %w", *intent.Result.ReferrerID, err)
	}
	return nil
}

// Audit posts a record of a new participant to the logs chat, falling back
// to plain text when the formatted message is rejected.
func (n *Notifier) Audit(ctx context.Context, intent notify.Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	user := profileFromUser(intent.Result.User)

	var (
		inviterID      *int64
		inviter        *Profile
		inviterUnknown bool
	)
	if claimed := intent.Event.ClaimedReferrerID; claimed != nil && intent.Result.Reason != model.ReasonSelfReferral {
		inviterID = claimed
		inviterUnknown = intent.Result.Reason == model.ReasonReferrerUnknown
		if p, err := n.profile(*claimed); err == nil {
			inviter = &p
		}
	}

	msg := tgbotapi.NewMessage(n.logsChatID,
		NewUserLogText(user, intent.Result.User.JoinTime.In(n.location), inviterID, inviter, inviterUnknown))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := n.sender.Send(msg)
	if err == nil {
		return nil
	}
	logger.Named("bot").Warn("formatted audit message rejected, sending plain text",
		zap.Int64("telegram_id", user.ID), zap.Error(err))

	if _, err := n.sender.Send(tgbotapi.NewMessage(n.logsChatID, NewUserLogPlainText(user))); err != nil {
		return fmt.Errorf("send audit log: %w", err)
	}
	return nil
}

func (n *Notifier) profile(telegramID int64) (Profile, error) {
	if p, ok := n.profiles.Get(telegramID); ok {
		return p, nil
	}

	chat, err := n.sender.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: telegramID},
	})
	if err != nil {
		return Profile{}, err
	}

	p := Profile{ID: chat.ID, Username: chat.UserName, FirstName: chat.FirstName}
	n.profiles.Add(telegramID, p)
	return p, nil
}

func profileFromUser(u model.User) Profile {
	return Profile{ID: u.TelegramID, Username: u.Handle, FirstName: u.DisplayName}
}
