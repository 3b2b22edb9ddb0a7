package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stars_referral_bot/internal/metrics"
	"stars_referral_bot/internal/model"
	"stars_referral_bot/internal/service"
	"stars_referral_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers       = 8
	DefaultUpdateTimeout = 60
)

const (
	updateKindStart    = "start"
	updateKindCallback = "callback"
	updateKindOther    = "other"
)

// Sender is the part of the Bot API used to talk to chats.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Client is a Sender that can also poll for updates. *tgbotapi.BotAPI satisfies it.
type Client interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Publisher interface {
	Publish(event model.StartEvent, result *model.StartResult)
}

type Config struct {
	Token         string `mapstructure:"botToken"`
	LogsChatID    int64  `mapstructure:"logsChatId"`
	SponsorLink   string `mapstructure:"sponsorLink"`
	Debug         bool   `mapstructure:"debug"`
	Workers       int    `mapstructure:"workers"`
	UpdateTimeout int    `mapstructure:"updateTimeout"`
	Timezone      string `mapstructure:"timezone"`
}

type Bot struct {
	client    Client
	username  string
	cfg       Config
	location  *time.Location
	referrals service.ReferralServiceI
	users     service.UserServiceI
	publisher Publisher
}

func New(client Client, username string, cfg Config, loc *time.Location,
	referrals service.ReferralServiceI, users service.UserServiceI, publisher Publisher) *Bot {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = DefaultUpdateTimeout
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Bot{
		client:    client,
		username:  username,
		cfg:       cfg,
		location:  loc,
		referrals: referrals,
		users:     users,
		publisher: publisher,
	}
}

// Run long-polls for updates and handles them on at most cfg.Workers
// goroutines. It returns once ctx is cancelled and in-flight updates finish.
func (b *Bot) Run(ctx context.Context) error {
	log := logger.Named("bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout
	updates := b.client.GetUpdatesChan(u)
	defer b.client.StopReceivingUpdates()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	log.Info("bot started", zap.String("username", b.username), zap.Int("workers", b.cfg.Workers))

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				b.HandleUpdate(gctx, update)
				return nil
			})
		}
	}
}

// HandleUpdate processes a single update. Failures are logged and answered
// with an apology; they never stop the bot.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	log := logger.Named("bot")

	var (
		kind   = updateKindOther
		chatID int64
		err    error
	)

	switch {
	case update.Message != nil && update.Message.IsCommand() && update.Message.Command() == "start":
		kind = updateKindStart
		chatID = update.Message.Chat.ID
		err = b.handleStart(ctx, update.Message)
	case update.CallbackQuery != nil:
		kind = updateKindCallback
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
		err = b.handleCallback(ctx, update.CallbackQuery)
	default:
		metrics.BotUpdates.WithLabelValues(kind, metrics.StatusIgnored).Inc()
		return
	}

	if err != nil {
		metrics.BotUpdates.WithLabelValues(kind, metrics.StatusFailed).Inc()
		log.Error("failed to handle update",
			zap.Int("update_id", update.UpdateID),
			zap.String("kind", kind),
			zap.Error(err))

		if chatID != 0 {
			if _, sendErr := b.client.Send(tgbotapi.NewMessage(chatID, TextTryLater)); sendErr != nil {
				log.Warn("failed to send error reply", zap.Int64("chat_id", chatID), zap.Error(sendErr))
			}
		}
		return
	}
	metrics.BotUpdates.WithLabelValues(kind, metrics.StatusHandled).Inc()
}

// ParseStartPayload extracts the claimed referrer from a /start payload.
// Anything other than a positive decimal id means no referrer was claimed.
func ParseStartPayload(payload string) *int64 {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func attributesOf(user *tgbotapi.User) model.UserAttributes {
	return model.UserAttributes{
		Handle:      user.UserName,
		DisplayName: strings.TrimSpace(user.FirstName + " " + user.LastName),
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	event := model.StartEvent{
		UserID:            msg.From.ID,
		Attributes:        attributesOf(msg.From),
		ClaimedReferrerID: ParseStartPayload(msg.CommandArguments()),
	}

	result, err := b.referrals.HandleStart(ctx, event)
	if err != nil {
		return fmt.Errorf("handle start: %w", err)
	}
	b.publisher.Publish(event, result)

	if result.Reason == model.ReasonSelfReferral {
		if _, err := b.client.Send(tgbotapi.NewMessage(msg.Chat.ID, TextSelfReferral)); err != nil {
			return fmt.Errorf("send self-referral reply: %w", err)
		}
		return nil
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, WelcomeText(msg.From.FirstName))
	reply.ParseMode = tgbotapi.ModeMarkdownV2
	reply.ReplyMarkup = MainMenuKeyboard(b.cfg.SponsorLink)
	if _, err := b.client.Send(reply); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	if cq.From == nil || cq.Message == nil {
		return b.answer(cq.ID)
	}
	userID := cq.From.ID

	var (
		text     string
		keyboard tgbotapi.InlineKeyboardMarkup
	)

	switch cq.Data {
	case ActionMyStats:
		joined := time.Now()
		count := 0
		user, err := b.users.GetUserByTelegramID(ctx, userID)
		switch {
		case err == nil:
			joined = user.JoinTime
			count = user.ReferralCount()
		case errors.Is(err, service.ErrUserNotFound):
		default:
			return fmt.Errorf("load stats: %w", err)
		}
		text = StatsText(userID, joined.In(b.location), count)
		keyboard = StatsKeyboard(b.cfg.SponsorLink)
	case ActionGetInviteLink:
		count, err := b.users.ReferralCount(ctx, userID)
		if err != nil {
			return fmt.Errorf("load referral count: %w", err)
		}
		text = InviteText(b.users.InviteLink(b.username, userID), count)
		keyboard = InviteKeyboard(b.cfg.SponsorLink)
	case ActionBackToMain:
		text = MainMenuText(cq.From.FirstName)
		keyboard = MainMenuKeyboard(b.cfg.SponsorLink)
	default:
		return b.answer(cq.ID)
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, text, keyboard)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.client.Send(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return b.answer(cq.ID)
}

func (b *Bot) answer(callbackID string) error {
	if _, err := b.client.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
