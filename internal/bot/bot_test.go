package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"stars_referral_bot/internal/model"
	"stars_referral_bot/internal/repository"
	"stars_referral_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *mockClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *mockClient) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.Chat), args.Error(1)
}

func (m *mockClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *mockClient) StopReceivingUpdates() {
	m.Called()
}

type published struct {
	event  model.StartEvent
	result *model.StartResult
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *recordingPublisher) Publish(event model.StartEvent, result *model.StartResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{event: event, result: result})
}

type failingReferrals struct{}

func (failingReferrals) HandleStart(context.Context, model.StartEvent) (*model.StartResult, error) {
	return nil, service.ErrRegistryFault
}

func startUpdate(userID int64, payload string) tgbotapi.Update {
	text := "/start"
	if payload != "" {
		text += " " + payload
	}
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: userID, FirstName: "Ivan", LastName: "Petrov", UserName: "ivan"},
			Chat:      &tgbotapi.Chat{ID: userID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/start")}},
		},
	}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: userID, FirstName: "Ivan"},
			Message: &tgbotapi.Message{MessageID: 42, Chat: &tgbotapi.Chat{ID: userID}},
			Data:    data,
		},
	}
}

func sentText(chatID int64, contains string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
		return c.ChatID == chatID && strings.Contains(c.Text, contains)
	})
}

func newTestBot(client *mockClient, referrals service.ReferralServiceI, users service.UserServiceI) (*Bot, *recordingPublisher) {
	pub := &recordingPublisher{}
	b := New(client, "stars_bot", Config{SponsorLink: "https://t.me/sponsor"}, time.UTC, referrals, users, pub)
	return b, pub
}

func TestParseStartPayload(t *testing.T) {
	tests := []struct {
		payload  string
		expected *int64
	}{
		{payload: "", expected: nil},
		{payload: "   ", expected: nil},
		{payload: "abc", expected: nil},
		{payload: "12abc", expected: nil},
		{payload: "-5", expected: nil},
		{payload: "0", expected: nil},
		{payload: "99999999999999999999", expected: nil},
		{payload: "100", expected: int64Ptr(100)},
		{payload: " 7 ", expected: int64Ptr(7)},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseStartPayload(tt.payload))
		})
	}
}

func TestHandleUpdate_StartWithReferrer(t *testing.T) {
	ctx := context.Background()
	registry := repository.NewMemoryRegistry()
	client := &mockClient{}
	b, pub := newTestBot(client, service.NewReferralService(registry), service.NewUserService(registry))

	client.On("Send", sentText(100, "Добро пожаловать")).Return(tgbotapi.Message{}, nil).Once()
	client.On("Send", sentText(200, "Добро пожаловать")).Return(tgbotapi.Message{}, nil).Once()

	b.HandleUpdate(ctx, startUpdate(100, ""))
	b.HandleUpdate(ctx, startUpdate(200, "100"))

	require.Len(t, pub.calls, 2)
	second := pub.calls[1]
	require.NotNil(t, second.event.ClaimedReferrerID)
	assert.Equal(t, int64(100), *second.event.ClaimedReferrerID)
	assert.Equal(t, "Ivan Petrov", second.event.Attributes.DisplayName)
	assert.Equal(t, "ivan", second.event.Attributes.Handle)
	assert.True(t, second.result.ReferralAccepted)
	assert.Equal(t, 1, second.result.ReferrerNewReferralCount)

	client.AssertExpectations(t)
}

func TestHandleUpdate_SelfReferral(t *testing.T) {
	registry := repository.NewMemoryRegistry()
	client := &mockClient{}
	b, pub := newTestBot(client, service.NewReferralService(registry), service.NewUserService(registry))

	client.On("Send", sentText(300, TextSelfReferral)).Return(tgbotapi.Message{}, nil).Once()

	b.HandleUpdate(context.Background(), startUpdate(300, "300"))

	require.Len(t, pub.calls, 1)
	assert.Equal(t, model.ReasonSelfReferral, pub.calls[0].result.Reason)
	client.AssertExpectations(t)
}

func TestHandleUpdate_FaultRepliesWithApology(t *testing.T) {
	registry := repository.NewMemoryRegistry()
	client := &mockClient{}
	b, pub := newTestBot(client, failingReferrals{}, service.NewUserService(registry))

	client.On("Send", sentText(500, TextTryLater)).Return(tgbotapi.Message{}, nil).Once()

	b.HandleUpdate(context.Background(), startUpdate(500, "100"))

	assert.Empty(t, pub.calls)
	client.AssertExpectations(t)
}

func TestHandleUpdate_IgnoresPlainMessages(t *testing.T) {
	client := &mockClient{}
	registry := repository.NewMemoryRegistry()
	b, pub := newTestBot(client, service.NewReferralService(registry), service.NewUserService(registry))

	b.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}, From: &tgbotapi.User{ID: 1}},
	})

	assert.Empty(t, pub.calls)
	client.AssertNotCalled(t, "Send", mock.Anything)
}

func TestHandleUpdate_Callbacks(t *testing.T) {
	ctx := context.Background()
	registry := repository.NewMemoryRegistry()
	referrals := service.NewReferralService(registry)
	_, err := referrals.HandleStart(ctx, model.StartEvent{UserID: 100})
	require.NoError(t, err)
	_, err = referrals.HandleStart(ctx, model.StartEvent{UserID: 200, ClaimedReferrerID: int64Ptr(100)})
	require.NoError(t, err)

	tests := []struct {
		name     string
		data     string
		contains string
	}{
		{name: "stats", data: ActionMyStats, contains: "Рефералов\\: *1*"},
		{name: "invite link", data: ActionGetInviteLink, contains: "https://t\\.me/stars\\_bot?start\\=100"},
		{name: "back to main", data: ActionBackToMain, contains: "вы участвуете в розыгрыше"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{}
			b, _ := newTestBot(client, referrals, service.NewUserService(registry))

			client.On("Send", mock.MatchedBy(func(c tgbotapi.EditMessageTextConfig) bool {
				return c.ChatID == 100 && c.MessageID == 42 &&
					c.ParseMode == tgbotapi.ModeMarkdownV2 &&
					strings.Contains(c.Text, tt.contains)
			})).Return(tgbotapi.Message{}, nil).Once()
			client.On("Request", tgbotapi.NewCallback("cb-1", "")).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

			b.HandleUpdate(ctx, callbackUpdate(100, tt.data))

			client.AssertExpectations(t)
		})
	}
}

func TestHandleUpdate_UnknownCallbackIsAnswered(t *testing.T) {
	registry := repository.NewMemoryRegistry()
	client := &mockClient{}
	b, _ := newTestBot(client, service.NewReferralService(registry), service.NewUserService(registry))

	client.On("Request", tgbotapi.NewCallback("cb-1", "")).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	b.HandleUpdate(context.Background(), callbackUpdate(100, "unknown"))

	client.AssertExpectations(t)
	client.AssertNotCalled(t, "Send", mock.Anything)
}

func TestRun_StopsWhenUpdatesClose(t *testing.T) {
	registry := repository.NewMemoryRegistry()
	client := &mockClient{}
	b, pub := newTestBot(client, service.NewReferralService(registry), service.NewUserService(registry))

	updates := make(chan tgbotapi.Update, 2)
	updates <- startUpdate(1, "")
	updates <- startUpdate(2, "1")
	close(updates)

	client.On("GetUpdatesChan", mock.Anything).Return(tgbotapi.UpdatesChannel(updates)).Once()
	client.On("StopReceivingUpdates").Return().Once()
	client.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil)

	require.NoError(t, b.Run(context.Background()))

	assert.Len(t, pub.calls, 2)
	client.AssertExpectations(t)
}

func int64Ptr(v int64) *int64 { return &v }
