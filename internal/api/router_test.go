package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"stars_referral_bot/internal/middleware"
	"stars_referral_bot/internal/model"
	"stars_referral_bot/internal/notify"
	"stars_referral_bot/internal/repository"
	"stars_referral_bot/internal/service"
	"stars_referral_bot/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID int64 = 1

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.StartEvent
}

func (p *recordingPublisher) Publish(event model.StartEvent, _ *model.StartResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type faultyReferrals struct{}

func (faultyReferrals) HandleStart(context.Context, model.StartEvent) (*model.StartResult, error) {
	return nil, fmt.Errorf("handle start: %w", service.ErrRegistryFault)
}

type testEnv struct {
	router    *gin.Engine
	registry  *repository.MemoryRegistry
	publisher *recordingPublisher
	feed      *ReferralFeed
}

func newTestEnv(t *testing.T, referrals service.ReferralServiceI) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := repository.NewMemoryRegistry()
	if referrals == nil {
		referrals = service.NewReferralService(registry)
	}
	env := &testEnv{
		registry:  registry,
		publisher: &recordingPublisher{},
		feed:      NewReferralFeed(),
	}
	env.router = NewRouter(RouterDeps{
		Referrals:     referrals,
		Users:         service.NewUserService(registry),
		Publisher:     env.publisher,
		Feed:          env.feed,
		Auth:          auth.NewTelegramAuth("token", true),
		Authorization: middleware.NewAuthorization([]int64{adminID}),
		BotUsername:   "stars_bot",
	})
	return env
}

func authHeader(telegramID int64) string {
	return "Telegram " + url.Values{
		"auth_date": {"1700000000"},
		"user":      {fmt.Sprintf(`{"id":%d,"username":"user%d","first_name":"User"}`, telegramID, telegramID)},
	}.Encode()
}

func (e *testEnv) do(method, target string, asUser int64, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	if asUser != 0 {
		req.Header.Set("Authorization", authHeader(asUser))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRouter_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", 0, "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/metrics", 0, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/v1/start", 0, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/users/1", 0, "").Code)
}

func TestStartRoutes_Start(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/start", 100, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/api/v1/start", 200, `{"referrer":100}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(200), resp.TelegramID)
	assert.True(t, resp.IsNewUser)
	assert.True(t, resp.ReferralAccepted)
	require.NotNil(t, resp.ReferrerID)
	assert.Equal(t, int64(100), *resp.ReferrerID)
	assert.Equal(t, 1, resp.ReferrerNewReferralCount)

	w = env.do(http.MethodPost, "/api/v1/start", 200, `{"referrer":100}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsNewUser)
	assert.Equal(t, model.ReasonReturningUser, resp.Reason)

	assert.Len(t, env.publisher.events, 3)
	assert.Equal(t, "user200", env.publisher.events[1].Attributes.Handle)
}

func TestStartRoutes_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/start", 100, `{"referrer":"x"}`).Code)

	env = newTestEnv(t, faultyReferrals{})
	w := env.do(http.MethodPost, "/api/v1/start", 100, `{"referrer":5}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, env.publisher.events)
}

func TestUserRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/start", 100, "").Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/start", 200, `{"referrer":100}`).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/start", 300, `{"referrer":100}`).Code)

	t.Run("get user", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/users/200", 200, "")
		require.Equal(t, http.StatusOK, w.Code)

		var user UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, int64(200), user.TelegramID)
		require.NotNil(t, user.ReferredBy)
		assert.Equal(t, int64(100), *user.ReferredBy)
		assert.Equal(t, 0, user.ReferralCount)
	})

	t.Run("unknown user", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/users/999", 200, "").Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/users/999/referrals", 200, "").Code)
	})

	t.Run("bad id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/users/abc", 200, "").Code)
	})

	t.Run("referrals", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/users/100/referrals", 100, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"telegram_id":100,"referrals":[200,300]}`, w.Body.String())
	})

	t.Run("invite link", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/users/100/invite-link", 100, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"invite_link":"https://t.me/stars_bot?start=100","referral_count":2}`, w.Body.String())
	})
}

func TestAdminRoutes_Leaderboard(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, call := range []struct {
		user int64
		body string
	}{
		{100, ""}, {101, ""},
		{200, `{"referrer":100}`}, {201, `{"referrer":101}`}, {202, `{"referrer":101}`},
	} {
		require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/start", call.user, call.body).Code)
	}

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/admin/leaderboard", 100, "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/admin/leaderboard?limit=-1", adminID, "").Code)

	w := env.do(http.MethodGet, "/api/v1/admin/leaderboard?limit=10", adminID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var entries []leaderboardEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, int64(101), entries[0].TelegramID)
	assert.Equal(t, 2, entries[0].ReferralCount)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, int64(100), entries[1].TelegramID)
}

func TestReferralFeed_PushesAcceptedReferrals(t *testing.T) {
	env := newTestEnv(t, nil)
	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/referrals"
	header := http.Header{}
	header.Set("Authorization", authHeader(100))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.feed.Connected(100) == 1 }, 2*time.Second, 10*time.Millisecond)

	referrer := int64(100)
	err = env.feed.Deliver(context.Background(), notify.Intent{
		Kind:      notify.KindReferrerNotification,
		Event:     model.StartEvent{UserID: 200},
		Result:    model.StartResult{ReferralAccepted: true, ReferrerID: &referrer, ReferrerNewReferralCount: 4},
		CreatedAt: time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string                  `json:"type"`
		Payload ReferralAcceptedPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeReferralAccepted, msg.Type)
	assert.Equal(t, int64(200), msg.Payload.ReferredID)
	assert.Equal(t, 4, msg.Payload.ReferralCount)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return env.feed.Connected(100) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestReferralFeed_IgnoresOtherUsers(t *testing.T) {
	feed := NewReferralFeed()
	assert.NoError(t, feed.Deliver(context.Background(), notify.Intent{}))

	other := int64(7)
	assert.NoError(t, feed.Deliver(context.Background(), notify.Intent{
		Result: model.StartResult{ReferrerID: &other},
	}))
	assert.Equal(t, 0, feed.Connected(7))
}
