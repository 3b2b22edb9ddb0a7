package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"stars_referral_bot/internal/metrics"
	"stars_referral_bot/internal/notify"
	"stars_referral_bot/pkg/auth"
	"stars_referral_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	MessageTypeReferralAccepted = "referral_accepted"

	feedSendBuffer = 16
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type FeedMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ReferralAcceptedPayload struct {
	ReferredID    int64     `json:"referred_id"`
	ReferralCount int       `json:"referral_count"`
	AcceptedAt    time.Time `json:"accepted_at"`
}

type feedClient struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
}

// ReferralFeed pushes accepted referrals to the referrer's open websocket
// connections. It is a notify.Sink for referrer notifications.
type ReferralFeed struct {
	mu      sync.RWMutex
	clients map[int64]map[*feedClient]struct{}
}

func NewReferralFeed() *ReferralFeed {
	return &ReferralFeed{
		clients: make(map[int64]map[*feedClient]struct{}),
	}
}

func NewFeedRoutes(handler *gin.RouterGroup, feed *ReferralFeed, a *auth.TelegramAuth) {
	h := handler.Group("/ws")
	h.Use(a.TelegramAuthMiddleware())

	h.GET("/referrals", feed.handleWebSocket)
}

func (f *ReferralFeed) Deliver(_ context.Context, intent notify.Intent) error {
	if intent.Result.ReferrerID == nil {
		return nil
	}

	data, err := json.Marshal(FeedMessage{
		Type: MessageTypeReferralAccepted,
		Payload: ReferralAcceptedPayload{
			ReferredID:    intent.Event.UserID,
			ReferralCount: intent.Result.ReferrerNewReferralCount,
			AcceptedAt:    intent.CreatedAt,
		},
	})
	if err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for client := range f.clients[*intent.Result.ReferrerID] {
		select {
		case client.send <- data:
		default:
			logger.Named("feed").Warn("feed client is not keeping up, dropping message",
				zap.Int64("telegram_id", client.userID))
		}
	}
	return nil
}

// Connected reports how many feed connections telegramID has open.
func (f *ReferralFeed) Connected(telegramID int64) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients[telegramID])
}

func (f *ReferralFeed) handleWebSocket(c *gin.Context) {
	log := logger.Named("feed")

	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Int64("telegram_id", user.ID), zap.Error(err))
		return
	}

	client := &feedClient{
		userID: user.ID,
		conn:   conn,
		send:   make(chan []byte, feedSendBuffer),
	}
	f.register(client)

	go f.writeLoop(client)
	go f.readLoop(client)
}

func (f *ReferralFeed) register(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.clients[client.userID]
	if !ok {
		set = make(map[*feedClient]struct{})
		f.clients[client.userID] = set
	}
	set[client] = struct{}{}
	metrics.WebsocketClients.Inc()
}

func (f *ReferralFeed) unregister(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.clients[client.userID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(f.clients, client.userID)
	}
	close(client.send)
	metrics.WebsocketClients.Dec()
}

// readLoop discards client frames and unregisters the client once the
// connection is gone.
func (f *ReferralFeed) readLoop(client *feedClient) {
	defer func() {
		f.unregister(client)
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Named("feed").Info("websocket unexpected close",
					zap.Int64("telegram_id", client.userID), zap.Error(err))
			}
			return
		}
	}
}

func (f *ReferralFeed) writeLoop(client *feedClient) {
	for data := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Named("feed").Warn("failed to write feed message",
				zap.Int64("telegram_id", client.userID), zap.Error(err))
			client.conn.Close()
			return
		}
	}
	_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
