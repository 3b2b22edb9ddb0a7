package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stars_referral_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
)

const (
	expTime = 24 * time.Hour

	// UserContextKey holds the *TelegramUserData of an authenticated request.
	UserContextKey = "telegram_user"

	headerPrefix = "Telegram "
	// browsers cannot set headers on a websocket handshake
	initDataQueryParam = "init_data"
)

var ErrMissingUser = errors.New("init data carries no user")

type TelegramAuth struct {
	botToken  string
	debugMode bool
}

// NewTelegramAuth builds the init-data authenticator. In debug mode the
// signature is not checked.
func NewTelegramAuth(botToken string, debugMode bool) *TelegramAuth {
	return &TelegramAuth{
		botToken:  botToken,
		debugMode: debugMode,
	}
}

func (t *TelegramAuth) TelegramAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Named("auth")

		initData, ok := rawInitData(c)
		if !ok {
			log.Info("missing or malformed authorization")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		if !t.debugMode {
			if err := initdata.Validate(initData, t.botToken, expTime); err != nil {
				log.Info("invalid telegram init data", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram auth data"})
				return
			}
		}

		telegramUserData, err := ExtractTelegramData(initData)
		if err != nil {
			log.Info("failed to extract telegram data", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram data"})
			return
		}

		c.Set(UserContextKey, telegramUserData)
		c.Next()
	}
}

func rawInitData(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, headerPrefix) {
			return "", false
		}
		return strings.TrimPrefix(header, headerPrefix), true
	}
	if q := c.Query(initDataQueryParam); q != "" {
		return q, true
	}
	return "", false
}

// UserFromContext returns the user stored by TelegramAuthMiddleware.
func UserFromContext(c *gin.Context) (*TelegramUserData, bool) {
	v, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*TelegramUserData)
	return user, ok
}

type TelegramUserData struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	AuthDate  time.Time
}

func (u *TelegramUserData) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func ExtractTelegramData(initData string) (*TelegramUserData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, errors.Wrap(err, "parse init data")
	}

	authDateUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse auth_date")
	}

	var userData struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}

	if err := json.Unmarshal([]byte(values.Get("user")), &userData); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	if userData.ID == 0 {
		return nil, ErrMissingUser
	}

	return &TelegramUserData{
		ID:        userData.ID,
		Username:  userData.Username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		AuthDate:  time.Unix(authDateUnix, 0),
	}, nil
}
