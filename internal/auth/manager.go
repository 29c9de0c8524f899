// Package auth は認証・認可機能を提供します。
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/todo-web/internal/user"
)

const (
	SessionCookieName    = "todo_session"
	sessionKeyUserID     = "auth_user_id"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader    = "X-CSRF-Token"
	csrfFormField = "csrf_token"

	// LoginPath は未ログイン時のリダイレクト先です。
	LoginPath = "/auth/login"
	// HomePath はログイン後のリダイレクト先です。
	HomePath = "/todos"
)

var (
	maxSessionLifetime = 12 * time.Hour
	idleTimeout        = 30 * time.Minute
	loginWindow        = 15 * time.Minute
	lockDuration       = 10 * time.Minute
	maxLoginAttempts   = 5
)

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextUserIDKey と ContextUsernameKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const (
	ContextUserIDKey   = "auth.user_id"
	ContextUsernameKey = "auth.username"
)

// Options は Manager の挙動を切り替える設定です。
type Options struct {
	CSRFProtection bool
	Logger         *slog.Logger
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	users    user.Service
	attempts AttemptStore
	csrf     bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager は認証マネージャーを作成します。attempts が nil の場合はメモリ上で試行回数を数えます。
func NewManager(users user.Service, attempts AttemptStore, opts Options) *Manager {
	if attempts == nil {
		attempts = NewMemoryAttemptStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		users:    users,
		attempts: attempts,
		csrf:     opts.CSRFProtection,
		logger:   logger,
		now:      time.Now,
	}
}

// startSession はログイン成功時にセッションへユーザー情報と CSRF トークンを保存します。
func (m *Manager) startSession(c *gin.Context, u *user.User) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	session := sessions.Default(c)
	session.Clear()
	now := m.now()
	session.Set(sessionKeyUserID, u.ID)
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())
	session.Set(sessionKeyCSRF, token)

	if err := session.Save(); err != nil {
		return "", err
	}
	return token, nil
}

// CurrentUserID は RequireLogin が設定したユーザーIDを返します。
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// CurrentUsername は RequireLogin が設定したユーザー名を返します。
func CurrentUsername(c *gin.Context) string {
	return c.GetString(ContextUsernameKey)
}

// CSRFToken はフォームに埋め込むためのセッションの CSRF トークンを返します。
func CSRFToken(c *gin.Context) string {
	token, _ := sessions.Default(c).Get(sessionKeyCSRF).(string)
	return token
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}

func readUserID(v interface{}) uint {
	switch id := v.(type) {
	case uint:
		return id
	case int:
		if id > 0 {
			return uint(id)
		}
	case int64:
		if id > 0 {
			return uint(id)
		}
	case float64:
		if id > 0 {
			return uint(id)
		}
	}
	return 0
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
