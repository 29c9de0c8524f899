package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/todo-web/internal/user"
)

// RequireLogin はセッションを検証し、失敗時に JSON の 401 を返すミドルウェアです（API 用）。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if code, message, ok := m.authenticate(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    code,
				"message": message,
			})
			return
		}
		c.Next()
	}
}

// RequirePageLogin はセッションを検証し、失敗時にログイン画面へリダイレクトするミドルウェアです。
func (m *Manager) RequirePageLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := m.authenticate(c); !ok {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// authenticate はセッションの有効期限を確認し、ユーザー情報を gin.Context に載せます。
func (m *Manager) authenticate(c *gin.Context) (string, string, bool) {
	session := sessions.Default(c)
	userID := readUserID(session.Get(sessionKeyUserID))
	if userID == 0 {
		return "UNAUTHORIZED", "ログインが必要です", false
	}

	now := m.now()
	issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
	lastActive := readUnix(session.Get(sessionKeyLastActive))

	if issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime {
		session.Clear()
		_ = session.Save()
		return "SESSION_EXPIRED", "セッションの有効期限が切れました", false
	}

	if lastActive.IsZero() || now.Sub(lastActive) > idleTimeout {
		session.Clear()
		_ = session.Save()
		return "SESSION_IDLE_TIMEOUT", "しばらく操作がなかったため再ログインしてください", false
	}

	// 削除・無効化されたユーザーのセッションはここで打ち切る
	u, err := m.users.Get(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		m.logger.Error("failed to load session user", "user_id", userID, "error", err)
		return "INTERNAL_ERROR", "ユーザー情報の取得に失敗しました", false
	}
	if err != nil || !u.IsActive {
		session.Clear()
		_ = session.Save()
		return "USER_INACTIVE", "このアカウントは利用できません", false
	}

	session.Set(sessionKeyLastActive, now.Unix())
	if err := session.Save(); err != nil {
		m.logger.Warn("failed to refresh session", "error", err)
	}

	c.Set(ContextUserIDKey, u.ID)
	c.Set(ContextUsernameKey, u.Username)
	return "", "", true
}

// VerifyCSRF は X-CSRF-Token ヘッダーまたは csrf_token フォーム値を検証するミドルウェアです。
// CSRF 保護が無効な場合は何もしません。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.csrf || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "CSRF トークンが設定されていません",
			})
			return
		}

		received := c.GetHeader(csrfHeader)
		if received == "" {
			received = c.PostForm(csrfFormField)
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF トークンが一致しません",
			})
			return
		}

		c.Next()
	}
}
