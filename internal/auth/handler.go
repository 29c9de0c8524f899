package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/todo-web/internal/user"
)

type loginForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type registerForm struct {
	Username        string `form:"username" binding:"required"`
	Email           string `form:"email"`
	FirstName       string `form:"firstname"`
	LastName        string `form:"lastname"`
	Password        string `form:"password" binding:"required"`
	PasswordConfirm string `form:"password2"`
}

// LoginPage は GET /auth/login のハンドラーです。
func (m *Manager) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

// Login は POST /auth/login のハンドラーです。成功するとセッションクッキーを発行して /todos へリダイレクトします。
func (m *Manager) Login(c *gin.Context) {
	var req loginForm
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{
			"msg": "ユーザー名とパスワードを入力してください",
		})
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()

	retryAfter, err := m.attempts.Locked(ctx, ip)
	if err != nil {
		m.logger.Error("failed to check login lock", "ip", ip, "error", err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"msg": "サーバー内部でエラーが発生しました",
		})
		return
	}
	if retryAfter > 0 {
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		c.HTML(http.StatusTooManyRequests, "login.html", gin.H{
			"msg": "一定時間後に再度お試しください",
		})
		return
	}

	u, err := m.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, user.ErrInvalidCredentials) {
			m.logger.Error("failed to authenticate", "username", req.Username, "error", err)
			c.HTML(http.StatusInternalServerError, "login.html", gin.H{
				"msg": "サーバー内部でエラーが発生しました",
			})
			return
		}
		remaining, recErr := m.attempts.RecordFailure(ctx, ip)
		if recErr != nil {
			m.logger.Warn("failed to record login failure", "ip", ip, "error", recErr)
		}
		m.logger.Info("login failed", "username", req.Username, "ip", ip, "remaining", remaining)
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"msg":       "ユーザー名またはパスワードが正しくありません",
			"remaining": remaining,
		})
		return
	}

	if err := m.attempts.Reset(ctx, ip); err != nil {
		m.logger.Warn("failed to reset login attempts", "ip", ip, "error", err)
	}

	token, err := m.startSession(c, u)
	if err != nil {
		m.logger.Error("failed to save session", "user_id", u.ID, "error", err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"msg": "セッションの保存に失敗しました",
		})
		return
	}

	m.logger.Info("user logged in", "user_id", u.ID)
	c.Header(csrfHeader, token)
	c.Redirect(http.StatusFound, HomePath)
}

// RegisterPage は GET /auth/register のハンドラーです。
func (m *Manager) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{})
}

// Register は POST /auth/register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	var req registerForm
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "register.html", gin.H{
			"msg": "ユーザー名とパスワードを入力してください",
		})
		return
	}
	if req.PasswordConfirm != "" && req.PasswordConfirm != req.Password {
		c.HTML(http.StatusBadRequest, "register.html", gin.H{
			"msg": "確認用パスワードが一致しません",
		})
		return
	}

	u, err := m.users.Register(c.Request.Context(), user.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken), errors.Is(err, user.ErrEmailTaken):
			c.HTML(http.StatusConflict, "register.html", gin.H{
				"msg": "そのユーザー名またはメールアドレスは既に使われています",
			})
		case errors.Is(err, user.ErrInvalidInput):
			c.HTML(http.StatusBadRequest, "register.html", gin.H{
				"msg": "ユーザー名とパスワードを入力してください",
			})
		default:
			m.logger.Error("failed to register user", "username", req.Username, "error", err)
			c.HTML(http.StatusInternalServerError, "register.html", gin.H{
				"msg": "サーバー内部でエラーが発生しました",
			})
		}
		return
	}

	m.logger.Info("user registered", "user_id", u.ID)
	c.Redirect(http.StatusFound, LoginPath)
}

// Logout は /auth/logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		m.logger.Error("failed to clear session", "error", err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"msg": "セッションの削除に失敗しました",
		})
		return
	}
	c.Redirect(http.StatusFound, LoginPath)
}
