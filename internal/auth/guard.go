// Package auth はローカル以外に公開する場合のログイン保護を提供します。
//
// APP_USERNAME が設定されていないときは Guard は何も検査しません。
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/meta-scrub/internal/config"
)

const (
	SessionCookieName = "ms_session"
	CSRFHeader        = "X-CSRF-Token"

	keyUser       = "auth_user"
	keyIssuedAt   = "issued_at"
	keyLastActive = "last_activity"
	keyCSRF       = "csrf_token"
)

var (
	maxSessionLifetime = 12 * time.Hour
	idleTimeout        = 30 * time.Minute
)

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextUserKey はログイン済みユーザー名を gin.Context に格納するキーです。
const ContextUserKey = "auth.user"

// Guard はログイン・ログアウトとセッション検証を行います。
type Guard struct {
	cfg      *config.Config
	attempts *lockout
	now      func() time.Time
}

// NewGuard は Guard を作成します。失敗は15分で5回まで、超えたら10分締め出します。
func NewGuard(cfg *config.Config) *Guard {
	return &Guard{
		cfg:      cfg,
		attempts: newLockout(5, 15*time.Minute, 10*time.Minute),
		now:      time.Now,
	}
}

// Enabled はログイン保護が有効かどうかを返します。
func (g *Guard) Enabled() bool {
	return g.cfg.AuthEnabled()
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login は POST /api/auth/login のハンドラーです。成功時は CSRF トークンをヘッダーで返します。
func (g *Guard) Login(c *gin.Context) {
	if !g.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "AUTH_DISABLED",
			"message": "ログインは無効化されています",
		})
		return
	}

	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "username と password を JSON で送ってください",
		})
		return
	}

	ip := c.ClientIP()
	if wait := g.attempts.retryAfter(ip); wait > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(wait.Seconds())+1, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    "TOO_MANY_ATTEMPTS",
			"message": "一定時間後に再度お試しください",
		})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(g.cfg.AppUsername)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(g.cfg.AppPasswordHash), []byte(req.Password)) == nil
	if !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              "INVALID_CREDENTIALS",
			"message":           "ユーザー名またはパスワードが正しくありません",
			"remainingAttempts": g.attempts.fail(ip),
		})
		return
	}
	g.attempts.reset(ip)

	token, err := newToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "TOKEN_GENERATION_FAILED",
			"message": "CSRF トークンの生成に失敗しました",
		})
		return
	}

	now := g.now().Unix()
	session := sessions.Default(c)
	session.Set(keyUser, g.cfg.AppUsername)
	session.Set(keyIssuedAt, now)
	session.Set(keyLastActive, now)
	session.Set(keyCSRF, token)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの保存に失敗しました",
		})
		return
	}

	c.Header(CSRFHeader, token)
	c.Status(http.StatusNoContent)
}

// Logout は POST /api/auth/logout のハンドラーです。
func (g *Guard) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの削除に失敗しました",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Protect はセッションと CSRF トークンを検証するミドルウェアを返します。
// ログイン保護が無効な構成では何もせず次へ進みます。
func (g *Guard) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Enabled() {
			c.Next()
			return
		}

		session := sessions.Default(c)
		user, ok := session.Get(keyUser).(string)
		if !ok || user == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "ログインが必要です")
			return
		}

		now := g.now()
		issuedAt := readUnix(session.Get(keyIssuedAt))
		if issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime {
			expire(session)
			abort(c, http.StatusUnauthorized, "SESSION_EXPIRED", "セッションの有効期限が切れました")
			return
		}
		lastActive := readUnix(session.Get(keyLastActive))
		if lastActive.IsZero() || now.Sub(lastActive) > idleTimeout {
			expire(session)
			abort(c, http.StatusUnauthorized, "SESSION_IDLE_TIMEOUT", "しばらく操作がなかったため再ログインしてください")
			return
		}

		if !isSafeMethod(c.Request.Method) {
			expected, _ := session.Get(keyCSRF).(string)
			received := c.GetHeader(CSRFHeader)
			if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
				abort(c, http.StatusForbidden, "CSRF_INVALID", "CSRF トークンが一致しません")
				return
			}
		}

		session.Set(keyLastActive, now.Unix())
		_ = session.Save()
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}

func expire(session sessions.Session) {
	session.Clear()
	_ = session.Save()
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func readUnix(v any) time.Time {
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

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
