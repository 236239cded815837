package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/internal/config"
	jwtutil "github.com/rl-arena/trivia-backend/pkg/jwt"
)

// Context keys set by Auth
const (
	ContextUserID     = "userId"
	ContextUsername   = "username"
	ContextPrivileged = "privileged"
)

// Auth JWT 인증 미들웨어
func Auth(cfg *config.Config) gin.HandlerFunc {
	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	return func(c *gin.Context) {
		// Authorization 헤더에서 토큰 추출
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// "Bearer <token>" 형식 파싱
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		// 토큰 클레임 또는 PRIVILEGED_USERS 설정으로 운영자 판정
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextPrivileged, claims.Privileged || cfg.IsPrivileged(claims.UserID))

		c.Next()
	}
}

// RequirePrivileged 운영자 전용 엔드포인트
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsPrivileged(c) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Privileged access required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user, or "" before Auth ran.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func IsPrivileged(c *gin.Context) bool {
	return c.GetBool(ContextPrivileged)
}
