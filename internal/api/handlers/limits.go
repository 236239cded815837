package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/internal/api/middleware"
	"github.com/rl-arena/trivia-backend/pkg/logger"
	"github.com/rl-arena/trivia-backend/pkg/ratelimit"
)

// LimitsHandler 운영자용 사용자 rate limit 조회/초기화
type LimitsHandler struct {
	limiter  *ratelimit.RateLimiter
	commands []ratelimit.Command
}

func NewLimitsHandler(limiter *ratelimit.RateLimiter, commands []ratelimit.Command) *LimitsHandler {
	return &LimitsHandler{
		limiter:  limiter,
		commands: commands,
	}
}

type CommandUsage struct {
	Command    ratelimit.Command `json:"command"`
	LastMinute int               `json:"lastMinute"`
	LastHour   int               `json:"lastHour"`
}

// GetUsage 명령별 최근 1분/1시간 사용량
func (h *LimitsHandler) GetUsage(c *gin.Context) {
	userID := c.Param("userId")

	usage := make([]CommandUsage, 0, len(h.commands))
	for _, cmd := range h.commands {
		minute, hour := h.limiter.Usage(userID, cmd)
		usage = append(usage, CommandUsage{Command: cmd, LastMinute: minute, LastHour: hour})
	}

	c.JSON(http.StatusOK, gin.H{
		"userId": userID,
		"usage":  usage,
	})
}

// ResetUsage 사용자 기록 초기화
func (h *LimitsHandler) ResetUsage(c *gin.Context) {
	userID := c.Param("userId")
	h.limiter.Reset(userID)

	logger.Info("Rate limits reset", "userId", userID, "by", middleware.UserID(c))

	c.Status(http.StatusNoContent)
}
