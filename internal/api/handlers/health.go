package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/internal/service"
	"github.com/rl-arena/trivia-backend/pkg/ratelimit"
)

type HealthHandler struct {
	rotator *service.QuestionRotator
	limiter *ratelimit.RateLimiter
	quiz    *service.QuizService
}

func NewHealthHandler(rotator *service.QuestionRotator, limiter *ratelimit.RateLimiter, quiz *service.QuizService) *HealthHandler {
	return &HealthHandler{
		rotator: rotator,
		limiter: limiter,
		quiz:    quiz,
	}
}

// HealthCheck godoc
// @Summary Health check
// @Description Check if the API server is running
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Server is healthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "trivia-backend",
		"questions":      h.rotator.Stats(),
		"rateLimit":      h.limiter.GetStats(),
		"pendingPrompts": h.quiz.PendingPrompts(),
	})
}
