package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/internal/service"
	"github.com/rl-arena/trivia-backend/pkg/logger"
)

// respondError 서비스 에러를 HTTP 상태로 변환
func respondError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, service.ErrInvalidCategory):
		status, message = http.StatusBadRequest, "Invalid category"
	case errors.Is(err, service.ErrInvalidOption):
		status, message = http.StatusBadRequest, "Option must be between 0 and 3"
	case errors.Is(err, service.ErrNotRanked):
		status, message = http.StatusNotFound, "User has no answers yet"
	case errors.Is(err, service.ErrPromptNotFound):
		status, message = http.StatusNotFound, "Prompt not found or expired"
	case errors.Is(err, service.ErrQuestionPoolEmpty):
		status, message = http.StatusNotFound, "No questions available"
	case errors.Is(err, service.ErrDuplicateAnswer):
		status, message = http.StatusConflict, "Prompt already answered"
	case errors.Is(err, service.ErrLedgerUnavailable):
		status, message = http.StatusServiceUnavailable, "Score store unavailable"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{
		"error": message,
	})
}
