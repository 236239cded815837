package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/internal/api/middleware"
	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/internal/service"
	"github.com/rl-arena/trivia-backend/pkg/logger"
)

type QuizHandler struct {
	quiz    *service.QuizService
	rotator *service.QuestionRotator
}

func NewQuizHandler(quiz *service.QuizService, rotator *service.QuestionRotator) *QuizHandler {
	return &QuizHandler{
		quiz:    quiz,
		rotator: rotator,
	}
}

type AskRequest struct {
	Category string `json:"category"`
}

type AskResponse struct {
	Prompt   models.Prompt   `json:"prompt"`
	Question models.Question `json:"question"`
}

type AnswerRequest struct {
	PromptID string `json:"promptId" binding:"required"`
	Option   *int   `json:"option" binding:"required"`
}

// Ask godoc
// @Summary Next question for a session
// @Description Issues a prompt for the session's next question. Optional category (body or query) picks a random question from that category.
// @Tags quiz
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} AskResponse
// @Failure 400 {object} map[string]string "Invalid category"
// @Failure 404 {object} map[string]string "No questions available"
// @Failure 429 {object} map[string]interface{} "Rate limit exceeded"
// @Router /sessions/{sessionId}/quiz [post]
func (h *QuizHandler) Ask(c *gin.Context) {
	var req AskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
	}
	if req.Category == "" {
		req.Category = c.Query("category")
	}

	prompt, question, err := h.quiz.Ask(c.Request.Context(), c.Param("sessionId"), middleware.UserID(c), req.Category)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AskResponse{
		Prompt:   prompt,
		Question: question,
	})
}

// Answer godoc
// @Summary Answer a prompt
// @Description Judges the selected option, records the attempt and returns the new rank
// @Tags quiz
// @Accept json
// @Produce json
// @Param request body AnswerRequest true "Answer"
// @Success 200 {object} service.AnswerResult
// @Failure 404 {object} map[string]string "Prompt not found or expired"
// @Failure 409 {object} map[string]string "Prompt already answered"
// @Router /answers [post]
func (h *QuizHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	result, err := h.quiz.Answer(c.Request.Context(), middleware.UserID(c), req.PromptID, *req.Option)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// EvictSession 세션 출제 상태 삭제 (운영자 전용)
func (h *QuizHandler) EvictSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	evicted := h.rotator.Evict(sessionID)

	logger.Info("Session evicted", "sessionId", sessionID, "existed", evicted, "by", middleware.UserID(c))

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"evicted":   evicted,
	})
}

// ListCategories 카테고리 목록
func (h *QuizHandler) ListCategories(c *gin.Context) {
	categories := h.rotator.Categories()

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"total":      len(categories),
	})
}
