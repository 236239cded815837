package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/internal/api/middleware"
	"github.com/rl-arena/trivia-backend/internal/service"
	"github.com/rl-arena/trivia-backend/pkg/logger"
)

type LeaderboardHandler struct {
	cache *service.LeaderboardCache
	ranks *service.RankEngine
}

func NewLeaderboardHandler(cache *service.LeaderboardCache, ranks *service.RankEngine) *LeaderboardHandler {
	return &LeaderboardHandler{
		cache: cache,
		ranks: ranks,
	}
}

// GetLeaderboard godoc
// @Summary Get global leaderboard
// @Description Top users by correct answers, ties broken by fewer attempts. Served from a cache refreshed every 30 seconds.
// @Tags leaderboard
// @Produce json
// @Param limit query int false "Number of entries to return" default(100)
// @Success 200 {object} map[string]interface{} "Leaderboard snapshot"
// @Failure 503 {object} map[string]string "Score store unavailable and no snapshot yet"
// @Router /leaderboard [get]
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	snapshot, err := h.cache.Get(c.Request.Context(), false)
	if err != nil {
		if !errors.Is(err, service.ErrLedgerUnavailable) || snapshot.IsZero() {
			respondError(c, err)
			return
		}
		// 이전 스냅샷으로 응답
		logger.Warn("Serving stale leaderboard", "error", err)
	}

	entries := snapshot.Entries
	if limit, convErr := strconv.Atoi(c.Query("limit")); convErr == nil && limit >= 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"total":       len(entries),
		"capturedAt":  snapshot.CapturedAt,
		"stale":       !h.cache.Fresh(snapshot),
	})
}

// GetRank godoc
// @Summary Get a user's rank
// @Tags leaderboard
// @Produce json
// @Param userId path string true "User ID, or me"
// @Success 200 {object} models.RankResult
// @Failure 404 {object} map[string]string "User has no answers yet"
// @Failure 503 {object} map[string]string "Score store unavailable"
// @Router /users/{userId}/rank [get]
func (h *LeaderboardHandler) GetRank(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "me" {
		userID = middleware.UserID(c)
	}

	result, err := h.ranks.RankOf(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
