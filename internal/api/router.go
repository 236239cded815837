package api

import (
	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/internal/api/handlers"
	"github.com/rl-arena/trivia-backend/internal/api/middleware"
	"github.com/rl-arena/trivia-backend/internal/config"
	"github.com/rl-arena/trivia-backend/internal/service"
	"github.com/rl-arena/trivia-backend/pkg/metrics"
	"github.com/rl-arena/trivia-backend/pkg/ratelimit"
)

// Services 라우터가 사용하는 서비스 묶음 (main에서 생성)
type Services struct {
	Limiter     *ratelimit.RateLimiter
	Rotator     *service.QuestionRotator
	Ranks       *service.RankEngine
	Leaderboard *service.LeaderboardCache
	Quiz        *service.QuizService
	Metrics     *metrics.Metrics
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	if svc.Metrics != nil {
		router.Use(middleware.Metrics(svc.Metrics))
		router.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))
	}

	// Handler 초기화
	healthHandler := handlers.NewHealthHandler(svc.Rotator, svc.Limiter, svc.Quiz)
	quizHandler := handlers.NewQuizHandler(svc.Quiz, svc.Rotator)
	leaderboardHandler := handlers.NewLeaderboardHandler(svc.Leaderboard, svc.Ranks)
	limitsHandler := handlers.NewLimitsHandler(svc.Limiter, Commands())

	limit := func(cmd ratelimit.Command) gin.HandlerFunc {
		return middleware.RateLimit(svc.Limiter, cmd, svc.Metrics)
	}

	// Health check
	router.GET("/health", healthHandler.HealthCheck)

	// API v1 (전부 인증 필요)
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg))
	{
		// Session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/:sessionId/quiz", limit(CommandQuiz), quizHandler.Ask)
			sessions.DELETE("/:sessionId", middleware.RequirePrivileged(), quizHandler.EvictSession)
		}

		v1.POST("/answers", limit(CommandAnswer), quizHandler.Answer)
		v1.GET("/categories", limit(CommandCategories), quizHandler.ListCategories)

		// Ranking routes
		v1.GET("/users/:userId/rank", limit(CommandRank), leaderboardHandler.GetRank)
		v1.GET("/leaderboard", limit(CommandLeaderboard), leaderboardHandler.GetLeaderboard)

		// Operator routes
		limits := v1.Group("/users/:userId/limits")
		limits.Use(middleware.RequirePrivileged())
		{
			limits.GET("", limitsHandler.GetUsage)
			limits.DELETE("", limitsHandler.ResetUsage)
		}
	}

	return router
}
