package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rl-arena/trivia-backend/internal/api"
	"github.com/rl-arena/trivia-backend/internal/config"
	"github.com/rl-arena/trivia-backend/internal/repository"
	"github.com/rl-arena/trivia-backend/internal/service"
	"github.com/rl-arena/trivia-backend/pkg/database"
	"github.com/rl-arena/trivia-backend/pkg/distributed"
	"github.com/rl-arena/trivia-backend/pkg/logger"
	"github.com/rl-arena/trivia-backend/pkg/metrics"
	"github.com/rl-arena/trivia-backend/pkg/ratelimit"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting Trivia Backend",
		"port", cfg.Port,
		"env", cfg.Env,
		"ledger", cfg.LedgerBackend,
		"questions", cfg.QuestionSource,
	)

	ctx := context.Background()
	m := metrics.New("trivia")

	// 데이터베이스 연결 (sql 백엔드를 하나라도 쓰는 경우)
	var db *database.DB
	if cfg.LedgerBackend == config.LedgerSQL || cfg.QuestionSource == config.QuestionsSQL {
		db, err = database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		if cfg.Env != "production" {
			if err := repository.EnsureSchema(ctx, db); err != nil {
				logger.Fatal("Failed to prepare schema", "error", err)
			}
		}
		logger.Info("Database connection established", "driver", db.Driver())
	}

	// Score ledger
	var ledger repository.ScoreLedger
	if cfg.LedgerBackend == config.LedgerSQL {
		ledger = repository.NewSQLScoreLedger(db, cfg.LedgerTimeout)
	} else {
		logger.Warn("Using in-memory score ledger; scores are lost on restart")
		ledger = repository.NewMemoryScoreLedger()
	}

	// Question source
	var questions repository.QuestionRepository
	if cfg.QuestionSource == config.QuestionsMongo {
		client, err := connectMongo(ctx, cfg.MongoURI)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", "error", err)
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		questions = repository.NewMongoQuestionRepository(client, cfg.MongoDatabase)
	} else {
		questions = repository.NewSQLQuestionRepository(db)
	}

	// Rate limiter
	limiter, err := ratelimit.NewRateLimiter(api.CommandPolicy(),
		ratelimit.WithLogger(logger.Named("ratelimit")),
		ratelimit.WithCleanupInterval(cfg.RateLimitSweepInterval),
	)
	if err != nil {
		logger.Fatal("Invalid rate limit policy", "error", err)
	}
	limiter.StartCleanup()
	defer limiter.Stop()

	// Question rotator
	rotator := service.NewQuestionRotator(questions,
		service.WithRotatorLogger(logger.Named("rotator")),
		service.WithResetHook(m.RotationResets.Inc),
	)
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := rotator.Reload(loadCtx); err != nil {
		// 빈 카탈로그로 시작하고 리로드 루프에서 재시도
		logger.Error("Initial question load failed", "error", err)
	}
	cancel()
	rotator.Start(cfg.QuestionReloadInterval)
	defer rotator.Stop()

	// Ranking & leaderboard
	ranks := service.NewRankEngine(ledger)
	cacheOpts := []service.CacheOption{
		service.WithCacheSize(cfg.LeaderboardSize),
		service.WithCacheTTL(cfg.LeaderboardTTL),
		service.WithRefreshTimeout(cfg.LedgerTimeout),
		service.WithCacheLogger(logger.Named("leaderboard")),
		service.WithRefreshObserver(func(outcome string, elapsed time.Duration) {
			m.LeaderboardRefresh.WithLabelValues(outcome).Inc()
			if outcome != service.RefreshSkipped {
				m.RefreshDuration.Observe(elapsed.Seconds())
			}
		}),
	}

	// Redis가 있으면 인스턴스 간 리더보드 공유
	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, leaderboard refreshes stay local", "error", err)
		} else {
			defer redisClient.Close()
			store := repository.NewRedisLeaderboardStore(redisClient, "", 2*cfg.LeaderboardTTL)
			locks := distributed.NewRedisLockManager(redisClient, "")
			cacheOpts = append(cacheOpts, service.WithSharedSnapshots(store, locks))
			logger.Info("Leaderboard sharing enabled", "owner", locks.Owner())
		}
	}

	leaderboard := service.NewLeaderboardCache(ledger, cacheOpts...)
	scheduler := service.NewLeaderboardScheduler(leaderboard, cfg.LeaderboardRefreshInterval, logger.Named("scheduler"))
	scheduler.Start()
	defer scheduler.Stop()

	quiz := service.NewQuizService(rotator, ledger, ranks,
		service.WithPromptTTL(cfg.PromptTTL),
		service.WithQuizLogger(logger.Named("quiz")),
		service.WithAnswerHook(func(correct bool) {
			m.AnswersRecorded.WithLabelValues(fmt.Sprint(correct)).Inc()
		}),
	)

	router := api.SetupRouter(cfg, api.Services{
		Limiter:     limiter,
		Rotator:     rotator,
		Ranks:       ranks,
		Leaderboard: leaderboard,
		Quiz:        quiz,
		Metrics:     m,
	})

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 10초 타임아웃으로 종료
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
