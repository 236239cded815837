package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl-arena/trivia-backend/internal/models"
)

// LeaderboardStore shares the latest leaderboard snapshot between replicas.
type LeaderboardStore interface {
	Publish(ctx context.Context, snapshot models.LeaderboardSnapshot) error
	// Load returns ok=false when nothing is published.
	Load(ctx context.Context) (models.LeaderboardSnapshot, bool, error)
}

type RedisLeaderboardStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLeaderboardStore(client *redis.Client, key string, ttl time.Duration) *RedisLeaderboardStore {
	if key == "" {
		key = "leaderboard:snapshot"
	}
	return &RedisLeaderboardStore{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (s *RedisLeaderboardStore) Publish(ctx context.Context, snapshot models.LeaderboardSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to publish leaderboard: %w", err)
	}
	return nil
}

func (s *RedisLeaderboardStore) Load(ctx context.Context) (models.LeaderboardSnapshot, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return models.LeaderboardSnapshot{}, false, nil
	}
	if err != nil {
		return models.LeaderboardSnapshot{}, false, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	var snapshot models.LeaderboardSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return models.LeaderboardSnapshot{}, false, fmt.Errorf("failed to decode leaderboard: %w", err)
	}
	return snapshot, true, nil
}
