package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/livecoach/internal/models"
	"github.com/yoockh/livecoach/internal/utils"
)

// AnalysisEvent is published once per analyzed window.
type AnalysisEvent struct {
	SessionID    string                 `json:"session_id"`
	ConnectionID string                 `json:"connection_id"`
	WindowID     int64                  `json:"window_id"`
	ChunkNumbers []int64                `json:"chunk_numbers"`
	Analysis     *models.AnalysisResult `json:"analysis"`
	CreatedAt    time.Time              `json:"created_at"`
}

func Channel(sessionID string) string {
	return "session:" + sessionID + ":analysis"
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) PublishAnalysis(ctx context.Context, ev AnalysisEvent) error {
	const op = "RedisPublisher.PublishAnalysis"

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode event", err)
	}
	if err := p.rdb.Publish(ctx, Channel(ev.SessionID), b).Err(); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to publish event", err)
	}
	return nil
}
