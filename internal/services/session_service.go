package services

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/livecoach/internal/cache"
	"github.com/yoockh/livecoach/internal/models"
	mongorepo "github.com/yoockh/livecoach/internal/repositories/mongo"
	"github.com/yoockh/livecoach/internal/utils"
)

// SessionService is the read side of practice sessions. Sessions are
// created elsewhere; lookups are cached because every chunk save checks
// the session.
type SessionService interface {
	Get(ctx context.Context, sessionID string) (*models.PracticeSession, error)
}

type sessionService struct {
	sessions mongorepo.SessionRepository
	cache    cache.Cache
	ttl      time.Duration
}

// NewSessionService accepts a nil cache.
func NewSessionService(sessions mongorepo.SessionRepository, c cache.Cache, ttl time.Duration) SessionService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &sessionService{sessions: sessions, cache: c, ttl: ttl}
}

func sessionCacheKey(sessionID string) string { return "session:" + sessionID + ":record" }

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.PracticeSession, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	if s.cache != nil {
		var cached models.PracticeSession
		if hit, err := s.cache.GetJSON(ctx, sessionCacheKey(sessionID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, sessionCacheKey(sessionID), out, s.ttl)
	}
	return out, nil
}
