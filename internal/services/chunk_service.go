package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/livecoach/internal/models"
	mongorepo "github.com/yoockh/livecoach/internal/repositories/mongo"
	"github.com/yoockh/livecoach/internal/utils"
)

type ChunkRecord struct {
	SessionID    string
	ConnectionID string
	ChunkNumber  int64
	RemoteRef    string
}

type ChunkService interface {
	// PersistChunkRecord stores the uploaded chunk and returns its record
	// id. Saving the same chunk twice yields the first record's id.
	PersistChunkRecord(ctx context.Context, rec ChunkRecord) (string, error)
}

type chunkService struct {
	chunks   mongorepo.ChunkRepository
	sessions SessionService
}

func NewChunkService(chunks mongorepo.ChunkRepository, sessions SessionService) ChunkService {
	return &chunkService{chunks: chunks, sessions: sessions}
}

func (s *chunkService) PersistChunkRecord(ctx context.Context, rec ChunkRecord) (string, error) {
	const op = "ChunkService.PersistChunkRecord"

	if rec.SessionID == "" || rec.ConnectionID == "" || rec.ChunkNumber <= 0 || rec.RemoteRef == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "session_id, connection_id, chunk_number (>0), and remote ref are required", nil)
	}

	if _, err := s.sessions.Get(ctx, rec.SessionID); err != nil {
		return "", err
	}

	doc := &models.SessionChunk{
		ID:           uuid.NewString(),
		SessionID:    rec.SessionID,
		ConnectionID: rec.ConnectionID,
		ChunkNumber:  rec.ChunkNumber,
		VideoFile:    rec.RemoteRef,
		CreatedAt:    time.Now().UTC(),
	}

	err := s.chunks.Insert(ctx, doc)
	if errors.Is(err, utils.ErrDuplicate) {
		existing, gerr := s.chunks.GetByConnectionChunk(ctx, rec.ConnectionID, rec.ChunkNumber)
		if gerr != nil {
			return "", utils.E(utils.CodeInternal, op, "failed to load existing chunk record", gerr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to insert chunk record", err)
	}
	return doc.ID, nil
}
