package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/livecoach/internal/models"
	"github.com/yoockh/livecoach/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ChunkRepository interface {
	// Insert returns utils.ErrDuplicate when the (connection_id,
	// chunk_number) pair already has a record.
	Insert(ctx context.Context, c *models.SessionChunk) error
	GetByConnectionChunk(ctx context.Context, connectionID string, chunkNumber int64) (*models.SessionChunk, error)
}

type chunkRepo struct {
	col *mongo.Collection
}

func NewChunkRepo(db *mongo.Database) ChunkRepository {
	return &chunkRepo{col: db.Collection("session_chunks")}
}

func (r *chunkRepo) Insert(ctx context.Context, c *models.SessionChunk) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return utils.ErrDuplicate
	}
	return err
}

func (r *chunkRepo) GetByConnectionChunk(ctx context.Context, connectionID string, chunkNumber int64) (*models.SessionChunk, error) {
	var c models.SessionChunk
	err := r.col.FindOne(ctx, bson.M{"connection_id": connectionID, "chunk_number": chunkNumber}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
