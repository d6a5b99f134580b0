package postgres

import (
	"context"

	"github.com/yoockh/livecoach/internal/models"
	"gorm.io/gorm"
)

// Migrate creates the pgvector extension and the analysis table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	return db.WithContext(ctx).AutoMigrate(&models.ChunkSentimentAnalysis{})
}
