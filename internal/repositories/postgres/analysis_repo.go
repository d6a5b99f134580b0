package postgres

import (
	"context"

	"github.com/yoockh/livecoach/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnalysisRepo interface {
	// Upsert keeps one row per chunk record; a second write for the same
	// chunk_id replaces the first.
	Upsert(ctx context.Context, row *models.ChunkSentimentAnalysis) error
}

type analysisRepo struct {
	db *gorm.DB
}

func NewAnalysisRepo(db *gorm.DB) AnalysisRepo {
	return &analysisRepo{db: db}
}

func (r *analysisRepo) Upsert(ctx context.Context, row *models.ChunkSentimentAnalysis) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(row).Error
}

var upsertColumns = []string{
	"chunk_number", "window_chunks", "audience_emotion",
	"engagement", "confidence", "conviction", "clarity", "impact", "brevity",
	"transformative_potential", "trigger_response", "filler_words", "grammar",
	"general_feedback_summary", "posture", "motion", "gestures",
	"volume", "pitch_variability", "pace", "pauses",
	"chunk_transcript", "score_vector", "raw",
}
