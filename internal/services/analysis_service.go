package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/livecoach/internal/models"
	pgrepo "github.com/yoockh/livecoach/internal/repositories/postgres"
	"github.com/yoockh/livecoach/internal/utils"
	"gorm.io/datatypes"
)

type AnalysisRecord struct {
	RecordID     string // chunk record of the window's last chunk
	SessionID    string
	ChunkNumber  int64
	WindowChunks []int64
	Transcript   string
	Result       *models.AnalysisResult
}

type AnalysisService interface {
	PersistAnalysisRecord(ctx context.Context, rec AnalysisRecord) error
}

type analysisService struct {
	analyses pgrepo.AnalysisRepo
}

func NewAnalysisService(analyses pgrepo.AnalysisRepo) AnalysisService {
	return &analysisService{analyses: analyses}
}

func (s *analysisService) PersistAnalysisRecord(ctx context.Context, rec AnalysisRecord) error {
	const op = "AnalysisService.PersistAnalysisRecord"

	if rec.RecordID == "" || rec.Result == nil {
		return utils.E(utils.CodeInvalidArgument, op, "record id and analysis result are required", nil)
	}

	row, err := analysisRow(rec)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode analysis", err)
	}
	if err := s.analyses.Upsert(ctx, row); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save analysis", err)
	}
	return nil
}

func analysisRow(rec AnalysisRecord) (*models.ChunkSentimentAnalysis, error) {
	raw, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, err
	}

	f, p, sc := rec.Result.Feedback, rec.Result.Posture, rec.Result.Scores
	row := &models.ChunkSentimentAnalysis{
		ID:           uuid.NewString(),
		ChunkID:      rec.RecordID,
		SessionID:    rec.SessionID,
		ChunkNumber:  rec.ChunkNumber,
		WindowChunks: pq.Int64Array(rec.WindowChunks),

		AudienceEmotion:         f.AudienceEmotion,
		Engagement:              f.Engagement,
		Confidence:              f.Confidence,
		Conviction:              f.Conviction,
		Clarity:                 f.Clarity,
		Impact:                  f.Impact,
		Brevity:                 f.Brevity,
		TransformativePotential: f.TransformativePotential,
		TriggerResponse:         f.TriggerResponse,
		FillerWords:             f.FillerWords,
		Grammar:                 f.Grammar,
		GeneralFeedbackSummary:  f.GeneralFeedbackSummary,

		Posture:  p.Posture,
		Motion:   p.Motion,
		Gestures: p.Gestures != nil && *p.Gestures,

		Volume:           sc.Volume,
		PitchVariability: sc.PitchVariability,
		Pace:             sc.Pace,
		Pauses:           sc.Pauses,

		ChunkTranscript: rec.Transcript,
		ScoreVector:     pgvector.NewVector(rec.Result.ScoreVector()),
		Raw:             datatypes.JSON(raw),
		CreatedAt:       time.Now().UTC(),
	}
	return row, nil
}
