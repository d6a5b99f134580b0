package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// AnalysisResult is the coaching feedback for one window. JSON keys match
// what the web client renders.
type AnalysisResult struct {
	Feedback   Feedback `json:"Feedback"`
	Posture    Posture  `json:"Posture"`
	Scores     Scores   `json:"Scores"`
	Transcript string   `json:"Transcript,omitempty"`
}

type Feedback struct {
	AudienceEmotion string `json:"Audience Emotion,omitempty"`
	Tone            string `json:"Tone,omitempty"`

	Engagement              *float64 `json:"Engagement,omitempty"`
	Confidence              *float64 `json:"Confidence,omitempty"`
	BodyPosture             *float64 `json:"Body Posture,omitempty"`
	Curiosity               *float64 `json:"Curiosity,omitempty"`
	Empathy                 *float64 `json:"Empathy,omitempty"`
	Conviction              *float64 `json:"Conviction,omitempty"`
	Clarity                 *float64 `json:"Clarity,omitempty"`
	Impact                  *float64 `json:"Impact,omitempty"`
	Brevity                 *float64 `json:"Brevity,omitempty"`
	TransformativePotential *float64 `json:"Transformative Potential,omitempty"`
	TriggerResponse         *float64 `json:"Trigger Response,omitempty"`
	FillerWords             *float64 `json:"Filler Words,omitempty"`
	Grammar                 *float64 `json:"Grammar,omitempty"`

	Strengths              string `json:"Strengths,omitempty"`
	AreasOfImprovement     string `json:"Areas of Improvements,omitempty"`
	GeneralFeedbackSummary string `json:"General Feedback Summary,omitempty"`
}

type Posture struct {
	Posture  *float64 `json:"Posture,omitempty"`
	Motion   *float64 `json:"Motion,omitempty"`
	Gestures *bool    `json:"Gestures,omitempty"`
}

type Scores struct {
	Volume           *float64 `json:"Volume Score,omitempty"`
	PitchVariability *float64 `json:"Pitch Variability Score,omitempty"`
	Pace             *float64 `json:"Pace Score,omitempty"`
	Pauses           *float64 `json:"Pause Score,omitempty"`
}

// Emotion is the normalized audience emotion label, "" when absent.
func (r *AnalysisResult) Emotion() string {
	if r == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(r.Feedback.AudienceEmotion))
}

// ScoreVectorDims is the width of the score_vector column.
const ScoreVectorDims = 14

// ScoreVector flattens the numeric scores in a fixed order for similarity
// search. Missing scores are 0.
func (r *AnalysisResult) ScoreVector() []float32 {
	f, s := r.Feedback, r.Scores
	vals := []*float64{
		f.Engagement, f.Confidence, f.BodyPosture, f.Curiosity, f.Empathy,
		f.Conviction, f.Clarity, f.Impact, f.Brevity, f.TransformativePotential,
		s.Volume, s.PitchVariability, s.Pace, s.Pauses,
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = float32(*v)
		}
	}
	return out
}

// ChunkSentimentAnalysis stores one window's analysis against the record of
// the window's last chunk.
type ChunkSentimentAnalysis struct {
	ID           string        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChunkID      string        `gorm:"column:chunk_id;type:text;uniqueIndex" json:"chunk_id"`
	SessionID    string        `gorm:"column:session_id;type:text;index" json:"session_id"`
	ChunkNumber  int64         `gorm:"column:chunk_number" json:"chunk_number"`
	WindowChunks pq.Int64Array `gorm:"column:window_chunks;type:bigint[]" json:"window_chunks"`

	AudienceEmotion         string   `gorm:"column:audience_emotion;type:text" json:"audience_emotion"`
	Engagement              *float64 `gorm:"column:engagement" json:"engagement"`
	Confidence              *float64 `gorm:"column:confidence" json:"confidence"`
	Conviction              *float64 `gorm:"column:conviction" json:"conviction"`
	Clarity                 *float64 `gorm:"column:clarity" json:"clarity"`
	Impact                  *float64 `gorm:"column:impact" json:"impact"`
	Brevity                 *float64 `gorm:"column:brevity" json:"brevity"`
	TransformativePotential *float64 `gorm:"column:transformative_potential" json:"transformative_potential"`
	TriggerResponse         *float64 `gorm:"column:trigger_response" json:"trigger_response"`
	FillerWords             *float64 `gorm:"column:filler_words" json:"filler_words"`
	Grammar                 *float64 `gorm:"column:grammar" json:"grammar"`
	GeneralFeedbackSummary  string   `gorm:"column:general_feedback_summary;type:text" json:"general_feedback_summary"`

	Posture  *float64 `gorm:"column:posture" json:"posture"`
	Motion   *float64 `gorm:"column:motion" json:"motion"`
	Gestures bool     `gorm:"column:gestures" json:"gestures"`

	Volume           *float64 `gorm:"column:volume" json:"volume"`
	PitchVariability *float64 `gorm:"column:pitch_variability" json:"pitch_variability"`
	Pace             *float64 `gorm:"column:pace" json:"pace"`
	Pauses           *float64 `gorm:"column:pauses" json:"pauses"`

	ChunkTranscript string          `gorm:"column:chunk_transcript;type:text" json:"chunk_transcript"`
	ScoreVector     pgvector.Vector `gorm:"column:score_vector;type:vector(14)" json:"-"`
	Raw             datatypes.JSON  `gorm:"column:raw;type:jsonb" json:"raw"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (ChunkSentimentAnalysis) TableName() string { return "chunk_sentiment_analyses" }
