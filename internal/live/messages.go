package live

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/yoockh/livecoach/internal/models"
)

const (
	TypeMedia                 = "media"
	TypeConnectionEstablished = "connection_established"
	TypeTranscriptionUpdate   = "transcription_update"
	TypeWindowEmotionUpdate   = "window_emotion_update"
	TypeFullAnalysisUpdate    = "full_analysis_update"
)

type inboundMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type connectionEstablished struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type transcriptionUpdate struct {
	Type        string `json:"type"`
	ChunkNumber int64  `json:"chunk_number"`
	Transcript  string `json:"transcript"`
}

type windowEmotionUpdate struct {
	Type         string `json:"type"`
	Emotion      string `json:"emotion"`
	EmotionS3URL string `json:"emotion_s3_url"`
}

type fullAnalysisUpdate struct {
	Type     string                 `json:"type"`
	Analysis *models.AnalysisResult `json:"analysis"`
}

var errEmptyMedia = errors.New("empty media payload")

// decodeMedia accepts plain base64 or a data URL.
func decodeMedia(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ",")
		if i < 0 {
			return nil, errEmptyMedia
		}
		data = data[i+1:]
	}
	if data == "" {
		return nil, errEmptyMedia
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errEmptyMedia
	}
	return b, nil
}
