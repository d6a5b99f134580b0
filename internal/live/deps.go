package live

import (
	"context"

	"github.com/yoockh/livecoach/internal/events"
	"github.com/yoockh/livecoach/internal/models"
	"github.com/yoockh/livecoach/internal/services"
)

// Conn is the live transport. WriteJSON is only ever called by one
// goroutine at a time.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

type MediaTransform interface {
	ExtractAudio(ctx context.Context, mediaPath, audioPath string) error
	ConcatAudio(ctx context.Context, inputs []string, out string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// WindowInput is what the analyzer sees of a window. AudioPath is the
// concatenated window audio and may be empty.
type WindowInput struct {
	WindowID     int64
	ChunkNumbers []int64
	Transcript   string
	MediaPath    string
	AudioPath    string
}

type Analyzer interface {
	AnalyzeWindow(ctx context.Context, in WindowInput) (*models.AnalysisResult, error)
}

type Uploader interface {
	UploadFile(ctx context.Context, localPath, objectName string) (string, error)
}

type ChunkRecorder interface {
	PersistChunkRecord(ctx context.Context, rec services.ChunkRecord) (string, error)
}

type AnalysisRecorder interface {
	PersistAnalysisRecord(ctx context.Context, rec services.AnalysisRecord) error
}

type EventPublisher interface {
	PublishAnalysis(ctx context.Context, ev events.AnalysisEvent) error
}
