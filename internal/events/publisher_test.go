package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/livecoach/internal/models"
	"github.com/yoockh/livecoach/internal/utils"
)

func TestChannel(t *testing.T) {
	if got := Channel("s1"); got != "session:s1:analysis" {
		t.Fatalf("Channel = %q", got)
	}
}

func TestEventShape(t *testing.T) {
	ev := AnalysisEvent{
		SessionID:    "s1",
		WindowID:     4,
		ChunkNumbers: []int64{2, 3, 4},
		Analysis:     &models.AnalysisResult{Feedback: models.Feedback{AudienceEmotion: "Curious"}},
	}
	b, _ := json.Marshal(ev)

	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"session_id", "window_id", "chunk_numbers", "analysis"} {
		if _, ok := back[k]; !ok {
			t.Errorf("missing key %q in %s", k, b)
		}
	}
}

func TestPublishUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	err := NewRedisPublisher(rdb).PublishAnalysis(context.Background(), AnalysisEvent{SessionID: "s1"})
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("err = %v, want UNAVAILABLE", err)
	}
}
