package llm

import (
	"context"
	"os"
	"sort"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/yoockh/livecoach/internal/live"
	"github.com/yoockh/livecoach/internal/models"
	"github.com/yoockh/livecoach/internal/utils"
	"google.golang.org/api/iterator"
)

// VertexGemini analyzes a window with a multimodal Gemini model.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = analysisSchema()
	m.SetTemperature(0.2)
	return &VertexGemini{client: c, model: m}, nil
}

func analysisSchema() *vertexgenai.Schema {
	fields := func(keys []string, t vertexgenai.Type) map[string]*vertexgenai.Schema {
		out := make(map[string]*vertexgenai.Schema, len(keys))
		for _, k := range keys {
			out[k] = &vertexgenai.Schema{Type: t}
		}
		return out
	}
	object := func(props map[string]*vertexgenai.Schema) *vertexgenai.Schema {
		req := make([]string, 0, len(props))
		for k := range props {
			req = append(req, k)
		}
		sort.Strings(req)
		return &vertexgenai.Schema{Type: vertexgenai.TypeObject, Properties: props, Required: req}
	}

	feedback := fields(feedbackScores, vertexgenai.TypeNumber)
	for k, v := range fields(feedbackText, vertexgenai.TypeString) {
		feedback[k] = v
	}
	feedback["Audience Emotion"] = &vertexgenai.Schema{Type: vertexgenai.TypeString, Format: "enum", Enum: emotions}

	posture := fields(postureScores, vertexgenai.TypeNumber)
	posture["Gestures"] = &vertexgenai.Schema{Type: vertexgenai.TypeBoolean}

	return object(map[string]*vertexgenai.Schema{
		"Feedback": object(feedback),
		"Posture":  object(posture),
		"Scores":   object(fields(voiceScores, vertexgenai.TypeNumber)),
	})
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) AnalyzeWindow(ctx context.Context, in live.WindowInput) (*models.AnalysisResult, error) {
	const op = "VertexGemini.AnalyzeWindow"

	prompt, err := buildPrompt(in)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to build prompt", err)
	}

	parts := []vertexgenai.Part{vertexgenai.Text(prompt)}
	if in.MediaPath != "" {
		b, err := os.ReadFile(in.MediaPath)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to read window media", err)
		}
		parts = append(parts, vertexgenai.Blob{MIMEType: "video/webm", Data: b})
	}
	if in.AudioPath != "" {
		b, err := os.ReadFile(in.AudioPath)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to read window audio", err)
		}
		parts = append(parts, vertexgenai.Blob{MIMEType: "audio/wav", Data: b})
	}

	var sb strings.Builder
	it := v.model.GenerateContentStream(ctx, parts...)
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "gemini request failed", err)
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					sb.WriteString(string(t))
				}
			}
		}
	}

	res, err := DecodeAnalysis(sb.String())
	if err != nil {
		return nil, err
	}
	if res.Transcript == "" {
		res.Transcript = in.Transcript
	}
	return res, nil
}
