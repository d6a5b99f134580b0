package llm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"text/template"

	"github.com/yoockh/livecoach/internal/live"
	"github.com/yoockh/livecoach/internal/models"
	"github.com/yoockh/livecoach/internal/utils"
)

var promptTmpl = template.Must(template.New("analysis").Parse(`You are an advanced presentation evaluation system. Using the attached video of the speaker, the attached audio of the last {{len .ChunkNumbers}} segments and the transcript below, evaluate this part of a live presentation.

Transcript:
{{.Transcript}}

Return valid JSON only, no extra text, with this shape:
{
  "Feedback": {
    "Audience Emotion": one of [thinking, happy, bored, curious, neutral, confused],
    "Tone": a single string naming one or two of [Authoritative, Persuasive, Conversational, Inspirational, Empathetic, Enthusiastic, Serious, Humorous, Reflective, Urgent], e.g. "Persuasive, Serious",
    "Engagement": 1-100, "Confidence": 1-100, "Body Posture": 1-100,
    "Curiosity": 1-100, "Empathy": 1-100, "Conviction": 1-100, "Clarity": 1-100,
    "Impact": 1-100, "Brevity": 1-100, "Transformative Potential": 1-100,
    "Trigger Response": 1-100, "Filler Words": 1-100, "Grammar": 1-100,
    "Strengths": string,
    "Areas of Improvements": specific, actionable suggestions,
    "General Feedback Summary": tie the scores, transcript and body language together
  },
  "Posture": {"Posture": 1-100, "Motion": 1-100, "Gestures": true or false},
  "Scores": {"Volume Score": 1-100, "Pitch Variability Score": 1-100, "Pace Score": 1-100, "Pause Score": 1-100}
}

Be specific and data-driven. Reference what you hear and see, and balance strengths with areas for improvement.`))

// Keys of the answer, shared by the response schema and the decoder.
var (
	emotions       = []string{"thinking", "happy", "bored", "curious", "neutral", "confused"}
	feedbackScores = []string{
		"Engagement", "Confidence", "Body Posture", "Curiosity", "Empathy",
		"Conviction", "Clarity", "Impact", "Brevity", "Transformative Potential",
		"Trigger Response", "Filler Words", "Grammar",
	}
	feedbackText  = []string{"Tone", "Strengths", "Areas of Improvements", "General Feedback Summary"}
	postureScores = []string{"Posture", "Motion"}
	voiceScores   = []string{"Volume Score", "Pitch Variability Score", "Pace Score", "Pause Score"}
)

func buildPrompt(in live.WindowInput) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DecodeAnalysis parses a model answer. It accepts the answer wrapped in a
// markdown code fence and a bare Feedback object. Scores sent as strings
// are read as numbers, a Tone list is joined, and values that still do not
// fit are dropped instead of failing the whole answer.
func DecodeAnalysis(answer string) (*models.AnalysisResult, error) {
	const op = "llm.DecodeAnalysis"

	raw := stripFence(answer)
	if raw == "" {
		return nil, utils.E(utils.CodeUnavailable, op, "empty model answer", nil)
	}

	var top map[string]any
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "model answer is not a JSON object", err)
	}

	if _, ok := top["Feedback"]; !ok {
		top = map[string]any{"Feedback": top}
	}
	fb, ok := top["Feedback"].(map[string]any)
	if !ok {
		return nil, utils.E(utils.CodeUnavailable, op, "model answer has no feedback object", nil)
	}
	coerceNumbers(fb, feedbackScores)
	coerceStrings(fb, feedbackText)
	coerceStrings(fb, []string{"Audience Emotion"})
	if p, ok := top["Posture"].(map[string]any); ok {
		coerceNumbers(p, postureScores)
		coerceBool(p, "Gestures")
	}
	if sc, ok := top["Scores"].(map[string]any); ok {
		coerceNumbers(sc, voiceScores)
	}

	b, err := json.Marshal(top)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to re-encode model answer", err)
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "model answer does not match the analysis shape", err)
	}
	return &res, nil
}

func coerceNumbers(m map[string]any, keys []string) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil, float64:
		case string:
			f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
			if err != nil {
				delete(m, k)
				continue
			}
			m[k] = f
		default:
			delete(m, k)
		}
	}
}

func coerceStrings(m map[string]any, keys []string) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil, string:
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
					parts = append(parts, strings.TrimSpace(s))
				}
			}
			m[k] = strings.Join(parts, ", ")
		default:
			delete(m, k)
		}
	}
}

func coerceBool(m map[string]any, key string) {
	switch v := m[key].(type) {
	case nil, bool:
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			delete(m, key)
			return
		}
		m[key] = b
	default:
		delete(m, key)
	}
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
