package stt

import (
	"context"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/yoockh/livecoach/internal/utils"
)

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

// GoogleSpeech transcribes the 16 kHz mono LINEAR16 files produced by the
// media transform.
type GoogleSpeech struct {
	c      recognizer
	closer func() error

	Language     string
	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context, language string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeech{
		c:            c,
		closer:       c.Close,
		Language:     language,
		SampleRateHz: 16000,
	}, nil
}

func (g *GoogleSpeech) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// Transcribe returns the best transcript of every recognized segment joined
// by spaces. Silence yields "".
func (g *GoogleSpeech) Transcribe(ctx context.Context, audioPath string) (string, error) {
	const op = "GoogleSpeech.Transcribe"

	raw, err := os.ReadFile(audioPath)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to read audio", err)
	}
	pcm, rate, err := pcmFromWAV(raw)
	if err != nil {
		return "", utils.E(utils.CodeInvalidArgument, op, "malformed wav", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	if rate == 0 {
		rate = g.SampleRateHz
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            rate,
			AudioChannelCount:          1,
			LanguageCode:               g.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", utils.E(utils.CodeTimeout, op, "speech request timed out", err)
		}
		return "", utils.E(utils.CodeUnavailable, op, "speech request failed", err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		var best string
		var bestConf float32 = -1
		for _, alt := range r.GetAlternatives() {
			if alt.GetTranscript() != "" && alt.GetConfidence() > bestConf {
				best = alt.GetTranscript()
				bestConf = alt.GetConfidence()
			}
		}
		if best = strings.TrimSpace(best); best != "" {
			parts = append(parts, best)
		}
	}
	return strings.Join(parts, " "), nil
}
