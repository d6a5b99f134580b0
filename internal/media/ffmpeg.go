// Package media wraps the ffmpeg subprocess calls of the live pipeline.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/yoockh/livecoach/internal/utils"
	"github.com/yoockh/livecoach/internal/workers"
)

const (
	SampleRate = 16000
	Channels   = 1
)

// FFmpeg runs extraction and concatenation through a shared worker pool.
type FFmpeg struct {
	Binary string
	pool   *workers.Pool
}

func NewFFmpeg(binary string, pool *workers.Pool) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary, pool: pool}
}

// ExtractAudio writes the audio track of a video chunk to out as 16 kHz mono
// PCM WAV.
func (f *FFmpeg) ExtractAudio(ctx context.Context, in, out string) error {
	const op = "FFmpeg.ExtractAudio"

	args := []string{
		"-y",
		"-i", in,
		"-vn",
		"-ac", fmt.Sprint(Channels),
		"-ar", fmt.Sprint(SampleRate),
		"-acodec", "pcm_s16le",
		"-nostats", "-loglevel", "error",
		out,
	}
	return f.run(ctx, op, args, out)
}

// ConcatAudio joins WAV files in order into out.
func (f *FFmpeg) ConcatAudio(ctx context.Context, inputs []string, out string) error {
	const op = "FFmpeg.ConcatAudio"

	if len(inputs) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "no inputs", nil)
	}

	args := []string{"-y"}
	var streams strings.Builder
	for i, in := range inputs {
		args = append(args, "-i", in)
		fmt.Fprintf(&streams, "[%d:a]", i)
	}
	filter := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[out]", streams.String(), len(inputs))
	args = append(args,
		"-filter_complex", filter,
		"-map", "[out]",
		"-ac", fmt.Sprint(Channels),
		"-ar", fmt.Sprint(SampleRate),
		"-acodec", "pcm_s16le",
		"-nostats", "-loglevel", "error",
		out,
	)
	return f.run(ctx, op, args, out)
}

func (f *FFmpeg) run(ctx context.Context, op string, args []string, out string) error {
	return f.pool.Do(ctx, func() error {
		cmd := exec.CommandContext(ctx, f.Binary, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			_ = os.Remove(out)
			msg := "ffmpeg failed"
			if s := strings.TrimSpace(stderr.String()); s != "" {
				msg += ": " + s
			}
			return utils.E(utils.CodeTransform, op, msg, err)
		}

		fi, err := os.Stat(out)
		if err != nil {
			return utils.E(utils.CodeTransform, op, "ffmpeg produced no output", err)
		}
		if fi.Size() == 0 {
			_ = os.Remove(out)
			return utils.E(utils.CodeTransform, op, "ffmpeg produced empty output", nil)
		}
		return nil
	})
}
