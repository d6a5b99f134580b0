package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/yoockh/livecoach/internal/utils"
	"github.com/yoockh/livecoach/internal/workers"
)

// fakeFFmpeg writes a shell script standing in for ffmpeg. It records its
// arguments next to itself and then runs body with $out set to the last
// argument.
func fakeFFmpeg(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs /bin/sh")
	}
	dir := t.TempDir()
	bin = filepath.Join(dir, "ffmpeg")
	argsFile = filepath.Join(dir, "args")
	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsFile + "\n" +
		"for out; do :; done\n" +
		body + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, argsFile
}

func TestExtractAudio(t *testing.T) {
	bin, argsFile := fakeFFmpeg(t, `printf 'RIFFdata' > "$out"`)
	f := NewFFmpeg(bin, workers.NewPool(1))

	out := filepath.Join(t.TempDir(), "chunk.wav")
	if err := f.ExtractAudio(context.Background(), "in.webm", out); err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}

	args, _ := os.ReadFile(argsFile)
	for _, want := range []string{"-i in.webm", "-vn", "-ar 16000", "-ac 1", "pcm_s16le"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestExtractAudioNonZeroExit(t *testing.T) {
	bin, _ := fakeFFmpeg(t, `printf 'partial' > "$out"; echo "Invalid data found" >&2; exit 1`)
	f := NewFFmpeg(bin, nil)

	out := filepath.Join(t.TempDir(), "chunk.wav")
	err := f.ExtractAudio(context.Background(), "in.webm", out)
	if !utils.IsCode(err, utils.CodeTransform) {
		t.Fatalf("err = %v, want TRANSFORM_FAILED", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("stderr not surfaced: %v", err)
	}
	if _, serr := os.Stat(out); !os.IsNotExist(serr) {
		t.Error("partial output should be removed")
	}
}

func TestExtractAudioEmptyOrMissingOutput(t *testing.T) {
	for name, body := range map[string]string{
		"empty":   `: > "$out"`,
		"missing": `exit 0`,
	} {
		t.Run(name, func(t *testing.T) {
			bin, _ := fakeFFmpeg(t, body)
			out := filepath.Join(t.TempDir(), "chunk.wav")
			err := NewFFmpeg(bin, nil).ExtractAudio(context.Background(), "in.webm", out)
			if !utils.IsCode(err, utils.CodeTransform) {
				t.Fatalf("err = %v, want TRANSFORM_FAILED", err)
			}
			if _, serr := os.Stat(out); !os.IsNotExist(serr) {
				t.Error("empty output should be removed")
			}
		})
	}
}

func TestConcatAudio(t *testing.T) {
	bin, argsFile := fakeFFmpeg(t, `printf 'RIFFjoined' > "$out"`)
	f := NewFFmpeg(bin, nil)

	out := filepath.Join(t.TempDir(), "window.wav")
	if err := f.ConcatAudio(context.Background(), []string{"1.wav", "2.wav", "3.wav"}, out); err != nil {
		t.Fatalf("ConcatAudio: %v", err)
	}
	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "[0:a][1:a][2:a]concat=n=3:v=0:a=1[out]") {
		t.Errorf("unexpected filter in %q", args)
	}

	if err := f.ConcatAudio(context.Background(), nil, out); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("empty input list: %v", err)
	}
}

func TestMissingBinary(t *testing.T) {
	f := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"), nil)
	err := f.ExtractAudio(context.Background(), "in.webm", filepath.Join(t.TempDir(), "o.wav"))
	if !utils.IsCode(err, utils.CodeTransform) {
		t.Fatalf("err = %v", err)
	}
}
