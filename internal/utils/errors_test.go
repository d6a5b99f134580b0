package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	inner := errors.New("exit status 1")
	err := E(CodeTransform, "FFmpeg.ExtractAudio", "ffmpeg failed", inner)

	if got, want := err.Error(), "FFmpeg.ExtractAudio: ffmpeg failed: exit status 1"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Fatal("AppError should unwrap to the wrapped error")
	}
}

func TestCodeHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("window 4: %w", E(CodeUnavailable, "VertexAnalyzer.AnalyzeWindow", "generate failed", nil))

	if !IsCode(err, CodeUnavailable) {
		t.Fatal("IsCode should match a wrapped AppError")
	}
	if CodeOf(err) != CodeUnavailable {
		t.Fatalf("CodeOf = %s", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Fatal("plain errors default to INTERNAL")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{E(CodeInvalidArgument, "op", "bad room", nil), http.StatusBadRequest},
		{E(CodeNotFound, "op", "missing", nil), http.StatusNotFound},
		{E(CodeUnavailable, "op", "down", nil), http.StatusServiceUnavailable},
		{E(CodeTransform, "op", "ffmpeg", nil), http.StatusUnprocessableEntity},
		{E(CodeCleanup, "op", "rm", nil), http.StatusInternalServerError},
		{ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
