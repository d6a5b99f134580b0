package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContentType(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, b []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, b, 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	cases := map[string]string{
		write("a.wav", wav):                                "audio/wav",
		write("s1_1_media.webm", []byte{0, 1, 2, 3, 0xff}): "video/webm",
		write("blob.bin", []byte{0, 1, 2, 3, 0xff}):        "application/octet-stream",
	}
	for p, want := range cases {
		if got := contentType(p); got != want {
			t.Fatalf("contentType(%s) = %q, want %q", filepath.Base(p), got, want)
		}
	}
}

func TestObjectURL(t *testing.T) {
	got := objectURL("coach-media", "session_chunks/s1/c1/s1_1_media.webm")
	if got != "https://storage.googleapis.com/coach-media/session_chunks/s1/c1/s1_1_media.webm" {
		t.Fatalf("objectURL = %q", got)
	}
}
