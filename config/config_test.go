package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "MONGO_URI", "MONGO_DB", "POSTGRES_URI", "REDIS_ADDR", "REDIS_URI", "REDIS_URL",
		"WINDOW_SIZE", "RETENTION", "DRAIN_TIMEOUT", "ROOMS", "FFMPEG_PATH", "SCRATCH_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Live.WindowSize != 3 {
		t.Errorf("window size = %d, want 3", cfg.Live.WindowSize)
	}
	if cfg.Live.Retention != 6 {
		t.Errorf("retention = %d, want 2N", cfg.Live.Retention)
	}
	if cfg.Live.DrainTimeout != 30*time.Second {
		t.Errorf("drain timeout = %v", cfg.Live.DrainTimeout)
	}
	want := []string{"conference_room", "board_room_1", "board_room_2"}
	if len(cfg.Live.Rooms) != len(want) {
		t.Fatalf("rooms = %v", cfg.Live.Rooms)
	}
	for i := range want {
		if cfg.Live.Rooms[i] != want[i] {
			t.Errorf("rooms[%d] = %q, want %q", i, cfg.Live.Rooms[i], want[i])
		}
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "livecoach.yaml")
	body := []byte(`
server:
  port: "9000"
live:
  window_size: 4
  drain_timeout: 5s
  rooms: [conference_room]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DRAIN_TIMEOUT", "2s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Live.WindowSize != 4 || cfg.Live.Retention != 8 {
		t.Errorf("window=%d retention=%d", cfg.Live.WindowSize, cfg.Live.Retention)
	}
	if cfg.Live.DrainTimeout != 2*time.Second {
		t.Errorf("env should override file, got %v", cfg.Live.DrainTimeout)
	}
	if cfg.Redis.Addr != "redis://localhost:6379/1" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if len(cfg.Live.Rooms) != 1 {
		t.Errorf("rooms = %v", cfg.Live.Rooms)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("WINDOW_SIZE", "four")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric WINDOW_SIZE")
	}

	t.Setenv("WINDOW_SIZE", "4")
	t.Setenv("RETENTION", "2")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when retention < window size")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRedisOptions(t *testing.T) {
	opt, err := RedisOptions("localhost:6380")
	if err != nil || opt.Addr != "localhost:6380" {
		t.Fatalf("plain addr: %v %v", opt, err)
	}
	opt, err = RedisOptions("redis://:secret@cache:6379/2")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if opt.Addr != "cache:6379" || opt.DB != 2 || opt.Password != "secret" {
		t.Fatalf("parsed %+v", opt)
	}
	if _, err := RedisOptions(""); err == nil {
		t.Fatal("empty addr should fail")
	}
}
