package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Google   GoogleConfig   `yaml:"google"`
	Media    MediaConfig    `yaml:"media"`
	Live     LiveConfig     `yaml:"live"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MongoConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	ForceTLSConfig bool   `yaml:"force_tls_config"`
	InsecureTLS    bool   `yaml:"insecure_tls"`
}

type PostgresConfig struct {
	URI string `yaml:"uri"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type GoogleConfig struct {
	ProjectID    string `yaml:"project_id"`
	Location     string `yaml:"location"`
	Bucket       string `yaml:"bucket"`
	ObjectPrefix string `yaml:"object_prefix"`
	GeminiModel  string `yaml:"gemini_model"`
	Language     string `yaml:"language"`
	// EmotionBaseURL is where the static audience reaction clips live,
	// laid out as <base>/<room>/<emotion>/<n>.mp4.
	EmotionBaseURL string `yaml:"emotion_base_url"`
	// PublicRead makes uploaded chunks world-readable.
	PublicRead bool `yaml:"public_read"`
}

type MediaConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	ScratchDir  string `yaml:"scratch_dir"`
	Concurrency int    `yaml:"concurrency"`
}

// LiveConfig holds the sliding-window pipeline knobs.
type LiveConfig struct {
	Rooms                []string      `yaml:"rooms"`
	WindowSize           int           `yaml:"window_size"`
	Retention            int           `yaml:"retention"`
	EmotionVariations    int           `yaml:"emotion_variations"`
	DrainTimeout         time.Duration `yaml:"drain_timeout"`
	EvictWait            time.Duration `yaml:"evict_wait"`
	SaveWait             time.Duration `yaml:"save_wait"`
	TranscriptionTimeout time.Duration `yaml:"transcription_timeout"`
	AnalysisTimeout      time.Duration `yaml:"analysis_timeout"`
	UploadTimeout        time.Duration `yaml:"upload_timeout"`
	CleanupAttempts      int           `yaml:"cleanup_attempts"`
	CleanupBackoff       time.Duration `yaml:"cleanup_backoff"`
	MaxMessageBytes      int64         `yaml:"max_message_bytes"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info"},
		Mongo:  MongoConfig{Database: "livecoach"},
		Redis:  RedisConfig{CacheTTL: 5 * time.Minute},
		Google: GoogleConfig{
			Location:     "us-central1",
			ObjectPrefix: "session_chunks",
			GeminiModel:  "gemini-1.5-flash",
			Language:     "en-US",
			PublicRead:   true,
		},
		Media: MediaConfig{
			FFmpegPath:  "ffmpeg",
			ScratchDir:  os.TempDir(),
			Concurrency: runtime.NumCPU(),
		},
		Live: LiveConfig{
			Rooms:                []string{"conference_room", "board_room_1", "board_room_2"},
			WindowSize:           3,
			EmotionVariations:    5,
			DrainTimeout:         30 * time.Second,
			EvictWait:            10 * time.Second,
			SaveWait:             30 * time.Second,
			TranscriptionTimeout: 30 * time.Second,
			AnalysisTimeout:      120 * time.Second,
			UploadTimeout:        60 * time.Second,
			CleanupAttempts:      3,
			CleanupBackoff:       50 * time.Millisecond,
			MaxMessageBytes:      32 << 20,
		},
	}
}

// Load reads an optional YAML file over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Server.Port, "PORT")
	str(&c.Log.Level, "LOG_LEVEL")
	str(&c.Mongo.URI, "MONGO_URI")
	str(&c.Mongo.Database, "MONGO_DB")
	str(&c.Postgres.URI, "POSTGRES_URI")
	str(&c.Redis.Addr, "REDIS_ADDR", "REDIS_URI", "REDIS_URL")
	str(&c.Google.ProjectID, "GOOGLE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	str(&c.Google.Location, "GOOGLE_LOCATION")
	str(&c.Google.Bucket, "GCS_BUCKET")
	str(&c.Google.GeminiModel, "GEMINI_MODEL")
	str(&c.Google.EmotionBaseURL, "EMOTION_BASE_URL")
	str(&c.Media.FFmpegPath, "FFMPEG_PATH")
	str(&c.Media.ScratchDir, "SCRATCH_DIR")

	if os.Getenv("MONGO_FORCE_TLS_CONFIG") == "true" || os.Getenv("GO_ENV") == "development" {
		c.Mongo.ForceTLSConfig = true
	}
	if v := os.Getenv("GCS_PUBLIC_READ"); v != "" {
		c.Google.PublicRead = v == "true"
	}
	if os.Getenv("MONGO_INSECURE_TLS") == "true" {
		c.Mongo.InsecureTLS = true
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ROOMS"); v != "" {
		c.Live.Rooms = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"WINDOW_SIZE", &c.Live.WindowSize},
		{"RETENTION", &c.Live.Retention},
		{"FFMPEG_CONCURRENCY", &c.Media.Concurrency},
		{"CLEANUP_ATTEMPTS", &c.Live.CleanupAttempts},
	}
	for _, it := range ints {
		v := os.Getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", it.key, v, err)
		}
		*it.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DRAIN_TIMEOUT", &c.Live.DrainTimeout},
		{"EVICT_WAIT", &c.Live.EvictWait},
		{"SAVE_WAIT", &c.Live.SaveWait},
		{"TRANSCRIPTION_TIMEOUT", &c.Live.TranscriptionTimeout},
		{"ANALYSIS_TIMEOUT", &c.Live.AnalysisTimeout},
		{"UPLOAD_TIMEOUT", &c.Live.UploadTimeout},
		{"CACHE_TTL", &c.Redis.CacheTTL},
	}
	for _, it := range durations {
		v := os.Getenv(it.key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", it.key, v, err)
		}
		*it.dst = d
	}
	return nil
}

// Validate checks the pipeline settings. Connection strings are checked by
// the constructors that use them so that `migrate` can run without GCP
// settings.
func (c *Config) Validate() error {
	l := &c.Live
	if l.WindowSize < 1 {
		return errors.New("live.window_size must be >= 1")
	}
	if l.Retention == 0 {
		l.Retention = 2 * l.WindowSize
	}
	if l.Retention < l.WindowSize {
		return fmt.Errorf("live.retention (%d) must be >= live.window_size (%d)", l.Retention, l.WindowSize)
	}
	if len(l.Rooms) == 0 {
		return errors.New("live.rooms must not be empty")
	}
	if l.DrainTimeout <= 0 {
		return errors.New("live.drain_timeout must be positive")
	}
	if l.CleanupAttempts < 1 {
		l.CleanupAttempts = 1
	}
	if l.EmotionVariations < 1 {
		l.EmotionVariations = 1
	}
	if c.Media.Concurrency < 1 {
		c.Media.Concurrency = 1
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
