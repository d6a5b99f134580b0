// Package live runs the per-connection chunk ingestion and sliding-window
// analysis pipeline.
package live

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/livecoach/internal/metrics"
	"github.com/yoockh/livecoach/internal/scratch"
	"github.com/yoockh/livecoach/internal/utils"
)

type Config struct {
	Rooms      []string
	WindowSize int
	Retention  int

	ScratchDir   string
	ObjectPrefix string

	// EmotionBaseURL empty disables window_emotion_update messages.
	EmotionBaseURL    string
	EmotionVariations int

	DrainTimeout         time.Duration
	EvictWait            time.Duration
	SaveWait             time.Duration
	TranscriptionTimeout time.Duration
	AnalysisTimeout      time.Duration
	UploadTimeout        time.Duration

	CleanupAttempts int
	CleanupBackoff  time.Duration
}

func (c *Config) setDefaults() {
	if len(c.Rooms) == 0 {
		c.Rooms = []string{"conference_room", "board_room_1", "board_room_2"}
	}
	if c.WindowSize < 1 {
		c.WindowSize = 3
	}
	if c.Retention < c.WindowSize {
		c.Retention = 2 * c.WindowSize
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	if c.ObjectPrefix == "" {
		c.ObjectPrefix = "session_chunks"
	}
	if c.EmotionVariations < 1 {
		c.EmotionVariations = 5
	}
	durations := []struct {
		d   *time.Duration
		def time.Duration
	}{
		{&c.DrainTimeout, 30 * time.Second},
		{&c.EvictWait, 10 * time.Second},
		{&c.SaveWait, 30 * time.Second},
		{&c.TranscriptionTimeout, 30 * time.Second},
		{&c.AnalysisTimeout, 120 * time.Second},
		{&c.UploadTimeout, 60 * time.Second},
	}
	for _, it := range durations {
		if *it.d <= 0 {
			*it.d = it.def
		}
	}
	if c.CleanupAttempts < 1 {
		c.CleanupAttempts = 3
	}
}

type Dependencies struct {
	Media       MediaTransform
	Transcriber Transcriber
	Analyzer    Analyzer
	Uploader    Uploader
	Chunks      ChunkRecorder
	Analyses    AnalysisRecorder

	Events  EventPublisher   // optional
	Metrics *metrics.Metrics // optional
	Logger  *logrus.Logger   // optional
}

// Params are the connect-time query parameters.
type Params struct {
	SessionID string
	RoomName  string
}

// Manager validates and serves live connections. Collaborators are shared
// by all connections; everything else is per connection.
type Manager struct {
	base   context.Context
	cfg    Config
	deps   Dependencies
	rooms  map[string]struct{}
	active atomic.Int64
}

// NewManager builds a Manager whose background tasks run on base.
func NewManager(base context.Context, cfg Config, deps Dependencies) (*Manager, error) {
	const op = "live.NewManager"

	if deps.Media == nil || deps.Transcriber == nil || deps.Analyzer == nil ||
		deps.Uploader == nil || deps.Chunks == nil || deps.Analyses == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "media, transcriber, analyzer, uploader, chunk and analysis recorders are required", nil)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	cfg.setDefaults()

	rooms := make(map[string]struct{}, len(cfg.Rooms))
	for _, r := range cfg.Rooms {
		rooms[r] = struct{}{}
	}
	return &Manager{base: base, cfg: cfg, deps: deps, rooms: rooms}, nil
}

func (m *Manager) Validate(p Params) error {
	const op = "Manager.Validate"

	if strings.TrimSpace(p.SessionID) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if _, ok := m.rooms[p.RoomName]; !ok {
		rooms := make([]string, 0, len(m.rooms))
		for r := range m.rooms {
			rooms = append(rooms, r)
		}
		sort.Strings(rooms)
		return utils.E(utils.CodeInvalidArgument, op, "room_name must be one of: "+strings.Join(rooms, ", "), nil)
	}
	return nil
}

// Admit is Validate plus rejection accounting. Transports call it before
// accepting a connection.
func (m *Manager) Admit(p Params) error {
	if err := m.Validate(p); err != nil {
		m.deps.Metrics.ConnectionsRejected.Inc()
		m.deps.Logger.WithError(err).WithField("session_id", p.SessionID).Warn("live connection rejected")
		return err
	}
	return nil
}

// Serve runs one connection to completion. Invalid params close conn
// without reading from it. Once accepted, Serve only returns after the
// drain and cleanup of the connection, and never with an error.
func (m *Manager) Serve(ctx context.Context, p Params, conn Conn) (Summary, error) {
	if err := m.Admit(p); err != nil {
		_ = conn.Close()
		return Summary{SessionID: p.SessionID, State: StateClosed}, err
	}

	s, err := m.newSession(p, conn)
	if err != nil {
		_ = conn.Close()
		return Summary{SessionID: p.SessionID, State: StateClosed}, err
	}

	m.active.Add(1)
	m.deps.Metrics.ConnectionsActive.Inc()
	defer func() {
		m.active.Add(-1)
		m.deps.Metrics.ConnectionsActive.Dec()
	}()

	return s.run(ctx), nil
}

// Active is the number of connections currently being served.
func (m *Manager) Active() int { return int(m.active.Load()) }

func (m *Manager) newSession(p Params, conn Conn) (*Session, error) {
	connID := uuid.NewString()
	tag := safeName(p.SessionID)
	log := m.deps.Logger.WithFields(logrus.Fields{
		"session_id":    p.SessionID,
		"connection_id": connID,
		"room_name":     p.RoomName,
	})

	store, err := scratch.New(m.cfg.ScratchDir, tag+"-"+connID, scratch.Options{
		Attempts: m.cfg.CleanupAttempts,
		Backoff:  m.cfg.CleanupBackoff,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		m:       m,
		cfg:     m.cfg,
		deps:    m.deps,
		params:  p,
		connID:  connID,
		tag:     tag,
		log:     log,
		conn:    conn,
		out:     &sender{conn: conn, log: log},
		store:   store,
		buffer:  NewBuffer(m.cfg.WindowSize, m.cfg.Retention),
		ledger:  NewLedger(m.base, log),
		records: newRecordIndex(),
	}, nil
}

// emotionURL picks one of the static reaction clips for the room.
func (m *Manager) emotionURL(room, emotion string) string {
	if m.cfg.EmotionBaseURL == "" || emotion == "" {
		return ""
	}
	n := rand.IntN(m.cfg.EmotionVariations) + 1
	return fmt.Sprintf("%s/%s/%s/%d.mp4",
		strings.TrimRight(m.cfg.EmotionBaseURL, "/"),
		url.PathEscape(room), url.PathEscape(emotion), n)
}

// safeName maps an opaque session id onto something usable in file names.
func safeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	return b.String()
}
