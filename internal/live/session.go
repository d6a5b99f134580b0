package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/livecoach/internal/events"
	"github.com/yoockh/livecoach/internal/models"
	"github.com/yoockh/livecoach/internal/scratch"
	"github.com/yoockh/livecoach/internal/services"
	"github.com/yoockh/livecoach/internal/utils"
)

type State int32

const (
	StateIdle State = iota
	StateConnected
	StateStreaming
	StateDraining
	StateClosed
)

var stateNames = [...]string{"idle", "connected", "streaming", "draining", "closed"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Summary is what a finished connection reports.
type Summary struct {
	SessionID         string `json:"session_id"`
	ConnectionID      string `json:"connection_id"`
	ChunksReceived    int64  `json:"chunks_received"`
	ChunksSaved       int64  `json:"chunks_saved"`
	MessagesDropped   int64  `json:"messages_dropped"`
	WindowsTriggered  int64  `json:"windows_triggered"`
	WindowsAnalyzed   int64  `json:"windows_analyzed"`
	AnalysesPersisted int64  `json:"analyses_persisted"`
	PendingAtClose    int    `json:"pending_at_close"`
	State             State  `json:"state"`
}

const (
	dropMalformed   = "malformed"
	dropUnknownType = "unknown_type"
	dropEmptyMedia  = "empty_media"
	dropBadMedia    = "bad_media"
	dropScratch     = "scratch_write"
	dropClosed      = "closed"

	skipEmptyTranscript = "empty_transcript"
	skipAnalysisFailed  = "analysis_failed"
	skipNoRecord        = "no_chunk_record"
)

func chunkKey(seq int64) string { return "chunk:" + strconv.FormatInt(seq, 10) }

func windowKey(id int64) string { return "window:" + strconv.FormatInt(id, 10) }

func sinceSeconds(t time.Time) float64 { return time.Since(t).Seconds() }

// Session is one live connection. Everything except the ledger tasks runs
// on the goroutine that called Serve.
type Session struct {
	m      *Manager
	cfg    Config
	deps   Dependencies
	params Params
	connID string
	tag    string
	log    *logrus.Entry

	conn    Conn
	out     *sender
	store   *scratch.Store
	buffer  *Buffer
	ledger  *Ledger
	records *recordIndex
	state   atomic.Int32

	seq       int64
	received  int64
	dropped   int64
	triggered int64

	saved     atomic.Int64
	analyzed  atomic.Int64
	persisted atomic.Int64
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.log.WithField("state", st.String()).Debug("session state")
}

func (s *Session) run(ctx context.Context) Summary {
	s.setState(StateConnected)
	s.log.WithField("scratch_dir", s.store.Dir()).Info("live connection accepted")
	s.out.send(connectionEstablished{
		Type:    TypeConnectionEstablished,
		Message: "WebSocket connection established",
	})
	s.setState(StateStreaming)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-stop:
		}
	}()

	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.WithError(err).Debug("read loop ended")
			break
		}
		s.onMessage(ctx, data)
	}
	close(stop)

	return s.onDisconnect()
}

func (s *Session) drop(reason string, err error) {
	s.dropped++
	s.deps.Metrics.MessagesDropped.WithLabelValues(reason).Inc()
	e := s.log.WithField("reason", reason)
	if err != nil {
		e = e.WithError(err)
	}
	if reason == dropMalformed || reason == dropUnknownType {
		e.Debug("inbound message dropped")
		return
	}
	e.Warn("inbound message dropped")
}

func (s *Session) onMessage(ctx context.Context, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.drop(dropMalformed, err)
		return
	}
	if msg.Type != TypeMedia {
		s.drop(dropUnknownType, nil)
		return
	}
	media, err := decodeMedia(msg.Data)
	if err != nil {
		if errors.Is(err, errEmptyMedia) {
			s.drop(dropEmptyMedia, nil)
		} else {
			s.drop(dropBadMedia, err)
		}
		return
	}
	s.handleChunk(ctx, media)
}

// handleChunk runs the ordered per-chunk stages: store, save in the
// background, extract and transcribe inline, trigger a window, evict.
func (s *Session) handleChunk(ctx context.Context, media []byte) {
	seq := s.seq + 1
	log := s.log.WithField("chunk_number", seq)

	mediaPath, err := s.store.WriteFile(fmt.Sprintf("%s_%d_media.webm", s.tag, seq), media)
	if err != nil {
		if errors.Is(err, scratch.ErrClosed) {
			s.drop(dropClosed, err)
		} else {
			s.drop(dropScratch, err)
		}
		return
	}
	s.seq = seq
	s.received++
	s.deps.Metrics.ChunksReceived.Inc()

	c := &Chunk{Seq: seq, MediaPath: mediaPath}
	s.buffer.Append(c)

	// The save holds no lease: eviction may remove the media under a slow
	// upload, which then fails like any other upload error.
	s.ledger.Schedule(chunkKey(seq), func(tctx context.Context) error {
		return s.saveChunk(tctx, seq, mediaPath)
	})

	s.extractAndTranscribe(ctx, log, c)
	s.triggerWindow()
	s.evict()
}

func (s *Session) release(paths ...string) {
	if err := s.store.Release(paths...); err != nil {
		s.deps.Metrics.CleanupFailures.Inc()
	}
}

func (s *Session) removeFiles(paths ...string) {
	if err := s.store.Remove(paths...); err != nil {
		s.deps.Metrics.CleanupFailures.Inc()
	}
}

func (s *Session) extractAndTranscribe(ctx context.Context, log *logrus.Entry, c *Chunk) {
	audioPath, err := s.store.Path(fmt.Sprintf("%s_%d_audio.wav", s.tag, c.Seq))
	if err != nil {
		log.WithError(err).Warn("no scratch path for chunk audio")
		return
	}

	start := time.Now()
	err = s.deps.Media.ExtractAudio(ctx, c.MediaPath, audioPath)
	s.deps.Metrics.StageDuration.WithLabelValues("extract").Observe(sinceSeconds(start))
	if err != nil {
		s.deps.Metrics.ExtractionFailures.Inc()
		log.WithError(err).Warn("audio extraction failed; chunk will not be transcribed")
		s.removeFiles(audioPath)
		return
	}
	c.AudioPath = audioPath

	tctx, cancel := context.WithTimeout(ctx, s.cfg.TranscriptionTimeout)
	defer cancel()

	start = time.Now()
	text, err := s.deps.Transcriber.Transcribe(tctx, audioPath)
	s.deps.Metrics.StageDuration.WithLabelValues("transcribe").Observe(sinceSeconds(start))
	if err != nil {
		s.deps.Metrics.TranscriptionFailures.Inc()
		log.WithError(err).Warn("transcription failed")
		return
	}
	c.Transcript = text

	s.out.send(transcriptionUpdate{
		Type:        TypeTranscriptionUpdate,
		ChunkNumber: c.Seq,
		Transcript:  text,
	})
}

func (s *Session) triggerWindow() {
	w, ok := s.buffer.Window()
	if !ok {
		return
	}

	files := w.Files()
	s.store.Acquire(files...)
	var once sync.Once
	done := func() { once.Do(func() { s.release(files...) }) }
	_, scheduled := s.ledger.Schedule(windowKey(w.ID), func(tctx context.Context) error {
		defer done()
		return s.analyzeWindow(tctx, w, done)
	})
	if !scheduled {
		done()
		return
	}
	s.triggered++
	s.deps.Metrics.WindowsTriggered.Inc()
	s.log.WithFields(logrus.Fields{
		"window_id":     w.ID,
		"window_chunks": w.Seqs(),
	}).Debug("window analysis scheduled")
}

// evict drops chunks beyond retention. The oldest chunk's save gets a
// bounded grace period first; its files go away now, or once the window
// analyses still reading them are done.
func (s *Session) evict() {
	for s.buffer.Overfull() {
		oldest := s.buffer.Oldest()
		if !s.ledger.Wait(chunkKey(oldest.Seq), s.cfg.EvictWait) {
			s.log.WithField("chunk_number", oldest.Seq).Warn("evicting chunk with save still in flight")
		}
		c := s.buffer.PopOldest()
		s.removeFiles(c.MediaPath, c.AudioPath)
	}
}

func (s *Session) saveChunk(ctx context.Context, seq int64, mediaPath string) error {
	log := s.log.WithField("chunk_number", seq)
	start := time.Now()
	defer func() {
		s.deps.Metrics.StageDuration.WithLabelValues("save").Observe(sinceSeconds(start))
	}()

	uctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	object := path.Join(s.cfg.ObjectPrefix, s.params.SessionID, s.connID, path.Base(mediaPath))
	ref, err := s.deps.Uploader.UploadFile(uctx, mediaPath, object)
	if err != nil {
		s.deps.Metrics.ChunkSaves.WithLabelValues("upload_failed").Inc()
		log.WithError(err).Error("chunk upload failed")
		return err
	}

	id, err := s.deps.Chunks.PersistChunkRecord(ctx, services.ChunkRecord{
		SessionID:    s.params.SessionID,
		ConnectionID: s.connID,
		ChunkNumber:  seq,
		RemoteRef:    ref,
	})
	if err != nil {
		s.deps.Metrics.ChunkSaves.WithLabelValues("record_failed").Inc()
		log.WithError(err).WithField("code", utils.CodeOf(err)).Error("chunk record failed")
		return err
	}

	s.records.set(seq, id)
	s.saved.Add(1)
	s.deps.Metrics.ChunkSaves.WithLabelValues("ok").Inc()
	log.WithField("record_id", id).Info("chunk saved")
	return nil
}

// analyzeWindow calls filesDone as soon as the chunk files are no longer
// read, so eviction is not held up by the persistence wait.
func (s *Session) analyzeWindow(ctx context.Context, w Window, filesDone func()) error {
	log := s.log.WithFields(logrus.Fields{"window_id": w.ID, "window_chunks": w.Seqs()})

	transcript := w.Transcript()
	if transcript == "" {
		s.deps.Metrics.WindowsSkipped.WithLabelValues(skipEmptyTranscript).Inc()
		log.Info("window has no transcript; skipping analysis")
		return nil
	}

	in := WindowInput{
		WindowID:     w.ID,
		ChunkNumbers: w.Seqs(),
		Transcript:   transcript,
		MediaPath:    w.First().MediaPath,
	}
	if audio := w.AudioPaths(); len(audio) > 0 {
		if p, err := s.windowAudio(ctx, w.ID, audio); err != nil {
			log.WithError(err).Warn("window audio unavailable; analyzing without it")
		} else {
			in.AudioPath = p
			defer s.removeFiles(p)
		}
	}

	actx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.deps.Analyzer.AnalyzeWindow(actx, in)
	s.deps.Metrics.StageDuration.WithLabelValues("analyze").Observe(sinceSeconds(start))
	filesDone()
	if err != nil || result == nil {
		s.deps.Metrics.WindowsSkipped.WithLabelValues(skipAnalysisFailed).Inc()
		log.WithError(err).Error("window analysis failed")
		return err
	}
	s.analyzed.Add(1)
	s.deps.Metrics.WindowsAnalyzed.Inc()

	if emotion := result.Emotion(); emotion != "" {
		if u := s.m.emotionURL(s.params.RoomName, emotion); u != "" {
			s.out.send(windowEmotionUpdate{
				Type:         TypeWindowEmotionUpdate,
				Emotion:      emotion,
				EmotionS3URL: u,
			})
		}
	}
	s.out.send(fullAnalysisUpdate{Type: TypeFullAnalysisUpdate, Analysis: result})

	if s.deps.Events != nil {
		err := s.deps.Events.PublishAnalysis(ctx, events.AnalysisEvent{
			SessionID:    s.params.SessionID,
			ConnectionID: s.connID,
			WindowID:     w.ID,
			ChunkNumbers: in.ChunkNumbers,
			Analysis:     result,
		})
		if err != nil {
			log.WithError(err).Warn("analysis event not published")
		}
	}

	return s.persistAnalysis(ctx, log, w, transcript, result)
}

func (s *Session) windowAudio(ctx context.Context, id int64, inputs []string) (string, error) {
	out, err := s.store.Path(fmt.Sprintf("%s_window_%d.wav", s.tag, id))
	if err != nil {
		return "", err
	}
	start := time.Now()
	err = s.deps.Media.ConcatAudio(ctx, inputs, out)
	s.deps.Metrics.StageDuration.WithLabelValues("concat").Observe(sinceSeconds(start))
	if err != nil {
		s.removeFiles(out)
		return "", err
	}
	return out, nil
}

// persistAnalysis stores the result against the chunk record of the
// window's last chunk, waiting a bounded time for that chunk's save.
func (s *Session) persistAnalysis(ctx context.Context, log *logrus.Entry, w Window, transcript string, result *models.AnalysisResult) error {
	last := w.Last().Seq
	if t, ok := s.ledger.Get(chunkKey(last)); ok {
		if !t.Wait(s.cfg.SaveWait) {
			log.Warn("chunk save still pending after wait")
		} else if err := t.Err(); err != nil {
			log.WithError(err).Debug("chunk save failed")
		}
	}
	id, ok := s.records.get(last)
	if !ok {
		s.deps.Metrics.WindowsSkipped.WithLabelValues(skipNoRecord).Inc()
		log.Info("no chunk record for window; analysis not persisted")
		return nil
	}

	rec := services.AnalysisRecord{
		RecordID:     id,
		SessionID:    s.params.SessionID,
		ChunkNumber:  last,
		WindowChunks: w.Seqs(),
		Transcript:   transcript,
		Result:       result,
	}
	if err := s.deps.Analyses.PersistAnalysisRecord(ctx, rec); err != nil {
		log.WithError(err).WithField("record_id", id).Error("analysis persistence failed")
		return err
	}
	s.persisted.Add(1)
	s.deps.Metrics.AnalysesPersisted.Inc()
	log.WithField("record_id", id).Info("analysis persisted")
	return nil
}

// onDisconnect stops outbound traffic, waits for background work within
// the drain timeout and removes every scratch file regardless.
func (s *Session) onDisconnect() Summary {
	s.setState(StateDraining)
	s.out.close()

	pending := s.ledger.AwaitAll(s.cfg.DrainTimeout)
	if pending > 0 {
		s.deps.Metrics.DrainTimeouts.Inc()
		s.log.WithField("pending", pending).Warn("drain timed out; abandoning background work")
	}

	if err := s.store.RemoveAll(); err != nil {
		s.deps.Metrics.CleanupFailures.Inc()
		s.log.WithError(err).WithField("left", s.store.Files()).Error("scratch cleanup incomplete")
	}
	_ = s.conn.Close()
	s.setState(StateClosed)

	sum := Summary{
		SessionID:         s.params.SessionID,
		ConnectionID:      s.connID,
		ChunksReceived:    s.received,
		ChunksSaved:       s.saved.Load(),
		MessagesDropped:   s.dropped,
		WindowsTriggered:  s.triggered,
		WindowsAnalyzed:   s.analyzed.Load(),
		AnalysesPersisted: s.persisted.Load(),
		PendingAtClose:    pending,
		State:             StateClosed,
	}
	s.log.WithFields(logrus.Fields{
		"chunks_received":    sum.ChunksReceived,
		"chunks_saved":       sum.ChunksSaved,
		"messages_dropped":   sum.MessagesDropped,
		"windows_triggered":  sum.WindowsTriggered,
		"windows_analyzed":   sum.WindowsAnalyzed,
		"analyses_persisted": sum.AnalysesPersisted,
		"pending_at_close":   sum.PendingAtClose,
	}).Info("live connection closed")
	return sum
}

// recordIndex maps chunk numbers to their persisted record ids. Written by
// save tasks, read by window tasks.
type recordIndex struct {
	mu  sync.RWMutex
	ids map[int64]string
}

func newRecordIndex() *recordIndex { return &recordIndex{ids: map[int64]string{}} }

func (r *recordIndex) set(seq int64, id string) {
	r.mu.Lock()
	r.ids[seq] = id
	r.mu.Unlock()
}

func (r *recordIndex) get(seq int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[seq]
	return id, ok
}

// sender serializes outbound messages. After close every send is dropped.
type sender struct {
	mu     sync.Mutex
	conn   Conn
	log    *logrus.Entry
	closed bool
}

func (o *sender) send(v any) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	if err := o.conn.WriteJSON(v); err != nil {
		o.log.WithError(err).Debug("outbound message not delivered")
		return false
	}
	return true
}

func (o *sender) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
