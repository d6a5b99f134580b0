package live

import "strings"

// Chunk is one media segment as seen by the connection goroutine. Its
// fields are filled in stage by stage and not touched after the chunk has
// been processed; windows carry copies.
type Chunk struct {
	Seq        int64
	MediaPath  string
	AudioPath  string // empty when extraction failed
	Transcript string // empty when extraction or transcription failed
}

// Window is a snapshot of the last N buffered chunks, identified by the
// sequence number of its last member.
type Window struct {
	ID     int64
	Chunks []Chunk
}

func (w Window) First() Chunk { return w.Chunks[0] }

func (w Window) Last() Chunk { return w.Chunks[len(w.Chunks)-1] }

func (w Window) Seqs() []int64 {
	out := make([]int64, len(w.Chunks))
	for i, c := range w.Chunks {
		out[i] = c.Seq
	}
	return out
}

// Transcript joins the non-empty chunk transcripts in order. A chunk that
// failed contributes nothing.
func (w Window) Transcript() string {
	parts := make([]string, 0, len(w.Chunks))
	for _, c := range w.Chunks {
		if t := strings.TrimSpace(c.Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (w Window) AudioPaths() []string {
	var out []string
	for _, c := range w.Chunks {
		if c.AudioPath != "" {
			out = append(out, c.AudioPath)
		}
	}
	return out
}

// Files is every scratch file the window reads.
func (w Window) Files() []string {
	out := make([]string, 0, 2*len(w.Chunks))
	for _, c := range w.Chunks {
		out = append(out, c.MediaPath)
		if c.AudioPath != "" {
			out = append(out, c.AudioPath)
		}
	}
	return out
}

// Buffer is the arrival-ordered chunk buffer of one connection. It is
// owned by the connection goroutine and is not safe for concurrent use.
type Buffer struct {
	size   int
	retain int
	chunks []*Chunk
}

// NewBuffer keeps at least size chunks; retain below size is raised to size.
func NewBuffer(size, retain int) *Buffer {
	if size < 1 {
		size = 1
	}
	if retain < size {
		retain = size
	}
	return &Buffer{size: size, retain: retain}
}

func (b *Buffer) Len() int { return len(b.chunks) }

func (b *Buffer) Append(c *Chunk) { b.chunks = append(b.chunks, c) }

// Window returns the trailing window, or false while fewer than size
// chunks are buffered.
func (b *Buffer) Window() (Window, bool) {
	if len(b.chunks) < b.size {
		return Window{}, false
	}
	tail := b.chunks[len(b.chunks)-b.size:]
	w := Window{Chunks: make([]Chunk, len(tail))}
	for i, c := range tail {
		w.Chunks[i] = *c
	}
	w.ID = w.Last().Seq
	return w, true
}

// Overfull reports whether the oldest entry is due for eviction.
func (b *Buffer) Overfull() bool { return len(b.chunks) > b.retain }

func (b *Buffer) Oldest() *Chunk {
	if len(b.chunks) == 0 {
		return nil
	}
	return b.chunks[0]
}

func (b *Buffer) PopOldest() *Chunk {
	if len(b.chunks) == 0 {
		return nil
	}
	c := b.chunks[0]
	b.chunks[0] = nil
	b.chunks = b.chunks[1:]
	return c
}
