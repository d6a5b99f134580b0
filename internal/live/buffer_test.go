package live

import (
	"fmt"
	"reflect"
	"testing"
)

func chunk(seq int64, transcript string) *Chunk {
	return &Chunk{
		Seq:        seq,
		MediaPath:  fmt.Sprintf("/tmp/s_%d_media.webm", seq),
		AudioPath:  fmt.Sprintf("/tmp/s_%d_audio.wav", seq),
		Transcript: transcript,
	}
}

func TestTriggerCountMatchesLength(t *testing.T) {
	for n := 1; n <= 4; n++ {
		for length := 0; length <= 10; length++ {
			b := NewBuffer(n, 2*n)
			triggers := 0
			var windows [][]int64
			for seq := int64(1); seq <= int64(length); seq++ {
				b.Append(chunk(seq, "x"))
				if w, ok := b.Window(); ok {
					triggers++
					windows = append(windows, w.Seqs())
				}
				for b.Overfull() {
					b.PopOldest()
				}
			}

			want := 0
			if length >= n {
				want = length - n + 1
			}
			if triggers != want {
				t.Fatalf("N=%d len=%d: triggers=%d want %d", n, length, triggers, want)
			}
			// each window is the N most recent chunks at trigger time
			for i, seqs := range windows {
				last := int64(n + i)
				for j, s := range seqs {
					if s != last-int64(n-1-j) {
						t.Fatalf("N=%d window %d = %v", n, i, seqs)
					}
				}
			}
		}
	}
}

func TestWindowOverlap(t *testing.T) {
	b := NewBuffer(4, 8)
	for seq := int64(1); seq <= 4; seq++ {
		b.Append(chunk(seq, "x"))
	}
	w1, _ := b.Window()
	b.Append(chunk(5, "x"))
	w2, _ := b.Window()

	if !reflect.DeepEqual(w1.Seqs(), []int64{1, 2, 3, 4}) || w1.ID != 4 {
		t.Fatalf("w1 = %v id %d", w1.Seqs(), w1.ID)
	}
	if !reflect.DeepEqual(w2.Seqs(), []int64{2, 3, 4, 5}) || w2.ID != 5 {
		t.Fatalf("w2 = %v id %d", w2.Seqs(), w2.ID)
	}
}

func TestWindowIsASnapshot(t *testing.T) {
	b := NewBuffer(2, 4)
	c1, c2 := chunk(1, "one"), chunk(2, "")
	b.Append(c1)
	b.Append(c2)
	w, _ := b.Window()

	c2.Transcript = "late"
	if w.Last().Transcript != "" {
		t.Fatal("window must not observe later mutation")
	}
}

func TestWindowTranscriptSkipsFailedChunks(t *testing.T) {
	w := Window{Chunks: []Chunk{
		{Seq: 1, Transcript: "good morning"},
		{Seq: 2, MediaPath: "m2"},
		{Seq: 3, Transcript: " everyone "},
	}}
	if got := w.Transcript(); got != "good morning everyone" {
		t.Fatalf("Transcript = %q", got)
	}
	if got := (Window{Chunks: []Chunk{{Seq: 1}, {Seq: 2}}}).Transcript(); got != "" {
		t.Fatalf("blank window transcript = %q", got)
	}
}

func TestWindowFiles(t *testing.T) {
	w := Window{Chunks: []Chunk{
		{Seq: 1, MediaPath: "m1", AudioPath: "a1"},
		{Seq: 2, MediaPath: "m2"},
	}}
	if !reflect.DeepEqual(w.Files(), []string{"m1", "a1", "m2"}) {
		t.Fatalf("Files = %v", w.Files())
	}
	if !reflect.DeepEqual(w.AudioPaths(), []string{"a1"}) {
		t.Fatalf("AudioPaths = %v", w.AudioPaths())
	}
}

func TestEvictionKeepsRetention(t *testing.T) {
	b := NewBuffer(3, 6)
	for seq := int64(1); seq <= 9; seq++ {
		b.Append(chunk(seq, ""))
		for b.Overfull() {
			b.PopOldest()
		}
	}
	if b.Len() != 6 {
		t.Fatalf("Len = %d, want 6", b.Len())
	}
	if b.Oldest().Seq != 4 {
		t.Fatalf("oldest = %d, want 4", b.Oldest().Seq)
	}

	if NewBuffer(3, 1).Overfull() {
		t.Fatal("empty buffer cannot be overfull")
	}
	small := NewBuffer(3, 1)
	for seq := int64(1); seq <= 3; seq++ {
		small.Append(chunk(seq, ""))
	}
	if small.Overfull() {
		t.Fatal("retention is never below the window size")
	}
}
