package stt

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var errShortWAV = errors.New("truncated wav header")

// pcmFromWAV returns the sample data and sample rate of a RIFF/WAVE file.
// Input without a RIFF header is returned as-is with rate 0.
func pcmFromWAV(b []byte) ([]byte, int32, error) {
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return b, 0, nil
	}

	var rate int32
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		switch id {
		case "fmt ":
			if body+8 > len(b) {
				return nil, 0, errShortWAV
			}
			rate = int32(binary.LittleEndian.Uint32(b[body+4 : body+8]))
		case "data":
			end := body + size
			if end > len(b) || size < 0 {
				end = len(b)
			}
			return b[body:end], rate, nil
		}
		off = body + size + size%2
	}
	return nil, 0, errShortWAV
}
