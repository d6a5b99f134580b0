package models

import "time"

// SessionChunk is the durable record of one uploaded media chunk.
type SessionChunk struct {
	ID           string `bson:"_id" json:"id"` // uuid v4
	SessionID    string `bson:"session_id" json:"session_id"`
	ConnectionID string `bson:"connection_id" json:"connection_id"`
	ChunkNumber  int64  `bson:"chunk_number" json:"chunk_number"`

	VideoFile string `bson:"video_file" json:"video_file"` // remote URL

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
