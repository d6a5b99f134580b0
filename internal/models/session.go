package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PracticeSession is owned by the session CRUD service; the live pipeline
// only reads it to validate incoming connections.
type PracticeSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	UserID    string             `bson:"user_id" json:"user_id"`

	SessionName        string `bson:"session_name" json:"session_name"`
	SessionType        string `bson:"session_type" json:"session_type"` // pitch|presentation|public
	VirtualEnvironment string `bson:"virtual_environment,omitempty" json:"virtual_environment,omitempty"`
	Status             string `bson:"status" json:"status"` // active|ended

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
