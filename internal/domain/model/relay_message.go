package model

import "time"

// RelayMessage is one row of the relay log: who wrote to whom and what kind.
type RelayMessage struct {
	ID         int64       `json:"id"`
	FromUserID int64       `json:"from_user_id"`
	ToUserID   int64       `json:"to_user_id"`
	Kind       ContentKind `json:"kind"`
	Content    string      `json:"content"` // text body or file id
	CreatedAt  time.Time   `json:"created_at"`
}
