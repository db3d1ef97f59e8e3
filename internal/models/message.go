package models

import "time"

// Message is a piece of content posted by a user. Messages are immutable once stored.
type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
