package entity

import (
	"time"
)

type PostStatus string

const (
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusSending   PostStatus = "sending"
	PostStatusSent      PostStatus = "sent"
	PostStatusFailed    PostStatus = "failed"
)

const (
	MaxContentLength = 4096
	MaxImagesPerPost = 10
)

// Post is the unit of scheduled work. ImageURLs and ChatIDs are stored raw
// (JSON array, pg array literal or a bare value depending on which client
// wrote the row) and normalized by imageref at dispatch time. ImageURL is
// the legacy single-image column kept for rows created before multi-image
// support.
type Post struct {
	ID            string     `json:"id" db:"id"`
	Owner         string     `json:"owner" db:"owner"`
	Content       string     `json:"content" db:"content"`
	ImageURL      string     `json:"image_url,omitempty" db:"image_url"`
	ImageURLs     string     `json:"image_urls,omitempty" db:"image_urls"`
	ChatIDs       string     `json:"chat_ids" db:"chat_ids"`
	ScheduledTime time.Time  `json:"scheduled_time" db:"scheduled_time"`
	Status        PostStatus `json:"status" db:"status"`
	Error         string     `json:"error,omitempty" db:"error"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the post can never be dispatched again.
func (s PostStatus) IsTerminal() bool {
	return s == PostStatusSent || s == PostStatusFailed
}
