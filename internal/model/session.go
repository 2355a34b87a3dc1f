package model

// SessionRow is one line of the admin session browser.
type SessionRow struct {
	SID       string    `json:"sid"`
	Count     *int      `json:"count,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

type SessionDetail struct {
	SID     string    `json:"sid"`
	History []Message `json:"history"`
}

// Transcript is the downloadable form of a fetched history.
type Transcript struct {
	SID     string    `json:"sid"`
	History []Message `json:"history"`
}
