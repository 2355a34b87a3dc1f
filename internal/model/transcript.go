package model

import (
	"encoding/json"
	"time"
)

// TranscriptEntry archives one message of a gateway-hosted conversation log.
// Sources is stored as a JSON array for portability.
type TranscriptEntry struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ClientID          string    `gorm:"size:64;not null;uniqueIndex:idx_client_seq,priority:1" json:"client_id"`
	Seq               int       `gorm:"not null;uniqueIndex:idx_client_seq,priority:2" json:"seq"`
	SID               string    `gorm:"size:128;index" json:"sid"`
	MID               string    `gorm:"size:128" json:"mid"`
	Role              string    `gorm:"size:16;not null" json:"role"`
	Content           string    `gorm:"type:text;not null" json:"content"`
	Sources           string    `gorm:"type:text" json:"sources"`
	FeedbackCorrect   *bool     `json:"feedback_correct"`
	FeedbackComment   string    `gorm:"type:text" json:"feedback_comment"`
	FeedbackSubmitted bool      `json:"feedback_submitted"`
	HasFeedback       bool      `json:"has_feedback"`
	SentAt            time.Time `json:"sent_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewTranscriptEntry flattens msg for storage.
func NewTranscriptEntry(clientID, sid string, seq int, msg Message) TranscriptEntry {
	entry := TranscriptEntry{
		ClientID: clientID,
		Seq:      seq,
		SID:      sid,
		MID:      msg.MID,
		Role:     string(msg.Role),
		Content:  msg.Content,
		SentAt:   msg.TS.Time,
	}
	entry.SetSources(msg.Sources)
	if msg.Feedback != nil {
		entry.SetFeedback(*msg.Feedback)
	}
	return entry
}

func (e *TranscriptEntry) SetSources(sources []string) {
	if sources == nil {
		e.Sources = ""
		return
	}
	b, _ := json.Marshal(sources)
	e.Sources = string(b)
}

func (e *TranscriptEntry) SetFeedback(fb Feedback) {
	e.HasFeedback = true
	e.FeedbackCorrect = fb.Correct
	e.FeedbackComment = fb.Comment
	e.FeedbackSubmitted = fb.Submitted
}

// Message rebuilds the log entry; a malformed Sources column yields no sources.
func (e *TranscriptEntry) Message() Message {
	msg := Message{
		MID:     e.MID,
		Role:    Role(e.Role),
		Content: e.Content,
		TS:      NewTimestamp(e.SentAt),
	}
	if e.Sources != "" {
		_ = json.Unmarshal([]byte(e.Sources), &msg.Sources)
	}
	if e.HasFeedback {
		msg.Feedback = &Feedback{
			Correct:   e.FeedbackCorrect,
			Comment:   e.FeedbackComment,
			Submitted: e.FeedbackSubmitted,
		}
	}
	return msg
}

type TranscriptEventKind string

const (
	TranscriptAppend   TranscriptEventKind = "append"
	TranscriptFeedback TranscriptEventKind = "feedback"
	TranscriptClear    TranscriptEventKind = "clear"
)

// TranscriptEvent is a single mutation of a conversation log, as recorded
// into the archive (directly or through the queue).
type TranscriptEvent struct {
	Kind     TranscriptEventKind `json:"kind"`
	ClientID string              `json:"client_id"`
	SID      string              `json:"sid,omitempty"`
	Seq      int                 `json:"seq"`
	Message  *Message            `json:"message,omitempty"`
	Feedback *Feedback           `json:"feedback,omitempty"`
}
