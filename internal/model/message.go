package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation log. Feedback is only ever attached
// to assistant messages.
type Message struct {
	MID      string    `json:"mid,omitempty"`
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	Sources  []string  `json:"sources"`
	TS       Timestamp `json:"ts"`
	Feedback *Feedback `json:"feedback,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = append([]string(nil), m.Sources...)
	}
	if m.Feedback != nil {
		fb := m.Feedback.clone()
		out.Feedback = &fb
	}
	return out
}

type Feedback struct {
	Correct   *bool  `json:"correct,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Submitted bool   `json:"submitted"`
}

// Submittable reports whether a label or a non-blank comment is present.
func (f Feedback) Submittable() bool {
	return f.Correct != nil || strings.TrimSpace(f.Comment) != ""
}

// Apply merges the non-nil fields of p into f.
func (f Feedback) Apply(p FeedbackPatch) Feedback {
	out := f.clone()
	if p.Correct != nil {
		v := *p.Correct
		out.Correct = &v
	}
	if p.Comment != nil {
		out.Comment = *p.Comment
	}
	if p.Submitted != nil {
		out.Submitted = *p.Submitted
	}
	return out
}

func (f Feedback) clone() Feedback {
	out := f
	if f.Correct != nil {
		v := *f.Correct
		out.Correct = &v
	}
	return out
}

// FeedbackPatch is a partial update; nil fields are left untouched.
type FeedbackPatch struct {
	Correct   *bool
	Comment   *string
	Submitted *bool
}

// Timestamp encodes as RFC 3339 and decodes RFC 3339 strings, epoch
// milliseconds or null.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode timestamp failed: %w", err)
		}
		if raw == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("parse timestamp %q failed: %w", raw, err)
		}
		t.Time = parsed
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("decode timestamp failed: %w", err)
	}
	if ms, err := num.Int64(); err == nil {
		t.Time = time.UnixMilli(ms)
		return nil
	}
	f, err := num.Float64()
	if err != nil {
		return fmt.Errorf("parse epoch timestamp %q failed: %w", num, err)
	}
	t.Time = time.UnixMilli(int64(f))
	return nil
}
