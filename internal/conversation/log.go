package conversation

import (
	"sync"
	"time"

	"lawchat/internal/model"
)

// Log is the ordered, append-only message sequence of one conversation.
// Messages are never reordered; only Clear removes them.
type Log struct {
	mu       sync.RWMutex
	messages []model.Message
	gen      uint64
	now      func() time.Time
}

func NewLog(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Append adds a message stamped with the current client time and returns
// its index. Content is not validated here.
func (l *Log) Append(role model.Role, content string, sources []string, mid string) int {
	msg := model.Message{
		MID:     mid,
		Role:    role,
		Content: content,
		TS:      model.NewTimestamp(l.now()),
	}
	if sources != nil {
		msg.Sources = append([]string(nil), sources...)
	}
	if role == model.RoleAssistant {
		msg.Feedback = &model.Feedback{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	return len(l.messages) - 1
}

// ReplaceFeedback merges patch into the feedback of the message at index.
// It is a no-op returning false when index is out of range or the message
// is not an assistant message.
func (l *Log) ReplaceFeedback(index int, patch model.FeedbackPatch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.messages) {
		return false
	}
	msg := &l.messages[index]
	if msg.Role != model.RoleAssistant {
		return false
	}
	current := model.Feedback{}
	if msg.Feedback != nil {
		current = *msg.Feedback
	}
	next := current.Apply(patch)
	msg.Feedback = &next
	return true
}

func (l *Log) At(index int) (model.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index < 0 || index >= len(l.messages) {
		return model.Message{}, false
	}
	return l.messages[index].Clone(), true
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a deep copy of the log in insertion order.
func (l *Log) Messages() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = m.Clone()
	}
	return out
}

// Clear drops every message and bumps the generation so that work started
// against the old contents can tell it is stale.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.gen++
}

// Generation changes on every Clear.
func (l *Log) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

// Restore replaces the contents with previously archived messages.
func (l *Log) Restore(messages []model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = make([]model.Message, len(messages))
	for i, m := range messages {
		l.messages[i] = m.Clone()
	}
}
