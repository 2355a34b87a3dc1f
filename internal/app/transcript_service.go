package app

import (
	"context"
	"fmt"

	"lawchat/internal/model"
)

type TranscriptStore interface {
	Upsert(ctx context.Context, entry *model.TranscriptEntry) error
	UpdateFeedback(ctx context.Context, clientID string, seq int, fb model.Feedback) error
	DeleteByClient(ctx context.Context, clientID string) error
	ListByClient(ctx context.Context, clientID string) ([]model.TranscriptEntry, error)
}

// TranscriptService keeps an archive copy of every gateway-hosted log so a
// browser finds its conversation again after a gateway restart.
type TranscriptService struct {
	store TranscriptStore
}

func NewTranscriptService(store TranscriptStore) *TranscriptService {
	return &TranscriptService{store: store}
}

func (s *TranscriptService) Apply(ctx context.Context, event model.TranscriptEvent) error {
	if event.ClientID == "" {
		return fmt.Errorf("%w: transcript event without client id", ErrInvalidInput)
	}
	switch event.Kind {
	case model.TranscriptAppend:
		if event.Message == nil {
			return fmt.Errorf("%w: append without message", ErrInvalidInput)
		}
		entry := model.NewTranscriptEntry(event.ClientID, event.SID, event.Seq, *event.Message)
		return s.store.Upsert(ctx, &entry)
	case model.TranscriptFeedback:
		if event.Feedback == nil {
			return fmt.Errorf("%w: feedback event without feedback", ErrInvalidInput)
		}
		return s.store.UpdateFeedback(ctx, event.ClientID, event.Seq, *event.Feedback)
	case model.TranscriptClear:
		return s.store.DeleteByClient(ctx, event.ClientID)
	default:
		return fmt.Errorf("%w: unknown transcript event %q", ErrInvalidInput, event.Kind)
	}
}

// Restore returns the archived log of clientID in order.
func (s *TranscriptService) Restore(ctx context.Context, clientID string) ([]model.Message, error) {
	entries, err := s.store.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	messages := make([]model.Message, 0, len(entries))
	for i := range entries {
		messages = append(messages, entries[i].Message())
	}
	return messages, nil
}
