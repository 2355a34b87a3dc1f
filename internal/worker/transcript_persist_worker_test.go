package worker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"lawchat/internal/model"
)

func TestDecodeTranscriptEvent(t *testing.T) {
	valid, err := json.Marshal(model.TranscriptEvent{
		Kind:     model.TranscriptAppend,
		ClientID: "c-1",
		Seq:      2,
		Message:  &model.Message{Role: model.RoleAssistant, Content: "a", Feedback: &model.Feedback{}},
	})
	require.NoError(t, err)

	event, err := DecodeTranscriptEvent(valid)
	require.NoError(t, err)
	require.Equal(t, "c-1", event.ClientID)
	require.Equal(t, 2, event.Seq)
	require.Equal(t, "a", event.Message.Content)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "no client", body: `{"kind":"clear"}`},
		{name: "append without message", body: `{"kind":"append","client_id":"c"}`},
		{name: "feedback without feedback", body: `{"kind":"feedback","client_id":"c"}`},
		{name: "unknown kind", body: `{"kind":"rename","client_id":"c"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTranscriptEvent([]byte(tt.body))
			require.Error(t, err)
		})
	}

	_, err = DecodeTranscriptEvent([]byte(`{"kind":"clear","client_id":"c"}`))
	require.NoError(t, err)
}
