package conversation

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lawchat/internal/backend"
	"lawchat/internal/model"
	"lawchat/internal/observability"
	"lawchat/internal/store"
)

type fakeBackend struct {
	mu          sync.Mutex
	askFn       func(ctx context.Context, req backend.AskRequest) (*backend.AskResponse, error)
	asks        []backend.AskRequest
	resets      []string
	resetErr    error
	feedbacks   []backend.FeedbackRequest
	feedbackErr error
	history     map[string][]model.Message
}

func (f *fakeBackend) Ask(ctx context.Context, req backend.AskRequest) (*backend.AskResponse, error) {
	f.mu.Lock()
	f.asks = append(f.asks, req)
	fn := f.askFn
	f.mu.Unlock()
	if fn == nil {
		return &backend.AskResponse{Answer: "ok"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeBackend) Reset(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, sid)
	return f.resetErr
}

func (f *fakeBackend) History(_ context.Context, sid string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[sid], nil
}

func (f *fakeBackend) Feedback(_ context.Context, req backend.FeedbackRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbacks = append(f.feedbacks, req)
	return f.feedbackErr
}

func (f *fakeBackend) askCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.asks)
}

type memRecorder struct {
	mu     sync.Mutex
	events []model.TranscriptEvent
}

func (r *memRecorder) Record(_ context.Context, e model.TranscriptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func newTestController(t *testing.T, b Backend, opts Options) (*Controller, *store.SessionStore) {
	t.Helper()
	sessions := store.NewSessionStore(store.NewMemoryKV(), observability.Discard())
	opts.Logger = observability.Discard()
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	}
	return NewController(b, sessions, opts), sessions
}

func TestSend_AdoptsSessionAndAppendsAnswer(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{askFn: func(context.Context, backend.AskRequest) (*backend.AskResponse, error) {
		return &backend.AskResponse{
			Answer:  "A contract needs offer and acceptance.",
			Sources: []string{"https://law.temple.edu/contracts"},
			SID:     "s-1",
			MID:     "m-1",
		}, nil
	}}
	c, sessions := newTestController(t, fb, Options{})

	reply, err := c.Send(ctx, "  what is a contract?  ")
	require.NoError(t, err)
	require.False(t, reply.Failed)
	require.Equal(t, "s-1", reply.AdoptedSID)
	require.Equal(t, "s-1", sessions.Load(ctx))
	require.Equal(t, StateIdle, c.State())

	msgs := c.Log().Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, model.RoleUser, msgs[0].Role)
	require.Equal(t, "what is a contract?", msgs[0].Content)
	require.Nil(t, msgs[0].Feedback)
	require.Equal(t, model.RoleAssistant, msgs[1].Role)
	require.Equal(t, "A contract needs offer and acceptance.", msgs[1].Content)
	require.Equal(t, "m-1", msgs[1].MID)
	require.Equal(t, []string{"https://law.temple.edu/contracts"}, msgs[1].Sources)
	require.NotNil(t, msgs[1].Feedback)
	require.False(t, msgs[1].Feedback.Submitted)

	require.Equal(t, []backend.AskRequest{{Q: "what is a contract?"}}, fb.asks)
}

func TestSend_KeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{askFn: func(context.Context, backend.AskRequest) (*backend.AskResponse, error) {
		return &backend.AskResponse{Answer: "a", SID: "other"}, nil
	}}
	c, sessions := newTestController(t, fb, Options{
		Model: func(context.Context) string { return "gpt-4o" },
	})
	require.NoError(t, sessions.Save(ctx, "s-1"))

	reply, err := c.Send(ctx, "q")
	require.NoError(t, err)
	require.Empty(t, reply.AdoptedSID)
	require.Equal(t, "s-1", sessions.Load(ctx))
	require.Equal(t, backend.AskRequest{Q: "q", SID: "s-1", Model: "gpt-4o"}, fb.asks[0])
}

func TestSend_Guards(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb, Options{})

	_, err := c.Send(ctx, "   \n\t")
	require.ErrorIs(t, err, ErrEmptyQuery)
	require.Equal(t, 0, c.Log().Len())

	c.SetDraft("draft")
	ex, err := c.Begin(ctx, "first")
	require.NoError(t, err)
	require.Equal(t, "", c.Draft())
	require.Equal(t, StateAwaitingResponse, c.State())

	_, err = c.Begin(ctx, "second")
	require.ErrorIs(t, err, ErrBusy)
	require.Equal(t, 1, c.Log().Len())

	_, err = c.Resolve(ctx, ex)
	require.NoError(t, err)
	require.Equal(t, 2, c.Log().Len())
	require.Equal(t, 1, fb.askCount())
}

func TestSend_FailuresBecomeInlineMessages(t *testing.T) {
	tests := []struct {
		name    string
		resp    *backend.AskResponse
		err     error
		want    string
		failed  bool
		sources []string
	}{
		{name: "network", err: errors.New("connection refused"), want: "Error: connection refused", failed: true},
		{name: "body error", resp: &backend.AskResponse{Error: "rate limited"}, want: "Error: rate limited", sources: []string{}},
		{name: "empty body", resp: &backend.AskResponse{}, want: "No answer", sources: []string{}},
		{name: "answer wins", resp: &backend.AskResponse{Answer: "yes", Error: "ignored"}, want: "yes", sources: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fb := &fakeBackend{askFn: func(context.Context, backend.AskRequest) (*backend.AskResponse, error) {
				return tt.resp, tt.err
			}}
			c, sessions := newTestController(t, fb, Options{})
			require.NoError(t, sessions.Save(ctx, "s-1"))

			reply, err := c.Send(ctx, "q")
			require.NoError(t, err)
			require.Equal(t, tt.failed, reply.Failed)
			require.Equal(t, tt.want, reply.Message.Content)
			require.Equal(t, tt.sources, reply.Message.Sources)
			require.Equal(t, StateIdle, c.State())
			require.Equal(t, "s-1", sessions.Load(ctx))
		})
	}
}

func TestSend_Timeout(t *testing.T) {
	fb := &fakeBackend{askFn: func(ctx context.Context, _ backend.AskRequest) (*backend.AskResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c, _ := newTestController(t, fb, Options{Timeout: 20 * time.Millisecond})

	reply, err := c.Send(context.Background(), "slow")
	require.NoError(t, err)
	require.True(t, reply.Failed)
	require.Equal(t, "Error: request timed out after 20ms", reply.Message.Content)
	require.Equal(t, StateIdle, c.State())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{resetErr: errors.New("backend down")}
	c, sessions := newTestController(t, fb, Options{})
	require.NoError(t, sessions.Save(ctx, "s-1"))
	_, err := c.Send(ctx, "q")
	require.NoError(t, err)

	c.Reset(ctx)

	require.Equal(t, []string{"s-1"}, fb.resets)
	require.Equal(t, "", sessions.Load(ctx))
	msgs := c.Log().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, model.RoleAssistant, msgs[0].Role)
	require.Equal(t, "Conversation reset.", msgs[0].Content)
}

func TestReset_WithoutSessionSkipsBackend(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb, Options{})

	c.Reset(context.Background())
	require.Empty(t, fb.resets)
	require.Equal(t, 1, c.Log().Len())
}

func TestReset_DiscardsPendingAnswer(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	fb := &fakeBackend{askFn: func(ctx context.Context, _ backend.AskRequest) (*backend.AskResponse, error) {
		close(started)
		<-ctx.Done()
		return &backend.AskResponse{Answer: "late", SID: "late-sid"}, nil
	}}
	c, sessions := newTestController(t, fb, Options{})

	ex, err := c.Begin(ctx, "q")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctx, ex)
		done <- err
	}()
	<-started
	c.Reset(ctx)

	require.ErrorIs(t, <-done, ErrStale)
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, "", sessions.Load(ctx))
	msgs := c.Log().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "Conversation reset.", msgs[0].Content)

	_, err = c.Send(ctx, "after reset")
	require.NoError(t, err)
}

func TestResolve_AfterResetIsStale(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb, Options{})

	ex, err := c.Begin(ctx, "q")
	require.NoError(t, err)
	c.Reset(ctx)

	_, err = c.Resolve(ctx, ex)
	require.ErrorIs(t, err, ErrStale)
	require.Equal(t, 0, fb.askCount())
}

func TestObserverSeesComposing(t *testing.T) {
	var mu sync.Mutex
	var seen []bool
	fb := &fakeBackend{}
	c, _ := newTestController(t, fb, Options{Observer: func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Composing)
		for _, m := range s.Messages {
			require.NotEqual(t, "", m.Content)
		}
	}})

	_, err := c.Send(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, seen)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{history: map[string][]model.Message{
		"s-1": {{Role: model.RoleUser, Content: "old question"}},
	}}
	c, sessions := newTestController(t, fb, Options{})

	_, err := c.History(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, sessions.Save(ctx, "s-1"))
	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 0, c.Log().Len())
}

func TestRecorderReceivesMutations(t *testing.T) {
	ctx := context.Background()
	rec := &memRecorder{}
	fb := &fakeBackend{askFn: func(context.Context, backend.AskRequest) (*backend.AskResponse, error) {
		return &backend.AskResponse{Answer: "a", SID: "s-1", MID: "m-1"}, nil
	}}
	c, _ := newTestController(t, fb, Options{Recorder: rec})

	_, err := c.Send(ctx, "q")
	require.NoError(t, err)
	require.NoError(t, c.SetLabel(ctx, 1, true))
	c.Reset(ctx)

	kinds := make([]model.TranscriptEventKind, 0, len(rec.events))
	for _, e := range rec.events {
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []model.TranscriptEventKind{
		model.TranscriptAppend,
		model.TranscriptAppend,
		model.TranscriptFeedback,
		model.TranscriptClear,
		model.TranscriptAppend,
	}, kinds)
	require.Equal(t, "s-1", rec.events[1].SID)
	require.Equal(t, 1, rec.events[1].Seq)
	require.Equal(t, "a", rec.events[1].Message.Content)
}

func TestTranscriptExport(t *testing.T) {
	require.Equal(t, "chat-s-1.json", ExportFileName("s-1"))

	in := model.Transcript{SID: "s-1", History: []model.Message{
		{Role: model.RoleUser, Content: "q", TS: model.NewTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteTranscript(&buf, in))
	require.Contains(t, buf.String(), "\n  \"history\": [")

	out, err := ReadTranscript(&buf)
	require.NoError(t, err)
	require.Equal(t, "s-1", out.SID)
	require.Equal(t, "q", out.History[0].Content)
	require.True(t, in.History[0].TS.Equal(out.History[0].TS.Time))

	buf.Reset()
	require.NoError(t, WriteTranscript(&buf, model.Transcript{SID: "s-2"}))
	require.Contains(t, buf.String(), `"history": []`)
}

func TestSourceLabel(t *testing.T) {
	require.Equal(t, "/academics/clinics", SourceLabel("https://law.temple.edu/academics/clinics"))
	require.Equal(t, "law.temple.edu", SourceLabel("https://law.temple.edu/"))
	require.Equal(t, "handbook.pdf", SourceLabel("handbook.pdf"))
}
