// Package conversation runs one chat conversation: the message log, the
// send/await state machine, reset and per-message feedback.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"lawchat/internal/backend"
	"lawchat/internal/model"
)

const (
	resetNotice    = "Conversation reset."
	noAnswer       = "No answer"
	errorPrefix    = "Error: "
	defaultTimeout = 60 * time.Second
)

var (
	ErrEmptyQuery       = errors.New("question is empty")
	ErrBusy             = errors.New("a question is already awaiting a response")
	ErrStale            = errors.New("exchange was superseded by a reset")
	ErrNoSession        = errors.New("no conversation yet")
	ErrNoFeedbackTarget = errors.New("message does not accept feedback")
	ErrFeedbackEmpty    = errors.New("feedback needs a label or a comment")
)

type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting-response"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the subset of the backend API a conversation needs.
type Backend interface {
	Ask(ctx context.Context, req backend.AskRequest) (*backend.AskResponse, error)
	Reset(ctx context.Context, sid string) error
	History(ctx context.Context, sid string) ([]model.Message, error)
	Feedback(ctx context.Context, req backend.FeedbackRequest) error
}

type SessionStore interface {
	Load(ctx context.Context) string
	Save(ctx context.Context, sid string) error
	Clear(ctx context.Context) error
}

// Recorder receives every log mutation, e.g. to archive it.
type Recorder interface {
	Record(ctx context.Context, event model.TranscriptEvent) error
}

type Options struct {
	// Timeout bounds each backend call; zero means 60s.
	Timeout time.Duration
	// Model returns the answer model to request; nil or "" sends none.
	Model    func(ctx context.Context) string
	Recorder Recorder
	// Observer is called after every log mutation and composing change.
	Observer func(Snapshot)
	Logger   *slog.Logger
	Now      func() time.Time
}

// Snapshot is what a front-end renders. Composing is the transient
// "assistant is typing" flag and is never part of Messages.
type Snapshot struct {
	SID       string          `json:"sid"`
	State     string          `json:"state"`
	Composing bool            `json:"composing"`
	Messages  []model.Message `json:"messages"`
}

// Exchange is a question that has been optimistically appended and is
// waiting for Resolve.
type Exchange struct {
	id    uint64
	Query string
	SID   string
	Index int
}

// Reply is the outcome of a resolved exchange.
type Reply struct {
	Index      int           `json:"index"`
	Message    model.Message `json:"message"`
	Failed     bool          `json:"failed"`
	AdoptedSID string        `json:"adoptedSid,omitempty"`
}

type Controller struct {
	backend  Backend
	sessions SessionStore
	log      *Log
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	draft   string
	seq     uint64
	current uint64
	cancel  context.CancelFunc
}

func NewController(b Backend, sessions SessionStore, opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend:  b,
		sessions: sessions,
		log:      NewLog(opts.Now),
		opts:     opts,
		logger:   logger,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Log() *Log {
	return c.log
}

func (c *Controller) SID(ctx context.Context) string {
	return c.sessions.Load(ctx)
}

func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) Snapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return Snapshot{
		SID:       c.sessions.Load(ctx),
		State:     state.String(),
		Composing: state == StateAwaitingResponse,
		Messages:  c.log.Messages(),
	}
}

// Send runs Begin and Resolve back to back.
func (c *Controller) Send(ctx context.Context, query string) (*Reply, error) {
	ex, err := c.Begin(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.Resolve(ctx, ex)
}

// Begin is the optimistic half of a send: it appends the user's message,
// clears the draft and moves to awaiting-response. Empty questions and
// sends while a question is pending leave the log untouched.
func (c *Controller) Begin(ctx context.Context, query string) (*Exchange, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.seq++
	ex := &Exchange{
		id:    c.seq,
		Query: q,
		SID:   c.sessions.Load(ctx),
	}
	ex.Index = c.log.Append(model.RoleUser, q, nil, "")
	c.draft = ""
	c.state = StateAwaitingResponse
	c.current = ex.id
	c.mu.Unlock()

	c.recordAppend(ctx, ex.SID, ex.Index)
	c.notify(ctx)
	return ex, nil
}

// Resolve asks the backend and reconciles the log with the outcome. A
// transport, decode or timeout failure becomes an inline error message.
// If the conversation was reset meanwhile the result is dropped and
// ErrStale is returned.
func (c *Controller) Resolve(ctx context.Context, ex *Exchange) (*Reply, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	c.mu.Lock()
	if c.current != ex.id {
		c.mu.Unlock()
		return nil, ErrStale
	}
	c.cancel = cancel
	c.mu.Unlock()

	req := backend.AskRequest{Q: ex.Query, SID: ex.SID}
	if c.opts.Model != nil {
		req.Model = c.opts.Model(ctx)
	}
	resp, err := c.backend.Ask(callCtx, req)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("request timed out after %s", c.opts.Timeout)
	}
	return c.reconcile(context.WithoutCancel(ctx), ex, resp, err)
}

func (c *Controller) reconcile(ctx context.Context, ex *Exchange, resp *backend.AskResponse, askErr error) (*Reply, error) {
	c.mu.Lock()
	if c.current != ex.id {
		c.mu.Unlock()
		if askErr != nil {
			c.logger.Debug("dropped failed exchange after reset", "error", askErr)
		}
		return nil, ErrStale
	}

	reply := &Reply{}
	sid := ex.SID
	if askErr != nil {
		reply.Failed = true
		reply.Index = c.log.Append(model.RoleAssistant, errorPrefix+askErr.Error(), nil, "")
		c.logger.Warn("ask failed", "error", askErr)
	} else {
		content := resp.Answer
		if content == "" {
			if resp.Error != "" {
				content = errorPrefix + resp.Error
			} else {
				content = noAnswer
			}
		}
		sources := resp.Sources
		if sources == nil {
			sources = []string{}
		}
		if resp.SID != "" && ex.SID == "" && c.sessions.Load(ctx) == "" {
			if err := c.sessions.Save(ctx, resp.SID); err != nil {
				c.logger.Warn("adopt session id failed", "sid", resp.SID, "error", err)
			} else {
				reply.AdoptedSID = resp.SID
				sid = resp.SID
			}
		}
		reply.Index = c.log.Append(model.RoleAssistant, content, sources, resp.MID)
	}
	c.state = StateIdle
	c.current = 0
	c.cancel = nil
	c.mu.Unlock()

	reply.Message, _ = c.log.At(reply.Index)
	c.recordAppend(ctx, sid, reply.Index)
	c.notify(ctx)
	return reply, nil
}

// Reset notifies the backend (best effort), then always clears the session
// and the log and appends a reset notice. A pending question is cancelled
// and its answer discarded.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.notify(ctx)
	}()

	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.current = 0
	c.state = StateIdle

	if sid := c.sessions.Load(ctx); sid != "" {
		notifyCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		if err := c.backend.Reset(notifyCtx, sid); err != nil {
			c.logger.Warn("reset notification failed", "sid", sid, "error", err)
		}
		cancel()
	}

	if err := c.sessions.Clear(ctx); err != nil {
		c.logger.Warn("clear session id failed", "error", err)
	}
	c.log.Clear()
	c.record(ctx, model.TranscriptEvent{Kind: model.TranscriptClear})
	index := c.log.Append(model.RoleAssistant, resetNotice, nil, "")
	c.recordAppend(ctx, "", index)
}

// History fetches the backend's copy of the conversation. The result is
// independent of the live log.
func (c *Controller) History(ctx context.Context) ([]model.Message, error) {
	sid := c.sessions.Load(ctx)
	if sid == "" {
		return nil, ErrNoSession
	}
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	history, err := c.backend.History(callCtx, sid)
	if err != nil {
		return nil, fmt.Errorf("load history failed: %w", err)
	}
	return history, nil
}

// Restore seeds the log with archived messages, e.g. after a restart.
func (c *Controller) Restore(messages []model.Message) {
	c.log.Restore(messages)
}

func (c *Controller) recordAppend(ctx context.Context, sid string, index int) {
	if c.opts.Recorder == nil {
		return
	}
	msg, ok := c.log.At(index)
	if !ok {
		return
	}
	c.record(ctx, model.TranscriptEvent{
		Kind:    model.TranscriptAppend,
		SID:     sid,
		Seq:     index,
		Message: &msg,
	})
}

func (c *Controller) record(ctx context.Context, event model.TranscriptEvent) {
	if c.opts.Recorder == nil {
		return
	}
	if err := c.opts.Recorder.Record(ctx, event); err != nil {
		c.logger.Warn("record transcript event failed", "kind", event.Kind, "error", err)
	}
}

func (c *Controller) notify(ctx context.Context) {
	if c.opts.Observer == nil {
		return
	}
	c.opts.Observer(c.Snapshot(ctx))
}
