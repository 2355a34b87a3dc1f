package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lawchat/internal/conversation"
	"lawchat/internal/model"
	"lawchat/internal/store"
)

// GatewayBackend is what a hosted client needs from the backend.
type GatewayBackend interface {
	conversation.Backend
	LoginAPI
}

type TranscriptPublisher interface {
	Publish(ctx context.Context, event model.TranscriptEvent) error
}

// RecorderFunc adapts a function to conversation.Recorder.
type RecorderFunc func(ctx context.Context, event model.TranscriptEvent) error

func (f RecorderFunc) Record(ctx context.Context, event model.TranscriptEvent) error {
	return f(ctx, event)
}

// Workspace is everything the gateway keeps for one browser.
type Workspace struct {
	ClientID   string
	Controller *conversation.Controller
	Sessions   *store.SessionStore
	Prefs      *store.Prefs
	Auth       *AuthService
	Settings   *SettingsService

	lastSeen time.Time
}

type RegistryOptions struct {
	Backend GatewayBackend
	// KV is shared by all clients; each client gets its own key scope.
	KV           store.KV
	Origin       string
	SealKey      string
	JWTSecret    string
	Models       []string
	DefaultModel string
	Timeout      time.Duration
	IdleTTL      time.Duration
	// Archive, when set, restores logs on first use. Events go through
	// Publisher if set, otherwise straight into Archive.
	Archive   *TranscriptService
	Publisher TranscriptPublisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Registry hosts one conversation per browser client id and evicts idle
// ones. Durable state (sid, login, model) outlives eviction in the KV.
type Registry struct {
	opts RegistryOptions

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		opts:       opts,
		workspaces: make(map[string]*Workspace),
	}
}

func (r *Registry) Get(ctx context.Context, clientID string) (*Workspace, error) {
	if clientID == "" {
		return nil, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[clientID]; ok {
		ws.lastSeen = r.opts.Now()
		return ws, nil
	}

	ws, err := r.build(ctx, clientID)
	if err != nil {
		return nil, err
	}
	r.workspaces[clientID] = ws
	return ws, nil
}

func (r *Registry) build(ctx context.Context, clientID string) (*Workspace, error) {
	logger := r.opts.Logger.With("client_id", clientID)
	kv := store.Scoped(r.opts.KV, r.opts.Origin+"|"+clientID)

	var secrets store.KV = kv
	if r.opts.SealKey != "" {
		sealed, err := store.NewSealedKV(kv, r.opts.SealKey)
		if err != nil {
			return nil, fmt.Errorf("open sealed store failed: %w", err)
		}
		secrets = sealed
	}

	prefs := store.NewPrefs(kv, secrets)
	sessions := store.NewSessionStore(kv, logger)
	settings := NewSettingsService(prefs, r.opts.Models, r.opts.DefaultModel, logger)

	ctrl := conversation.NewController(r.opts.Backend, sessions, conversation.Options{
		Timeout:  r.opts.Timeout,
		Model:    settings.AskModel,
		Recorder: r.recorderFor(clientID),
		Logger:   logger,
	})

	if r.opts.Archive != nil {
		messages, err := r.opts.Archive.Restore(ctx, clientID)
		if err != nil {
			logger.Warn("restore transcript failed", "error", err)
		} else if len(messages) > 0 {
			ctrl.Restore(messages)
			logger.Info("transcript restored", "messages", len(messages))
		}
	}

	return &Workspace{
		ClientID:   clientID,
		Controller: ctrl,
		Sessions:   sessions,
		Prefs:      prefs,
		Auth:       NewAuthService(r.opts.Backend, prefs, r.opts.JWTSecret),
		Settings:   settings,
		lastSeen:   r.opts.Now(),
	}, nil
}

func (r *Registry) recorderFor(clientID string) conversation.Recorder {
	switch {
	case r.opts.Publisher != nil:
		return RecorderFunc(func(ctx context.Context, event model.TranscriptEvent) error {
			event.ClientID = clientID
			return r.opts.Publisher.Publish(ctx, event)
		})
	case r.opts.Archive != nil:
		return RecorderFunc(func(ctx context.Context, event model.TranscriptEvent) error {
			event.ClientID = clientID
			return r.opts.Archive.Apply(ctx, event)
		})
	default:
		return nil
	}
}

// Evict drops workspaces idle for longer than IdleTTL that are not waiting
// on an answer. It returns how many were dropped.
func (r *Registry) Evict() int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.opts.Now().Add(-r.opts.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, ws := range r.workspaces {
		if ws.lastSeen.After(cutoff) {
			continue
		}
		if ws.Controller.State() != conversation.StateIdle {
			continue
		}
		delete(r.workspaces, id)
		n++
	}
	return n
}

// Run evicts on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.opts.Logger.Debug("evicted idle workspaces", "count", n)
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}
