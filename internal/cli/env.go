package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"lawchat/internal/app"
	"lawchat/internal/backend"
	"lawchat/internal/config"
	"lawchat/internal/conversation"
	"lawchat/internal/observability"
	"lawchat/internal/store"
)

// Env is the wiring shared by every command. Durable state lives in one
// file per backend origin under the state dir.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Client   *backend.Client
	KV       *store.FileKV
	Prefs    *store.Prefs
	Sessions *store.SessionStore
	Auth     *app.AuthService
	Settings *app.SettingsService
	Out      io.Writer
}

func NewEnv(cfg *config.Config, out io.Writer, debug bool) (*Env, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}
	logger := observability.Setup(os.Stderr, level, "text")

	kv, err := store.NewFileKV(cfg.Client.StateDir, cfg.Origin())
	if err != nil {
		return nil, fmt.Errorf("open state dir failed: %w", err)
	}

	var secrets store.KV = kv
	if cfg.Auth.SealKey != "" {
		sealed, err := store.NewSealedKV(kv, cfg.Auth.SealKey)
		if err != nil {
			return nil, fmt.Errorf("open sealed store failed: %w", err)
		}
		secrets = sealed
	}

	client := backend.New(backend.Options{
		BaseURL:     cfg.Backend.BaseURL,
		Timeout:     cfg.BackendTimeout(),
		AdminHeader: cfg.Backend.AdminHeader,
		UserAgent:   cfg.App.Name + "-cli",
	})
	prefs := store.NewPrefs(kv, secrets)

	return &Env{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		KV:       kv,
		Prefs:    prefs,
		Sessions: store.NewSessionStore(kv, logger),
		Auth:     app.NewAuthService(client, prefs, cfg.Auth.JWTSecret),
		Settings: app.NewSettingsService(prefs, cfg.Client.Models, cfg.Client.DefaultModel, logger),
		Out:      out,
	}, nil
}

func (e *Env) Controller(observer func(conversation.Snapshot)) *conversation.Controller {
	return conversation.NewController(e.Client, e.Sessions, conversation.Options{
		Timeout:  e.Config.BackendTimeout(),
		Model:    e.Settings.AskModel,
		Observer: observer,
		Logger:   e.Logger,
	})
}

// Admin returns the console service for the stored login.
func (e *Env) Admin(ctx context.Context) (*app.AdminService, error) {
	login, err := e.Auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	return app.NewAdminService(e.Client.Admin(login.Token), e.Config.Client.PageSize, e.Config.Gateway.BulkConcurrency), nil
}
