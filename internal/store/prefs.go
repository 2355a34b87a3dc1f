package store

import (
	"context"
	"fmt"
	"strings"

	"lawchat/internal/model"
)

const (
	tokenKey         = "jwt_token"
	roleKey          = "role"
	usernameKey      = "username"
	modelKey         = "openai_model"
	compareModelsKey = "compare_models"
)

// Prefs holds the admin login and model selection. Secrets (the token) go
// through a separate store so they can be sealed at rest.
type Prefs struct {
	kv      KV
	secrets KV
}

func NewPrefs(kv, secrets KV) *Prefs {
	if secrets == nil {
		secrets = kv
	}
	return &Prefs{kv: kv, secrets: secrets}
}

// Login returns the stored admin login, ok=false when nobody is logged in.
func (p *Prefs) Login(ctx context.Context) (model.Login, bool, error) {
	token, ok, err := p.secrets.Get(ctx, tokenKey)
	if err != nil {
		return model.Login{}, false, fmt.Errorf("load admin token failed: %w", err)
	}
	if !ok || token == "" {
		return model.Login{}, false, nil
	}
	role, _, err := p.kv.Get(ctx, roleKey)
	if err != nil {
		return model.Login{}, false, fmt.Errorf("load admin role failed: %w", err)
	}
	username, _, err := p.kv.Get(ctx, usernameKey)
	if err != nil {
		return model.Login{}, false, fmt.Errorf("load admin username failed: %w", err)
	}
	return model.Login{Token: token, Role: role, Username: username}, true, nil
}

func (p *Prefs) SaveLogin(ctx context.Context, login model.Login) error {
	if err := p.secrets.Set(ctx, tokenKey, login.Token); err != nil {
		return fmt.Errorf("save admin token failed: %w", err)
	}
	if err := p.kv.Set(ctx, roleKey, login.Role); err != nil {
		return fmt.Errorf("save admin role failed: %w", err)
	}
	if err := p.kv.Set(ctx, usernameKey, login.Username); err != nil {
		return fmt.Errorf("save admin username failed: %w", err)
	}
	return nil
}

func (p *Prefs) ClearLogin(ctx context.Context) error {
	for _, key := range []string{roleKey, usernameKey} {
		if err := p.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s failed: %w", key, err)
		}
	}
	if err := p.secrets.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("clear admin token failed: %w", err)
	}
	return nil
}

// Model returns the selected answer model or fallback when none is stored.
func (p *Prefs) Model(ctx context.Context, fallback string) (string, error) {
	v, ok, err := p.kv.Get(ctx, modelKey)
	if err != nil {
		return fallback, fmt.Errorf("load model failed: %w", err)
	}
	if !ok || v == "" {
		return fallback, nil
	}
	return v, nil
}

func (p *Prefs) SetModel(ctx context.Context, name string) error {
	if err := p.kv.Set(ctx, modelKey, name); err != nil {
		return fmt.Errorf("save model failed: %w", err)
	}
	return nil
}

func (p *Prefs) CompareModels(ctx context.Context) ([]string, error) {
	v, ok, err := p.kv.Get(ctx, compareModelsKey)
	if err != nil {
		return nil, fmt.Errorf("load compare models failed: %w", err)
	}
	if !ok || v == "" {
		return nil, nil
	}
	return strings.Split(v, ","), nil
}

func (p *Prefs) SetCompareModels(ctx context.Context, names []string) error {
	if err := p.kv.Set(ctx, compareModelsKey, strings.Join(names, ",")); err != nil {
		return fmt.Errorf("save compare models failed: %w", err)
	}
	return nil
}
