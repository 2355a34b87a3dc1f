package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"lawchat/internal/store"
)

var ErrUnknownModel = errors.New("unknown model")

// SettingsService owns the answer-model selection of one client context.
type SettingsService struct {
	prefs    *store.Prefs
	allowed  []string
	fallback string
	logger   *slog.Logger
}

func NewSettingsService(prefs *store.Prefs, allowed []string, fallback string, logger *slog.Logger) *SettingsService {
	if fallback == "" && len(allowed) > 0 {
		fallback = allowed[0]
	}
	return &SettingsService{
		prefs:    prefs,
		allowed:  slices.Clone(allowed),
		fallback: fallback,
		logger:   logger,
	}
}

func (s *SettingsService) Models() []string {
	return slices.Clone(s.allowed)
}

// Current returns the stored selection or the configured default.
func (s *SettingsService) Current(ctx context.Context) (string, error) {
	return s.prefs.Model(ctx, s.fallback)
}

func (s *SettingsService) Select(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if !slices.Contains(s.allowed, name) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return s.prefs.SetModel(ctx, name)
}

func (s *SettingsService) CompareSelection(ctx context.Context) ([]string, error) {
	return s.prefs.CompareModels(ctx)
}

func (s *SettingsService) SetCompareSelection(ctx context.Context, names []string) error {
	names = cleanList(names)
	if len(names) == 0 {
		return fmt.Errorf("%w: pick at least one model", ErrInvalidInput)
	}
	for _, name := range names {
		if !slices.Contains(s.allowed, name) {
			return fmt.Errorf("%w: %q", ErrUnknownModel, name)
		}
	}
	return s.prefs.SetCompareModels(ctx, names)
}

// AskModel is the model sent with each question: only an explicit
// selection is forwarded, otherwise the backend picks.
func (s *SettingsService) AskModel(ctx context.Context) string {
	name, err := s.prefs.Model(ctx, "")
	if err != nil {
		s.logger.Warn("load model selection failed", "error", err)
		return ""
	}
	return name
}
