package services

import (
	"context"
	"fmt"

	"finman/internal/core"
	"finman/internal/ports"
)

// SettingsService loads and saves display preferences, filling in the
// configured default currency when none was saved.
type SettingsService struct {
	store           ports.PreferencesStore
	defaultCurrency string
	onWrite         []func()
}

func NewSettingsService(store ports.PreferencesStore, defaultCurrency string) *SettingsService {
	return &SettingsService{store: store, defaultCurrency: defaultCurrency}
}

// OnWrite registers fn to run after preferences are saved.
func (s *SettingsService) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

func (s *SettingsService) Get(ctx context.Context) (core.Preferences, error) {
	p, err := s.store.LoadPreferences(ctx)
	if err != nil {
		return core.Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	if p.Currency == "" {
		p.Currency = s.defaultCurrency
	}
	return p.Normalize(), nil
}

func (s *SettingsService) Save(ctx context.Context, p core.Preferences) (core.Preferences, error) {
	p = p.Normalize()
	if p.Currency == "" {
		p.Currency = s.defaultCurrency
	}
	if err := p.Validate(); err != nil {
		return core.Preferences{}, err
	}
	if err := s.store.SavePreferences(ctx, p); err != nil {
		return core.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	for _, fn := range s.onWrite {
		fn()
	}
	return p, nil
}
