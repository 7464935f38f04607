package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// maxRequestedSpeed bounds what users may store; providers clamp further.
const maxRequestedSpeed = 4.0

// SettingsUpdate is a partial settings change. Nil fields are left as they are.
type SettingsUpdate struct {
	Speed     *float64
	Voice     *string
	FocusMode *bool
}

// SettingsUseCase reads and updates per-user narration settings.
type SettingsUseCase struct {
	store ports.SettingsStore
}

// NewSettingsUseCase creates a new SettingsUseCase.
func NewSettingsUseCase(store ports.SettingsStore) *SettingsUseCase {
	return &SettingsUseCase{store: store}
}

// Get returns the user's settings, creating the default row on first access.
func (uc *SettingsUseCase) Get(ctx context.Context, userID string) (entities.NarrationSettings, error) {
	s, err := uc.store.GetSettings(ctx, userID)
	if err != nil {
		return entities.NarrationSettings{}, fmt.Errorf("loading settings: %w", err)
	}
	if s != nil {
		return *s, nil
	}

	defaults := entities.DefaultSettings(userID)
	if err := uc.store.UpsertSettings(ctx, &defaults); err != nil {
		return entities.NarrationSettings{}, fmt.Errorf("%w: creating default settings: %v", ErrPersistence, err)
	}
	return defaults, nil
}

// Update merges upd into the stored settings.
func (uc *SettingsUseCase) Update(ctx context.Context, userID string, upd SettingsUpdate) (entities.NarrationSettings, error) {
	s, err := uc.Get(ctx, userID)
	if err != nil {
		return entities.NarrationSettings{}, err
	}

	if upd.Speed != nil {
		if *upd.Speed <= 0 || *upd.Speed > maxRequestedSpeed {
			return entities.NarrationSettings{}, fmt.Errorf("%w: speed %v out of range", ErrInvalidSettings, *upd.Speed)
		}
		s.Speed = *upd.Speed
	}
	if upd.Voice != nil {
		voice := strings.ToLower(strings.TrimSpace(*upd.Voice))
		if voice == "" {
			voice = "default"
		}
		s.Voice = voice
	}
	if upd.FocusMode != nil {
		s.FocusMode = *upd.FocusMode
	}

	if err := uc.store.UpsertSettings(ctx, &s); err != nil {
		return entities.NarrationSettings{}, fmt.Errorf("%w: saving settings: %v", ErrPersistence, err)
	}
	return s, nil
}
