// Package personalization holds the resolved per-user runtime config the
// pipeline reads on every utterance.
package personalization

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// RefreshAfter is how long a resolved config stays fresh.
const RefreshAfter = 5 * time.Minute

// Source fetches a user's stored personalization as a patch.
type Source interface {
	Fetch(ctx context.Context, userID string) (*models.PersonalizationPatch, error)
}

// Store caches one runtime config per user id. The empty id is the
// anonymous caller.
type Store struct {
	mu      sync.Mutex
	configs map[string]*models.PersonalizationRuntime

	source Source
	clock  clock.Clock
	logger *slog.Logger
}

func NewStore(source Source, c clock.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		configs: make(map[string]*models.PersonalizationRuntime),
		source:  source,
		clock:   clock.OrReal(c),
		logger:  logger,
	}
}

// Default is the config used before anything has been resolved.
func Default(now time.Time) models.PersonalizationRuntime {
	return models.PersonalizationRuntime{
		Cadence:      "none",
		Tone:         "neutral",
		Bluntness:    5,
		PrivacyGates: map[string]bool{},
		CrisisRules:  map[string]any{},
		ResolvedAt:   now,
	}
}

// Snapshot returns a copy of the user's cached config, creating the
// default on first use.
func (s *Store) Snapshot(userID string) models.PersonalizationRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(userID).Clone()
}

func (s *Store) snapshotLocked(userID string) *models.PersonalizationRuntime {
	cfg, ok := s.configs[userID]
	if !ok {
		def := Default(s.clock.Now())
		cfg = &def
		s.configs[userID] = cfg
	}
	return cfg
}

// Update merges patch into the user's cached config.
func (s *Store) Update(userID string, patch models.PersonalizationPatch) models.PersonalizationRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Merge(*s.snapshotLocked(userID), patch, s.clock.Now())
	s.configs[userID] = &next
	return next.Clone()
}

// Load resolves the config for userID through the source. Fetch failures
// keep the cached config.
func (s *Store) Load(ctx context.Context, userID string) models.PersonalizationRuntime {
	if s.source == nil {
		return s.Snapshot(userID)
	}
	patch, err := s.source.Fetch(ctx, userID)
	if err != nil {
		s.logger.Warn("personalization fetch failed, using cached config", "user_id", userID,
			"error", models.Degraded(models.DependencyPersistence, err))
		return s.Snapshot(userID)
	}
	if patch == nil {
		return s.Snapshot(userID)
	}
	return s.Update(userID, *patch)
}

// Merge applies patch over cur. Settings are replaced only when the patch
// carries them; gates and crisis rules merge key by key.
func Merge(cur models.PersonalizationRuntime, patch models.PersonalizationPatch, now time.Time) models.PersonalizationRuntime {
	out := cur.Clone()
	if patch.UserSettings != nil {
		settings := *patch.UserSettings
		settings.Goals = append([]string(nil), patch.UserSettings.Goals...)
		out.UserSettings = &settings
	}
	if patch.Persona != nil {
		out.Persona = *patch.Persona
	}
	if patch.Cadence != nil {
		out.Cadence = *patch.Cadence
	}
	if patch.Tone != nil {
		out.Tone = *patch.Tone
	}
	if patch.SpiritualOn != nil {
		out.SpiritualOn = *patch.SpiritualOn
	}
	if patch.Bluntness != nil {
		out.Bluntness = *patch.Bluntness
	}
	for k, v := range patch.PrivacyGates {
		out.PrivacyGates[k] = v
	}
	for k, v := range patch.CrisisRules {
		out.CrisisRules[k] = v
	}
	out.ResolvedAt = now
	if patch.ResolvedAt != nil {
		out.ResolvedAt = *patch.ResolvedAt
	}
	return out
}

// NeedsRefresh reports whether cfg should be resolved again: it has
// neither settings nor a persona, or it is older than RefreshAfter.
func NeedsRefresh(cfg models.PersonalizationRuntime, now time.Time) bool {
	return StaleAfter(cfg, now, RefreshAfter)
}

// StaleAfter is NeedsRefresh with a caller-chosen window.
func StaleAfter(cfg models.PersonalizationRuntime, now time.Time, window time.Duration) bool {
	if cfg.UserSettings == nil && cfg.Persona == "" {
		return true
	}
	return now.Sub(cfg.ResolvedAt) > window
}
