package personalization

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

var now = time.Date(2025, 11, 7, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestSnapshotDefaults(t *testing.T) {
	s := NewStore(nil, clock.NewManual(now), nil)
	cfg := s.Snapshot("u1")

	assert.Equal(t, Default(now), cfg)
	cfg.PrivacyGates["leak"] = true
	assert.Empty(t, s.Snapshot("u1").PrivacyGates, "snapshots are copies")
}

func TestUpdateMerges(t *testing.T) {
	clk := clock.NewManual(now)
	s := NewStore(nil, clk, nil)
	s.Update("u1", models.PersonalizationPatch{
		Tone:         ptr("direct"),
		PrivacyGates: map[string]bool{"location": true},
		CrisisRules:  map[string]any{"hotline": "988"},
	})

	clk.Advance(time.Minute)
	got := s.Update("u1", models.PersonalizationPatch{
		Bluntness:    ptr(8),
		PrivacyGates: map[string]bool{"health": false},
	})

	assert.Equal(t, "direct", got.Tone)
	assert.Equal(t, 8, got.Bluntness)
	assert.Equal(t, "none", got.Cadence)
	assert.Equal(t, map[string]bool{"location": true, "health": false}, got.PrivacyGates)
	assert.Equal(t, map[string]any{"hotline": "988"}, got.CrisisRules)
	assert.Equal(t, now.Add(time.Minute), got.ResolvedAt)
	assert.Nil(t, got.UserSettings)

	resolved := now.Add(-time.Hour)
	got = s.Update("u1", models.PersonalizationPatch{
		UserSettings: &models.UserSettings{Cadence: "daily", Goals: []string{"sleep"}},
		ResolvedAt:   &resolved,
	})
	require.NotNil(t, got.UserSettings)
	assert.Equal(t, []string{"sleep"}, got.UserSettings.Goals)
	assert.Equal(t, resolved, got.ResolvedAt)
}

func TestConfigsArePerUser(t *testing.T) {
	s := NewStore(nil, clock.NewManual(now), nil)
	s.Update("alice", models.PersonalizationPatch{Tone: ptr("blunt"), Persona: ptr("coach")})

	bob := s.Snapshot("bob")
	assert.Equal(t, "neutral", bob.Tone)
	assert.Empty(t, bob.Persona)
	assert.Equal(t, "coach", s.Snapshot("alice").Persona)

	s.Update("bob", models.PersonalizationPatch{Tone: ptr("gentle")})
	assert.Equal(t, "blunt", s.Snapshot("alice").Tone)
}

func TestNeedsRefresh(t *testing.T) {
	fresh := Default(now)
	assert.True(t, NeedsRefresh(fresh, now), "no settings and no persona")

	fresh.Persona = "coach"
	assert.False(t, NeedsRefresh(fresh, now.Add(5*time.Minute)))
	assert.True(t, NeedsRefresh(fresh, now.Add(5*time.Minute+time.Second)))

	withSettings := Default(now)
	withSettings.UserSettings = &models.UserSettings{}
	assert.False(t, NeedsRefresh(withSettings, now))
}

type stubSource struct {
	patch *models.PersonalizationPatch
	err   error
}

func (s stubSource) Fetch(context.Context, string) (*models.PersonalizationPatch, error) {
	return s.patch, s.err
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	s := NewStore(nil, clock.NewManual(now), nil)
	assert.Equal(t, "neutral", s.Load(ctx, "u1").Tone)

	s = NewStore(stubSource{patch: &models.PersonalizationPatch{Persona: ptr("mentor")}}, clock.NewManual(now), nil)
	assert.Equal(t, "mentor", s.Load(ctx, "u1").Persona)

	s = NewStore(stubSource{err: errors.New("offline")}, clock.NewManual(now), nil)
	assert.Equal(t, Default(now), s.Load(ctx, "u1"))

	s = NewStore(FileSource{Path: writeProfiles(t)}, clock.NewManual(now), nil)
	alice := s.Load(ctx, "alice")
	bob := s.Load(ctx, "bob")
	assert.Equal(t, "coach", alice.Persona)
	assert.Equal(t, "blunt", alice.Tone)
	assert.Equal(t, "friend", bob.Persona)
	assert.Equal(t, "gentle", bob.Tone)
	assert.Equal(t, "coach", s.Snapshot("alice").Persona, "bob's load leaves alice cached")
}

func writeProfiles(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  alice:
    persona: coach
    tone: blunt
  bob:
    persona: friend
    tone: gentle
`), 0o644))
	return path
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tone: gentle
bluntness: 3
privacy_gates:
  location: true
users:
  u2:
    persona: drill-sergeant
    bluntness: 10
    user_settings:
      cadence: daily
      goals: [fitness]
      drift_rule:
        enabled: true
        after: 3d
`), 0o644))

	src := FileSource{Path: path}

	p, err := src.Fetch(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "gentle", *p.Tone)
	assert.Equal(t, 3, *p.Bluntness)
	assert.Equal(t, map[string]bool{"location": true}, p.PrivacyGates)
	assert.Nil(t, p.UserSettings)

	p, err = src.Fetch(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "drill-sergeant", *p.Persona)
	assert.Equal(t, 10, *p.Bluntness)
	require.NotNil(t, p.UserSettings)
	assert.Equal(t, []string{"fitness"}, p.UserSettings.Goals)
	assert.True(t, p.UserSettings.DriftRule.Enabled)

	missing, err := FileSource{Path: filepath.Join(t.TempDir(), "none.yaml")}.Fetch(ctx, "u1")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, os.WriteFile(path, []byte("tone: [unterminated"), 0o644))
	_, err = src.Fetch(ctx, "u1")
	assert.Error(t, err)
}
