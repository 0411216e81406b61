package personalization

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// profile is the on-disk shape of a personalization profile.
type profile struct {
	Persona      *string              `yaml:"persona"`
	Cadence      *string              `yaml:"cadence"`
	Tone         *string              `yaml:"tone"`
	SpiritualOn  *bool                `yaml:"spiritual_on"`
	Bluntness    *int                 `yaml:"bluntness"`
	PrivacyGates map[string]bool      `yaml:"privacy_gates"`
	CrisisRules  map[string]any       `yaml:"crisis_rules"`
	Settings     *models.UserSettings `yaml:"user_settings"`
}

// FileSource reads profiles from a YAML file. The file either holds one
// profile or a "users" map keyed by user id.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(_ context.Context, userID string) (*models.PersonalizationPatch, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var doc struct {
		Default profile            `yaml:",inline"`
		Users   map[string]profile `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", f.Path, err)
	}

	p := doc.Default
	if up, ok := doc.Users[userID]; ok && userID != "" {
		p = up
	}
	return &models.PersonalizationPatch{
		UserSettings: p.Settings,
		Persona:      p.Persona,
		Cadence:      p.Cadence,
		Tone:         p.Tone,
		SpiritualOn:  p.SpiritualOn,
		Bluntness:    p.Bluntness,
		PrivacyGates: p.PrivacyGates,
		CrisisRules:  p.CrisisRules,
	}, nil
}
