package models

import "time"

// LearningStyle weights how the user prefers to take in guidance.
type LearningStyle struct {
	Visual      float64 `json:"visual" yaml:"visual"`
	Auditory    float64 `json:"auditory" yaml:"auditory"`
	Kinesthetic float64 `json:"kinesthetic" yaml:"kinesthetic"`
}

// DriftRule controls when conversational drift is flagged.
type DriftRule struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	After   string `json:"after,omitempty" yaml:"after"`
}

// UserSettings are the persisted onboarding choices of a user.
type UserSettings struct {
	UserID               string        `json:"user_id,omitempty" yaml:"user_id"`
	PersonalizationMode  string        `json:"personalization_mode" yaml:"personalization_mode"`
	LocalCacheEnabled    bool          `json:"local_cache_enabled" yaml:"local_cache_enabled"`
	Cadence              string        `json:"cadence" yaml:"cadence"`
	Goals                []string      `json:"goals" yaml:"goals"`
	ExtraGoal            string        `json:"extra_goal,omitempty" yaml:"extra_goal"`
	LearningStyle        LearningStyle `json:"learning_style" yaml:"learning_style"`
	SessionLengthMinutes int           `json:"session_length_minutes" yaml:"session_length_minutes"`
	SpiritualPrompts     bool          `json:"spiritual_prompts" yaml:"spiritual_prompts"`
	Bluntness            int           `json:"bluntness" yaml:"bluntness"`
	LanguageIntensity    string        `json:"language_intensity" yaml:"language_intensity"`
	LoggingFormat        string        `json:"logging_format" yaml:"logging_format"`
	DriftRule            DriftRule     `json:"drift_rule" yaml:"drift_rule"`
	CrisisCard           string        `json:"crisis_card,omitempty" yaml:"crisis_card"`
	PersonaTag           string        `json:"persona_tag" yaml:"persona_tag"`
}

// PersonalizationRuntime is the resolved config snapshot the pipeline runs with.
type PersonalizationRuntime struct {
	UserSettings *UserSettings   `json:"user_settings"`
	Persona      string          `json:"persona,omitempty"`
	Cadence      string          `json:"cadence"`
	Tone         string          `json:"tone"`
	SpiritualOn  bool            `json:"spiritual_on"`
	Bluntness    int             `json:"bluntness"`
	PrivacyGates map[string]bool `json:"privacy_gates"`
	CrisisRules  map[string]any  `json:"crisis_rules"`
	ResolvedAt   time.Time       `json:"resolved_at"`
}

// Clone returns a deep copy so callers never share maps with the store.
func (p PersonalizationRuntime) Clone() PersonalizationRuntime {
	out := p
	if p.UserSettings != nil {
		settings := *p.UserSettings
		settings.Goals = append([]string(nil), p.UserSettings.Goals...)
		out.UserSettings = &settings
	}
	out.PrivacyGates = make(map[string]bool, len(p.PrivacyGates))
	for k, v := range p.PrivacyGates {
		out.PrivacyGates[k] = v
	}
	out.CrisisRules = make(map[string]any, len(p.CrisisRules))
	for k, v := range p.CrisisRules {
		out.CrisisRules[k] = v
	}
	return out
}

// PersonalizationPatch is merged into the runtime config; nil fields are kept.
// PrivacyGates and CrisisRules are merged key by key.
type PersonalizationPatch struct {
	UserSettings *UserSettings   `json:"user_settings,omitempty"`
	Persona      *string         `json:"persona,omitempty"`
	Cadence      *string         `json:"cadence,omitempty"`
	Tone         *string         `json:"tone,omitempty"`
	SpiritualOn  *bool           `json:"spiritual_on,omitempty"`
	Bluntness    *int            `json:"bluntness,omitempty"`
	PrivacyGates map[string]bool `json:"privacy_gates,omitempty"`
	CrisisRules  map[string]any  `json:"crisis_rules,omitempty"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
}
