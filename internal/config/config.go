package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML file read before the environment.
const FileEnv = "UNDERSTANDING_CONFIG"

type Config struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"dbPath"`
	APIKey   string `yaml:"apiKey"`
	LogLevel string `yaml:"logLevel"`
	// Embeddings; an empty OllamaBaseURL selects the local hash embedder.
	OllamaBaseURL  string `yaml:"ollamaBaseURL"`
	EmbeddingModel string `yaml:"embeddingModel"`
	EmbeddingDim   int    `yaml:"embeddingDim"`
	// Remote retrieval; empty disables it.
	QdrantURL    string `yaml:"qdrantURL"`
	QdrantPrefix string `yaml:"qdrantPrefix"`
	// Routing
	CommitThreshold    float64 `yaml:"commitThreshold"`
	ClarifyThreshold   float64 `yaml:"clarifyThreshold"`
	SecondaryThreshold float64 `yaml:"secondaryThreshold"`
	// Retrieval and context
	MemoryCapacity int           `yaml:"memoryCapacity"`
	MaxTraces      int           `yaml:"maxTraces"`
	RefreshAfter   time.Duration `yaml:"refreshAfter"`
	GoalLimit      int           `yaml:"goalLimit"`
	DefaultTopK    int           `yaml:"defaultTopK"`
	BriefLimit     int           `yaml:"briefLimit"`
	// Personalization, goals and planning
	PersonalizationFile string `yaml:"personalizationFile"`
	GoalsFile           string `yaml:"goalsFile"`
	PlannerEnabled      bool   `yaml:"plannerEnabled"`
	// MCP adapter
	ServerURL      string        `yaml:"serverURL"`
	UserID         string        `yaml:"userID"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a key.
func Defaults() Config {
	return Config{
		Port:               8742,
		DBPath:             "/data/understanding.db",
		LogLevel:           "info",
		OllamaBaseURL:      "http://localhost:11434",
		EmbeddingModel:     "nomic-embed-text",
		EmbeddingDim:       768,
		QdrantPrefix:       "understanding_",
		CommitThreshold:    0.75,
		ClarifyThreshold:   0.45,
		SecondaryThreshold: 0.6,
		MemoryCapacity:     512,
		MaxTraces:          100,
		RefreshAfter:       5 * time.Minute,
		GoalLimit:          5,
		DefaultTopK:        5,
		BriefLimit:         9,
		PlannerEnabled:     true,
		ServerURL:          "http://localhost:8742",
		RequestTimeout:     30 * time.Second,
	}
}

func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg = Config{
		Port:                envInt("PORT", cfg.Port),
		DBPath:              envStr("UNDERSTANDING_DB_PATH", cfg.DBPath),
		APIKey:              envStr("API_KEY", cfg.APIKey),
		LogLevel:            envStr("LOG_LEVEL", cfg.LogLevel),
		OllamaBaseURL:       envStr("OLLAMA_BASE_URL", cfg.OllamaBaseURL),
		EmbeddingModel:      envStr("EMBEDDING_MODEL", cfg.EmbeddingModel),
		EmbeddingDim:        envInt("EMBEDDING_DIM", cfg.EmbeddingDim),
		QdrantURL:           envStr("QDRANT_URL", cfg.QdrantURL),
		QdrantPrefix:        envStr("QDRANT_COLLECTION_PREFIX", cfg.QdrantPrefix),
		CommitThreshold:     envFloat("ROUTE_COMMIT_THRESHOLD", cfg.CommitThreshold),
		ClarifyThreshold:    envFloat("ROUTE_CLARIFY_THRESHOLD", cfg.ClarifyThreshold),
		SecondaryThreshold:  envFloat("ROUTE_SECONDARY_THRESHOLD", cfg.SecondaryThreshold),
		MemoryCapacity:      envInt("MEMORY_CAPACITY", cfg.MemoryCapacity),
		MaxTraces:           envInt("MAX_TRACES", cfg.MaxTraces),
		RefreshAfter:        envDuration("CONFIG_REFRESH_AFTER", cfg.RefreshAfter),
		GoalLimit:           envInt("GOAL_CONTEXT_LIMIT", cfg.GoalLimit),
		DefaultTopK:         envInt("DEFAULT_TOP_K", cfg.DefaultTopK),
		BriefLimit:          envInt("BRIEF_LIMIT", cfg.BriefLimit),
		PersonalizationFile: envStr("PERSONALIZATION_FILE", cfg.PersonalizationFile),
		GoalsFile:           envStr("GOALS_FILE", cfg.GoalsFile),
		PlannerEnabled:      envBool("PLANNER_ENABLED", cfg.PlannerEnabled),
		ServerURL:           envStr("UNDERSTANDING_SERVER_URL", cfg.ServerURL),
		UserID:              envStr("UNDERSTANDING_USER_ID", cfg.UserID),
		RequestTimeout:      envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	for name, v := range map[string]float64{
		"ROUTE_COMMIT_THRESHOLD":    c.CommitThreshold,
		"ROUTE_CLARIFY_THRESHOLD":   c.ClarifyThreshold,
		"ROUTE_SECONDARY_THRESHOLD": c.SecondaryThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %f", name, v)
		}
	}
	if c.ClarifyThreshold > c.CommitThreshold {
		return fmt.Errorf("ROUTE_CLARIFY_THRESHOLD (%f) must not exceed ROUTE_COMMIT_THRESHOLD (%f)",
			c.ClarifyThreshold, c.CommitThreshold)
	}
	if c.MemoryCapacity < 1 {
		return fmt.Errorf("MEMORY_CAPACITY must be positive, got %d", c.MemoryCapacity)
	}
	if c.MaxTraces < 1 {
		return fmt.Errorf("MAX_TRACES must be positive, got %d", c.MaxTraces)
	}
	if c.RefreshAfter <= 0 {
		return fmt.Errorf("CONFIG_REFRESH_AFTER must be positive, got %s", c.RefreshAfter)
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > 20 {
		return fmt.Errorf("DEFAULT_TOP_K must be between 1 and 20, got %d", c.DefaultTopK)
	}
	if c.BriefLimit < 3 || c.BriefLimit > 9 {
		return fmt.Errorf("BRIEF_LIMIT must be between 3 and 9, got %d", c.BriefLimit)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(:-([^}]*))?\}`)

func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[3]
	})
}

// loadFile decodes a YAML file over cfg. Keys the file omits keep their
// current values.
func loadFile(path string, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	dec := yaml.NewDecoder(strings.NewReader(interpolateEnvVars(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// envStr returns a set variable even when it is empty, so OLLAMA_BASE_URL=
// and QDRANT_URL= switch those backends off.
func envStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
