// Package config provides configuration loading and structs for the Shashin server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Labels  LabelsConfig  `yaml:"labels"`
	Intent  IntentConfig  `yaml:"intent"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Signing SigningConfig `yaml:"signing"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicURL prefixes signed photo URLs; defaults to http://host:port.
	PublicURL string `yaml:"public_url"`
}

// StorageConfig holds paths for blobs, object metadata and the search index.
type StorageConfig struct {
	Root             string `yaml:"root"`
	DatabasePath     string `yaml:"database_path"`
	IndexPath        string `yaml:"index_path"`
	DefaultContainer string `yaml:"default_container"`
}

// SearchConfig holds the relaxation search and keyword normalization settings.
type SearchConfig struct {
	PageSize         int               `yaml:"page_size"`
	URLExpirySeconds int               `yaml:"url_expiry_seconds"`
	Wildcard         string            `yaml:"wildcard"`
	MatchAllWords    []string          `yaml:"match_all_words"`
	StopWords        []string          `yaml:"stop_words"`
	SingularRules    map[string]string `yaml:"singular_rules"`
	IntentCacheSize  int               `yaml:"intent_cache_size"`
}

// URLExpiry returns the signed URL lifetime.
func (s *SearchConfig) URLExpiry() time.Duration {
	return time.Duration(s.URLExpirySeconds) * time.Second
}

// LabelsConfig selects and configures the label detector.
type LabelsConfig struct {
	// Provider is "filename", "openai" or "onnx".
	Provider      string  `yaml:"provider"`
	MaxLabels     int     `yaml:"max_labels"`
	MinConfidence float32 `yaml:"min_confidence"`
	ModelPath     string  `yaml:"model_path"`
	ClassesPath   string  `yaml:"classes_path"`
	InputName     string  `yaml:"input_name"`
	OutputName    string  `yaml:"output_name"`
	// MetadataKey is the user metadata key holding comma-separated custom labels.
	MetadataKey string `yaml:"metadata_key"`
}

// IntentConfig selects the intent extractor.
type IntentConfig struct {
	// Provider is "rules" or "openai".
	Provider string   `yaml:"provider"`
	Fillers  []string `yaml:"fillers"`
}

// OpenAIConfig holds settings for the OpenAI-compatible chat API.
type OpenAIConfig struct {
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url"`
	ChatModel   string `yaml:"chat_model"`
	VisionModel string `yaml:"vision_model"`
}

// SigningConfig holds the photo URL signing secret.
type SigningConfig struct {
	// Secret signs photo URLs. Empty means a random secret per process.
	Secret string `yaml:"secret"`
}

// WatchConfig holds storage root watch settings.
type WatchConfig struct {
	Enabled    *bool    `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
}

// EnabledOrDefault returns whether to watch the storage root; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.Root = expandPath(cfg.Storage.Root, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	if cfg.Labels.ModelPath != "" {
		cfg.Labels.ModelPath = expandPath(cfg.Labels.ModelPath, configDir)
	}
	if cfg.Labels.ClassesPath != "" {
		cfg.Labels.ClassesPath = expandPath(cfg.Labels.ClassesPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
