package config

import (
	"fmt"
	"os"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "/usr/local/var/shashin/data/photos"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/shashin/data/db/objects.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/shashin/data/indices/photos"
	}
	if cfg.Storage.DefaultContainer == "" {
		cfg.Storage.DefaultContainer = "photos"
	}
	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = 100
	}
	if cfg.Search.URLExpirySeconds == 0 {
		cfg.Search.URLExpirySeconds = 3600
	}
	if cfg.Search.Wildcard == "" {
		cfg.Search.Wildcard = "*"
	}
	if cfg.Search.MatchAllWords == nil {
		cfg.Search.MatchAllWords = []string{"all", "everything"}
	}
	if cfg.Search.StopWords == nil {
		cfg.Search.StopWords = []string{"and", "in", "the", "a"}
	}
	if cfg.Search.SingularRules == nil {
		cfg.Search.SingularRules = map[string]string{
			"pants":   "pants",
			"jeans":   "jeans",
			"glasses": "glasses",
			"shorts":  "shorts",
		}
	}
	if cfg.Search.IntentCacheSize == 0 {
		cfg.Search.IntentCacheSize = 1000
	}
	if cfg.Labels.Provider == "" {
		cfg.Labels.Provider = "filename"
	}
	if cfg.Labels.MaxLabels == 0 {
		cfg.Labels.MaxLabels = 10
	}
	if cfg.Labels.MinConfidence == 0 {
		cfg.Labels.MinConfidence = 0.1
	}
	if cfg.Labels.MetadataKey == "" {
		cfg.Labels.MetadataKey = "customlabels"
	}
	if cfg.Intent.Provider == "" {
		cfg.Intent.Provider = "rules"
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.VisionModel == "" {
		cfg.OpenAI.VisionModel = "gpt-4o-mini"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic"}
	}
}
