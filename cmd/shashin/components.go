package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/index"
	"github.com/hyperjump/shashin/internal/indexer"
	"github.com/hyperjump/shashin/internal/intent"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/labels"
	"github.com/hyperjump/shashin/internal/llm"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/search"
	"github.com/hyperjump/shashin/internal/signer"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/internal/watcher"
)

// Components holds initialized services.
type Components struct {
	Storage *storage.DiskStore
	Index   *index.BleveStore
	Signer  *signer.HMACSigner
	Engine  *search.Engine
	Indexer *indexer.Indexer
	closers []io.Closer
}

func (c *Components) Close() {
	for _, cl := range c.closers {
		_ = cl.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st, err := storage.NewDiskStore(cfg.Storage.Root, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: st}

	c.Index, err = index.NewBleveStore(cfg.Storage.IndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}

	detector, err := newDetector(cfg, st, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	if cl, ok := detector.(io.Closer); ok {
		c.closers = append(c.closers, cl)
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Signer, err = signer.NewHMACSigner(cfg.Server.PublicURL, []byte(cfg.Signing.Secret))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize URL signer: %w", err)
	}

	normalizer := keyword.NewNormalizer(keyword.Policy{
		StopWords:     cfg.Search.StopWords,
		SingularRules: cfg.Search.SingularRules,
		Wildcard:      cfg.Search.Wildcard,
		MatchAllWords: cfg.Search.MatchAllWords,
	})
	c.Engine = search.NewEngine(c.Index, normalizer, c.Signer,
		search.WithLogger(logger),
		search.WithExtractor(extractor),
		search.WithPageSize(cfg.Search.PageSize),
		search.WithURLExpiry(cfg.Search.URLExpiry()),
	)

	c.Indexer = indexer.NewIndexer(st, detector, c.Index,
		indexer.WithLogger(logger),
		indexer.WithNormalizer(normalizer),
		indexer.WithMetadataKey(cfg.Labels.MetadataKey),
		indexer.WithMaxLabels(cfg.Labels.MaxLabels),
		indexer.WithExtensions(cfg.Watch.Extensions),
		indexer.WithSyncIndexing(!cfg.Watch.EnabledOrDefault()),
	)
	return c, nil
}

// newDetector builds the configured label detector. A missing ONNX model
// falls back to file name labels so the server still starts.
func newDetector(cfg *config.Config, objects labels.ObjectOpener, logger *zap.Logger) (labels.Detector, error) {
	switch cfg.Labels.Provider {
	case "filename", "":
		return labels.NewFilenameDetector(cfg.Labels.MaxLabels), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.New("labels provider openai needs openai.api_key or OPENAI_API_KEY")
		}
		return labels.NewOpenAIDetector(labels.OpenAIConfig{
			Client:    llm.NewClient(llm.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL}),
			Model:     cfg.OpenAI.VisionModel,
			MaxLabels: cfg.Labels.MaxLabels,
			Logger:    logger,
		}, objects), nil
	case "onnx":
		d, err := labels.NewONNXDetector(labels.ONNXConfig{
			ModelPath:     cfg.Labels.ModelPath,
			ClassesPath:   cfg.Labels.ClassesPath,
			InputName:     cfg.Labels.InputName,
			OutputName:    cfg.Labels.OutputName,
			MaxLabels:     cfg.Labels.MaxLabels,
			MinConfidence: cfg.Labels.MinConfidence,
		}, objects)
		if err != nil {
			logger.Warn("onnx label detector unavailable, using file name labels", zap.Error(err))
			return labels.NewFilenameDetector(cfg.Labels.MaxLabels), nil
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown labels provider %q", cfg.Labels.Provider)
	}
}

func newExtractor(cfg *config.Config) (intent.Extractor, error) {
	var x intent.Extractor
	switch cfg.Intent.Provider {
	case "rules", "":
		x = intent.NewRuleExtractor(cfg.Intent.Fillers...)
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.New("intent provider openai needs openai.api_key or OPENAI_API_KEY")
		}
		client := llm.NewClient(llm.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL})
		x = intent.NewOpenAIExtractor(client, cfg.OpenAI.ChatModel)
	default:
		return nil, fmt.Errorf("unknown intent provider %q", cfg.Intent.Provider)
	}
	if cfg.Search.IntentCacheSize > 0 {
		x = intent.Cached(x, intent.NewCache(cfg.Search.IntentCacheSize))
	}
	return x, nil
}

// newStorageWatcher indexes objects written under the storage root and drops
// the documents of removed ones.
func newStorageWatcher(cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger, debug bool) *watcher.Watcher {
	opts := []watcher.WatcherOption{}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	return watcher.NewWatcher(
		cfg.Storage.Root,
		cfg.Watch.Extensions,
		func(ev *models.ObjectEvent) {
			if _, err := idx.IndexObject(context.Background(), ev); err != nil {
				logger.Warn("watch index object failed", zap.String("container", ev.Container), zap.String("key", ev.Key), zap.Error(err))
			}
		},
		func(container, key string) {
			if err := idx.DeleteObject(context.Background(), container, key); err != nil {
				logger.Warn("watch delete document failed", zap.String("container", container), zap.String("key", key), zap.Error(err))
			}
		},
		opts...,
	)
}
