// Package main is the Shashin CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/cli"
	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/server"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/shashin/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists, and a missing default file means
// built-in defaults. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shashin version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// openLocal loads config and opens storage and index directly. It fails while
// a server holds the index.
func openLocal(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (storage events, labels, search attempts)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("storage_root", cfg.Storage.Root),
		zap.String("labels_provider", cfg.Labels.Provider),
		zap.String("intent_provider", cfg.Intent.Provider),
	)
	if cfg.Signing.Secret == "" {
		logger.Warn("signing.secret is empty; photo URLs will not survive a restart")
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		watchSvc := newStorageWatcher(cfg, components.Indexer, logger, debugMode)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}
	n, err := components.Indexer.SyncExisting(watchCtx)
	if err != nil {
		logger.Warn("initial sync incomplete", zap.Error(err))
	}
	logger.Info("initial sync done", zap.Int("indexed", n))

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		components.Index,
		components.Signer,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shashin search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The query is broken into keywords ("show me dogs and cats" -> dog, cat). Photos
labelled with every keyword are returned first; if none match, the search is
relaxed to any keyword. "*", "all" or "everything" list every photo.

Examples:
  shashin search dogs and cats
  shashin search "photos of the beach"           # same as beach
  shashin search --output compact sunset          # URL and labels per line
  shashin search --server "" --output json trees  # read the index directly
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so `shashin search dogs --output json`
// would otherwise search for "dogs --output json".
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the index directly when the server is not running)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one photo per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	var response *models.SearchResponse
	if *serverURL != "" {
		// The server holds the index lock, so go through its API.
		response, err = cli.NewClient(*serverURL).Search(ctx, queryStr)
	} else {
		_, logger, components := openLocal(*configPath)
		defer logger.Sync()
		defer components.Close()
		response, err = components.Engine.Search(ctx, &models.SearchRequest{Query: queryStr})
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil || format == cli.OutputCompact {
		fatalf("Unknown output format %q; use text or json", *outputFormat)
	}

	ctx := context.Background()
	var status *cli.Status
	if *serverURL != "" {
		status, err = cli.NewClient(*serverURL).Status(ctx)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, logger, components := openLocal(*configPath)
		defer logger.Sync()
		defer components.Close()
		status, err = localStatus(ctx, cfg, components)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*cli.Status, error) {
	objects, err := c.Storage.CountObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("count objects: %w", err)
	}
	docs, err := c.Index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	status := &cli.Status{
		Objects:   objects,
		Documents: docs,
		Config: map[string]interface{}{
			"storage_root":       cfg.Storage.Root,
			"database_path":      cfg.Storage.DatabasePath,
			"index_path":         cfg.Storage.IndexPath,
			"labels_provider":    cfg.Labels.Provider,
			"intent_provider":    cfg.Intent.Provider,
			"page_size":          cfg.Search.PageSize,
			"url_expiry_seconds": cfg.Search.URLExpirySeconds,
			"watching":           cfg.Watch.EnabledOrDefault(),
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.Root, cfg.Storage.DatabasePath, cfg.Storage.IndexPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL to upload through (empty = write storage and index directly)")
	container := fs.String("container", "", "container to store photos in (default from config)")
	customLabels := fs.String("labels", "", "comma-separated custom labels added to every photo")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: shashin index [flags] <photo-or-directory>...")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if *container == "" {
		*container = cfg.Storage.DefaultContainer
	}
	extra := keyword.SplitCustomLabels(*customLabels)
	files, err := collectPhotos(fs.Args(), cfg.Watch.Extensions)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	var indexOne func(path string) ([]string, error)
	if *serverURL != "" {
		client := cli.NewClient(*serverURL)
		indexOne = func(path string) ([]string, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			res, err := client.Upload(ctx, *container, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), extra, f)
			if err != nil {
				return nil, err
			}
			return res.Labels, nil
		}
	} else {
		_, logger, components := openLocal(*configPath)
		defer logger.Sync()
		defer components.Close()
		indexOne = func(path string) ([]string, error) {
			doc, err := components.Indexer.IndexFile(ctx, path, *container, extra)
			if err != nil {
				return nil, err
			}
			return doc.Labels, nil
		}
	}

	failed := 0
	for _, path := range files {
		labels, err := indexOne(path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s -> %s/%s [%s]\n", path, *container, filepath.Base(path), utils.JoinLabels(labels))
	}
	fmt.Printf("Indexed %d of %d photo(s)\n", len(files)-failed, len(files))
	if failed > 0 {
		os.Exit(1)
	}
}

// collectPhotos expands directories into the photo files under them.
// Files named directly are kept regardless of extension.
func collectPhotos(args []string, extensions []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && hasExtension(path, extensions) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return files, nil
}

func hasExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower("."+strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = write storage and index directly)")
	container := fs.String("container", "", "container of the photo (default from config)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: shashin delete [flags] <key>")
		os.Exit(1)
	}
	key := fs.Arg(0)
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if *container == "" {
		*container = cfg.Storage.DefaultContainer
	}

	ctx := context.Background()
	if *serverURL != "" {
		err = cli.NewClient(*serverURL).Delete(ctx, *container, key)
	} else {
		_, logger, components := openLocal(*configPath)
		defer logger.Sync()
		defer components.Close()
		err = components.Indexer.Remove(ctx, *container, key)
	}
	if err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Photo deleted: %s/%s\n", *container, key)
}

func printUsage() {
	fmt.Println(`shashin - Photo album with label search

Usage:
  shashin server [flags]                Start the HTTP server
  shashin search [flags] <query>        Search photos
  shashin index [flags] <path>...       Store and index photos or directories of photos
  shashin delete [flags] <key>          Delete a photo
  shashin status [flags]                Show storage and index status
  shashin version                       Show version
  shashin help                          Show this help

Server Flags:
  --config string     Config file path (default: /usr/local/etc/shashin/config.yaml)
  --debug             Enable debug logging

Search Flags:
  --config string     Config file path (direct mode)
  --server string     Server URL (default: http://localhost:8080). Use --server "" to read the index directly.
  --output string     Output format: text, compact or json (default: text)

Index Flags:
  --config string     Config file path
  --server string     Upload through a running server instead of writing directly
  --container string  Container to store photos in (default: storage.default_container)
  --labels string     Comma-separated custom labels

Delete Flags:
  --config string     Config file path
  --server string     Delete through a running server
  --container string  Container of the photo

Status Flags:
  --config string     Config file path (direct mode)
  --server string     Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string     Output format: text or json (default: text)

Examples:
  shashin server
  shashin search dogs and cats
  shashin search --output json "photos of the beach"
  shashin index --labels "holiday,2024" ~/Pictures/trip
  shashin index --server http://localhost:8080 dog.jpg
  shashin delete --container photos dog.jpg
  shashin status --output json`)
}
