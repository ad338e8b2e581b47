// Package main is the DocIQ CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/dociq/internal/api"
	"github.com/hyperjump/dociq/internal/catalog"
	"github.com/hyperjump/dociq/internal/chat"
	"github.com/hyperjump/dociq/internal/config"
	"github.com/hyperjump/dociq/internal/drive"
	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/extract"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/selection"
	"github.com/hyperjump/dociq/internal/storage"
	"github.com/hyperjump/dociq/internal/uploader"
	"github.com/hyperjump/dociq/internal/workspace"
	"github.com/hyperjump/dociq/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

// defaultConfigPath is resolved against the home directory.
const defaultConfigPath = "~/.config/dociq/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml in the current
// directory takes precedence, and a missing default file yields defaults plus environment.
// Returns the config and the path that was actually loaded (empty when none was).
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
		resolved := expandHome(path)
		if _, statErr := os.Stat(resolved); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
		path = resolved
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func main() {
	if len(os.Args) < 2 {
		runChat(nil)
		return
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "chat":
		runChat(args)
	case "ask":
		runAsk(args)
	case "docs":
		runDocs(args)
	case "upload":
		runUpload(args)
	case "preview":
		runPreview(args)
	case "watch":
		runWatch(args)
	case "workspace", "ws":
		runWorkspace(args)
	case "drive":
		runDrive(args)
	case "serve":
		runServe(args)
	case "status":
		runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("dociq version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		if strings.HasPrefix(command, "-") {
			runChat(os.Args[1:])
			return
		}
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired services of one process.
type Components struct {
	Config     *config.Config
	Logger     *zap.Logger
	Storage    storage.Storage
	API        *api.Client
	Bus        *events.Bus
	Workspaces *workspace.Store
	Catalog    *catalog.Catalog
	Assembler  *chat.Assembler
	Bridge     *selection.Bridge
	Drive      *drive.Poller
	Uploader   *uploader.Uploader
	Extractor  *extract.Extractor
}

// Close releases components in reverse dependency order.
func (c *Components) Close() {
	if c.Assembler != nil {
		_ = c.Assembler.Close()
	}
	if c.Drive != nil {
		c.Drive.Stop()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Storage != nil {
		if err := c.Storage.Close(); err != nil {
			c.Logger.Warn("storage close failed", zap.Error(err))
		}
	}
}

// componentOptions tune initializeComponents per command.
type componentOptions struct {
	instantReveal bool
	greeting      bool
	// fileLog sends logs to the rotating log file; the terminal UI owns stdout.
	fileLog bool
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	ctx := context.Background()

	client := api.New(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout, api.WithLogger(logger))
	bus := events.NewBus(events.WithLogger(logger))
	ws := workspace.Open(ctx, store, workspace.WithLogger(logger))
	cat := catalog.New(client, ws,
		catalog.WithLogger(logger),
		catalog.WithTTL(cfg.Catalog.CacheTTL),
		catalog.WithBus(bus),
	)

	revealDelay := cfg.Chat.RevealDelay
	if opts.instantReveal {
		revealDelay = 0
	}
	chatOpts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithRevealDelay(revealDelay),
		chat.WithErrorText(cfg.Chat.ErrorText),
	}
	if opts.greeting {
		chatOpts = append(chatOpts, chat.WithGreeting(cfg.Chat.GreetingOrDefault()))
	}
	asm := chat.NewAssembler(client, chatOpts...)

	return &Components{
		Config:     cfg,
		Logger:     logger,
		Storage:    store,
		API:        client,
		Bus:        bus,
		Workspaces: ws,
		Catalog:    cat,
		Assembler:  asm,
		Bridge:     selection.NewBridge(asm, selection.WithLogger(logger)),
		Drive: drive.NewPoller(client,
			drive.WithLogger(logger),
			drive.WithInterval(cfg.Drive.PollInterval),
			drive.WithBus(bus),
		),
		Uploader:  uploader.New(client, store, ws, uploader.WithLogger(logger), uploader.WithBus(bus)),
		Extractor: extract.NewExtractor(),
	}, nil
}

// setup loads config, creates the stdout logger and wires components. It exits on failure.
func setup(configPath string, debugFlag bool, opts componentOptions) *Components {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger := zap.NewNop()
	switch {
	case opts.fileLog:
		logger, err = utils.NewFileLogger(cfg.Log.File, debugMode, utils.FileLogOptions{
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	case debugMode:
		logger, err = utils.NewLogger(true)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.String("api", cfg.API.BaseURL))
	c, err := initializeComponents(cfg, logger, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return c
}

// reorderArgs moves any flags (and their values) that appear after positional arguments
// to the front so that flag.Parse sees them. The flag package stops at the first
// non-flag argument, so "dociq ask how long -doc abc" would otherwise leave -doc unparsed.
func reorderArgs(args []string) []string {
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

// joinArgs joins positional args with spaces so multi-word questions work with or
// without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// workspaceCounts counts documents per resolved workspace.
func workspaceCounts(docs []models.DocumentRef, resolve func(string) string) map[string]int {
	counts := make(map[string]int)
	for _, d := range docs {
		counts[resolve(d.ID)]++
	}
	return counts
}

func fail(prefix string, err error) {
	fmt.Fprintf(os.Stderr, "Failed to %s: %v\n", prefix, err)
	os.Exit(1)
}

func printUsage() {
	fmt.Print(`DocIQ - ask questions about your documents

Usage:
  dociq [chat] [flags]                 Interactive terminal client (default)
  dociq ask [flags] <question>         Ask once and print the answer with citations
  dociq docs [flags]                   List documents of a workspace
  dociq upload [flags] <file>...       Upload PDF or text files
  dociq upload -url <url> [flags]      Ingest a document from a URL
  dociq upload -list                   Show uploads made from this machine
  dociq preview [flags] <file>         Show pages, words and chunks of a local file
  dociq watch [flags] [dir]...         Upload new files dropped into folders
  dociq workspace list                 List workspaces with document counts
  dociq workspace create <name>        Create a workspace
  dociq workspace tag <docId> <name>   Move a document into a workspace
  dociq workspace resolve <docId>      Print the workspace of a document
  dociq drive status|connect|sync      Google Drive link
  dociq drive claim <tempKey>          Finish the Drive connection
  dociq drive disconnect               Forget the Drive link on this machine
  dociq serve [flags]                  Run the local bridge server and background sync
  dociq status [flags]                 Show bridge server status
  dociq version                        Print version

Common flags:
  -config string   config file path (default ~/.config/dociq/config.yaml, ./config.yaml wins)
  -output string   text, compact or json
  -debug           verbose logging

Environment:
  DOCIQ_API_TOKEN  bearer token for the answer backend
  DOCIQ_API_URL    backend base URL
`)
}
