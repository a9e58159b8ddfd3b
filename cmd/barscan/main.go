package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/wolfeng/barscan/internal/decoder"
	"github.com/wolfeng/barscan/internal/enrichment"
	"github.com/wolfeng/barscan/internal/scan"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// options holds the parsed command line
type options struct {
	dbPath        string
	storeType     string
	compress      bool
	cameraPath    string
	fps           int
	scanRegion    string
	identifier    string
	geminiKey     string
	geminiModel   string
	ollamaURL     string
	ollamaModel   string
	enrichTimeout time.Duration
	cacheMB       int
	cacheTTL      time.Duration
	addr          string
	copyText      bool
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Credentials may live in a .env file next to the binary
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	flags := ff.NewFlagSet("barscan")
	var (
		opts        options
		showVersion = flags.BoolLong("version", "Show version information")
	)
	flags.StringVar(&opts.dbPath, 0, "db", "barscan.db", "History database path (a directory when --store=dir)")
	flags.StringVar(&opts.storeType, 0, "store", "bolt", "History store: 'bolt' or 'dir'")
	flags.BoolVar(&opts.compress, 0, "compress", "Write the history zstd-compressed")
	flags.StringVar(&opts.cameraPath, 0, "camera", "./frames", "Camera source: an image, PDF or directory of frames")
	flags.IntVar(&opts.fps, 0, "fps", 10, "Frames decoded per second")
	flags.StringVar(&opts.scanRegion, 0, "scan-region", "300x150", "Scan box size in pixels, WIDTHxHEIGHT")
	flags.StringVar(&opts.identifier, 0, "identifier", "gemini", "Product identifier: 'gemini' or 'ollama'")
	flags.StringVar(&opts.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	flags.StringVar(&opts.geminiModel, 0, "gemini-model", "gemini-2.5-flash", "Google Gemini model name")
	flags.StringVar(&opts.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	flags.StringVar(&opts.ollamaModel, 0, "ollama-model", "llama3.1", "Ollama model name")
	flags.DurationVar(&opts.enrichTimeout, 0, "enrich-timeout", 30*time.Second, "Give up on a product lookup after this long (0 waits forever)")
	flags.IntVar(&opts.cacheMB, 0, "cache-mb", 16, "Product lookup cache size in MB (0 disables)")
	flags.DurationVar(&opts.cacheTTL, 0, "cache-ttl", 24*time.Hour, "Product lookup cache entry lifetime")
	flags.StringVar(&opts.addr, 0, "addr", "localhost:8080", "Listen address for serve")
	flags.BoolVar(&opts.copyText, 0, "copy", "Copy the decoded text to the clipboard (show)")

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("BARSCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	args := flags.GetArgs()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "usage: barscan [flags] scan|history|show <id>|serve\n")
		os.Exit(1)
	}

	if err := run(opts, args[0], args[1:]); err != nil {
		slog.Error("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(opts options, command string, args []string) error {
	// Initialize history store
	slog.Debug("Initializing history store...", "store", opts.storeType, "path", opts.dbPath)
	kv, err := openKV(opts.storeType, opts.dbPath)
	if err != nil {
		return err
	}
	store, err := scan.NewHistoryStore(kv, opts.compress)
	if err != nil {
		kv.Close()
		return err
	}
	defer store.Close()

	switch command {
	case "history":
		return scan.RenderHistory(os.Stdout, store.Load(), time.Local)
	case "show":
		if len(args) != 1 {
			return errors.New("show needs exactly one scan id")
		}
		return showScan(store.Load(), args[0], opts.copyText)
	case "scan", "serve":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	metrics := scan.NewMetrics()
	client, err := newEnrichmentClient(opts, metrics)
	if err != nil {
		return err
	}
	defer client.Close()

	service := scan.NewService(client, store.Load(), scan.Config{EnrichTimeout: opts.enrichTimeout}, metrics)
	service.Subscribe(store.Observe)
	if n := service.ResumePending(); n > 0 {
		slog.Info("Resumed product lookups", "count", n)
	}

	dec, err := newDecoder(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "scan" {
		return scanOnce(ctx, service, dec)
	}
	return serve(ctx, service, dec, metrics, opts.addr)
}

func openKV(storeType, path string) (scan.KV, error) {
	switch storeType {
	case "bolt":
		return scan.NewBoltKV(path)
	case "dir":
		return scan.NewDirKV(path)
	default:
		return nil, fmt.Errorf("invalid store type %q, want bolt or dir", storeType)
	}
}

func newEnrichmentClient(opts options, recorder enrichment.Recorder) (*enrichment.Client, error) {
	var identifier enrichment.Identifier
	switch opts.identifier {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := opts.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required, set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini identifier...", "model", opts.geminiModel)
		gemini, err := enrichment.NewGemini(apiKey, opts.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		identifier = gemini
	case "ollama":
		slog.Info("Initializing Ollama identifier...", "url", opts.ollamaURL, "model", opts.ollamaModel)
		ollama, err := enrichment.NewOllama(opts.ollamaURL, opts.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		identifier = ollama
	default:
		return nil, fmt.Errorf("invalid identifier %q, want gemini or ollama", opts.identifier)
	}

	return enrichment.NewClient(identifier, enrichment.NewCache(opts.cacheMB, opts.cacheTTL), recorder), nil
}

func newDecoder(opts options) (*decoder.Decoder, error) {
	cfg := decoder.DefaultConfig()
	cfg.FPS = opts.fps
	if _, err := fmt.Sscanf(opts.scanRegion, "%dx%d", &cfg.Region.Width, &cfg.Region.Height); err != nil {
		return nil, fmt.Errorf("parsing scan region %q: %w", opts.scanRegion, err)
	}
	return decoder.New(decoder.NewFileCamera(opts.cameraPath), decoder.NewZXing, cfg), nil
}
