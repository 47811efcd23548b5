package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/anthropic"
	"github.com/fwojciec/idedocs/chat"
	"github.com/fwojciec/idedocs/crawl"
	"github.com/fwojciec/idedocs/cron"
	"github.com/fwojciec/idedocs/embed"
	"github.com/fwojciec/idedocs/format"
	"github.com/fwojciec/idedocs/gemini"
	"github.com/fwojciec/idedocs/goquery"
	"github.com/fwojciec/idedocs/htmltomarkdown"
	idedocshttp "github.com/fwojciec/idedocs/http"
	"github.com/fwojciec/idedocs/ingest"
	"github.com/fwojciec/idedocs/manifest"
	"github.com/fwojciec/idedocs/openai"
	"github.com/fwojciec/idedocs/rag"
	"github.com/fwojciec/idedocs/rod"
	idslog "github.com/fwojciec/idedocs/slog"
	"github.com/fwojciec/idedocs/sqlite"
	"github.com/fwojciec/idedocs/toml"
	"github.com/fwojciec/idedocs/trafilatura"
	"github.com/fwojciec/idedocs/validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path, used unless --db or IDEDOCS_DB is set.
	DBPath string

	// ConfigPath is read for flag defaults when it exists.
	ConfigPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Closers are released by Close in reverse order.
	closers []io.Closer
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath:     defaultDBPath(),
		ConfigPath: defaultConfigPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	for i := len(m.closers) - 1; i >= 0; i-- {
		_ = m.closers[i].Close()
	}
	m.closers = nil
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("idedocs"),
		kong.Description("Ingest IDE and coding tool documentation and answer questions about it."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Configuration(toml.Loader, m.ConfigPath),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'idedocs --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	deps.Logger = logger

	dbPath := m.DBPath
	if cli.DB != "" {
		dbPath = cli.DB
	}
	m.DB = sqlite.NewDB(dbPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set IDEDOCS_DB or --db to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", dbPath, err)
	}
	defer m.Close()

	deps.Tools = sqlite.NewToolService(m.DB)
	deps.Chunks = sqlite.NewChunkService(m.DB)
	deps.Statuses = sqlite.NewIngestService(m.DB)
	deps.Manifests = sqlite.NewManifestService(m.DB)
	deps.Conversations = sqlite.NewConversationService(m.DB)
	deps.Sitemaps = idslog.NewLoggingSitemapService(idedocshttp.NewSitemapService(nil), logger)

	p := &providers{cli: cli, ctx: ctx, stderr: stderr, logger: logger}

	switch cmd {
	case "ingest", "detect", "validate", "serve", "ask":
		// Format detection falls back to heuristics alone when no chat
		// provider is configured; answering questions cannot.
		completer, err := p.completer()
		if err != nil && (cmd == "ask" || cmd == "serve") {
			return err
		}
		var classifier idedocs.Classifier
		if err == nil {
			classifier = format.NewLLMClassifier(completer)
		} else {
			logger.Warn("format detection limited to heuristics", "err", idedocs.ErrorMessage(err))
		}
		detector := format.NewDetector(classifier)
		detector.Logger = logger
		deps.Detector = idslog.NewLoggingFormatDetector(detector, logger)

		builder := manifest.NewBuilder()
		deps.Validator = validate.NewJob(deps.Tools, deps.Chunks, deps.Manifests, deps.Detector, builder)
		deps.Validator.Logger = logger
		deps.Scheduler = cron.NewScheduler(logger)

		if cmd == "detect" || cmd == "validate" {
			break
		}

		embedder, err := p.embedder()
		if err != nil {
			return err
		}
		embeddings := embed.NewService(embedder, deps.Chunks)
		embeddings.Logger = logger

		if cmd == "ingest" {
			deps.Ingester = m.ingester(deps, cli.Ingest, embeddings, builder)
			break
		}

		responder := chat.NewResponder(completer)
		responder.Logger = logger
		if tokens, err := gemini.NewTokenCounter(gemini.DefaultTokenizerModel); err == nil {
			responder.Tokens = tokens
		} else {
			logger.Debug("token estimation disabled", "err", err)
		}
		asker := chat.NewService(deps.Tools, rag.NewRetriever(embeddings, deps.Chunks), responder, deps.Conversations)
		asker.Logger = logger
		deps.Asker = asker

		deps.Serve = func(addr string) (string, func() error, error) {
			s := idedocshttp.NewServer(deps.Asker, deps.Tools, deps.Manifests, deps.Statuses, logger)
			if err := s.Open(addr); err != nil {
				return "", nil, err
			}
			return s.Addr(), s.Close, nil
		}
	}

	return kongCtx.Run(deps)
}

// ingester wires the crawl pipeline. Fetchers are released by Close.
func (m *Main) ingester(deps *Dependencies, opts IngestCmd, embeddings *embed.Service, builder *manifest.Builder) *ingest.Ingester {
	plain := idslog.NewLoggingFetcher(idedocshttp.NewFetcher(
		idedocshttp.WithTimeout(opts.Timeout),
		idedocshttp.WithUserAgent(userAgent),
	), deps.Logger)
	m.closers = append(m.closers, plain)

	deps.Browser = func() (idedocs.Fetcher, error) {
		fopts := []rod.Option{rod.WithFetchTimeout(opts.Timeout), rod.WithUserAgent(userAgent)}
		if opts.Chrome != "" {
			fopts = append(fopts, rod.WithBrowser(rod.WithBrowserBin(opts.Chrome)))
		}
		f, err := rod.NewFetcher(fopts...)
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: Install Chrome or Chromium, or point --chrome at its binary")
			return nil, err
		}
		logged := idslog.NewLoggingFetcher(f, deps.Logger)
		m.closers = append(m.closers, logged)
		return logged, nil
	}

	return &ingest.Ingester{
		Tools:     deps.Tools,
		Chunks:    deps.Chunks,
		Statuses:  deps.Statuses,
		Manifests: deps.Manifests,
		Crawler: &crawl.Crawler{
			Fetcher:   plain,
			Extractor: trafilatura.NewExtractor(),
			Converter: htmltomarkdown.NewConverter(),
			Links:     goquery.NewLinkExtractor(),
			Sitemaps:  deps.Sitemaps,
			Logger:    deps.Logger,
		},
		Embeddings: embeddings,
		Detector:   deps.Detector,
		Builder:    builder,
		Logger:     deps.Logger,
	}
}

const userAgent = "idedocs (+https://github.com/fwojciec/idedocs)"

// providers builds the configured model clients on first use.
type providers struct {
	cli    *CLI
	ctx    context.Context
	stderr io.Writer
	logger *slog.Logger
}

func (p *providers) completer() (idedocs.Completer, error) {
	var c idedocs.Completer
	switch p.cli.Provider {
	case "openai":
		client, err := openai.NewClient(p.cli.OpenAIAPIKey)
		if err != nil {
			return nil, p.keyHint(err, "OPENAI_API_KEY", "https://platform.openai.com/api-keys")
		}
		c = openai.NewCompleter(client, p.cli.Model)
	case "anthropic":
		client, err := anthropic.NewClient(p.cli.AnthropicAPIKey)
		if err != nil {
			return nil, p.keyHint(err, "ANTHROPIC_API_KEY", "https://console.anthropic.com/settings/keys")
		}
		c = anthropic.NewCompleter(client, p.cli.Model)
	default:
		client, err := gemini.NewClient(p.ctx, p.cli.GeminiAPIKey)
		if err != nil {
			return nil, p.keyHint(err, "GEMINI_API_KEY", "https://aistudio.google.com/apikey")
		}
		c = gemini.NewCompleter(client, p.cli.Model)
	}
	return idslog.NewLoggingCompleter(c, p.logger), nil
}

func (p *providers) embedder() (idedocs.Embedder, error) {
	var e idedocs.Embedder
	switch p.cli.EmbeddingProvider {
	case "openai":
		client, err := openai.NewClient(p.cli.OpenAIAPIKey)
		if err != nil {
			return nil, p.keyHint(err, "OPENAI_API_KEY", "https://platform.openai.com/api-keys")
		}
		e = openai.NewEmbedder(client)
	default:
		client, err := gemini.NewClient(p.ctx, p.cli.GeminiAPIKey)
		if err != nil {
			return nil, p.keyHint(err, "GEMINI_API_KEY", "https://aistudio.google.com/apikey")
		}
		e = gemini.NewEmbedder(client)
	}
	return idslog.NewLoggingEmbedder(e, p.logger), nil
}

func (p *providers) keyHint(err error, env, url string) error {
	if idedocs.ErrorCode(err) == idedocs.ECONFIG {
		fmt.Fprintf(p.stderr, "Hint: Set %s. Get an API key at %s\n", env, url)
	}
	return err
}

func defaultDBPath() string {
	if path := os.Getenv("IDEDOCS_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "idedocs.db"
	}
	dir := filepath.Join(home, ".idedocs")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "idedocs.db")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "idedocs.toml"
	}
	return filepath.Join(home, ".idedocs", "config.toml")
}
