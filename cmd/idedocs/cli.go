package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/cron"
	"github.com/fwojciec/idedocs/ingest"
	"github.com/fwojciec/idedocs/validate"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Tools         idedocs.ToolService
	Chunks        idedocs.ChunkService
	Statuses      idedocs.IngestService
	Manifests     idedocs.ManifestService
	Conversations idedocs.ConversationService
	Sitemaps      idedocs.SitemapService

	Ingester  *ingest.Ingester
	Browser   func() (idedocs.Fetcher, error) // launches a headless browser fetcher
	Detector  idedocs.FormatDetector
	Asker     idedocs.Asker
	Validator *validate.Job
	Scheduler *cron.Scheduler

	// Serve starts the HTTP API on addr. It returns the bound address and
	// a function stopping the server.
	Serve func(addr string) (bound string, stop func() error, err error)
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	DB     string          `help:"Database path" env:"IDEDOCS_DB" type:"path"`
	Config kong.ConfigFlag `help:"TOML configuration file" type:"path"`

	Provider          string `enum:"gemini,openai,anthropic" default:"gemini" help:"Chat provider (${enum})"`
	EmbeddingProvider string `enum:"gemini,openai" default:"gemini" help:"Embedding provider (${enum})"`
	Model             string `help:"Chat model, empty for the provider default"`

	GeminiAPIKey    string `name:"gemini-api-key" env:"GEMINI_API_KEY" help:"Gemini API key"`
	OpenAIAPIKey    string `name:"openai-api-key" env:"OPENAI_API_KEY" help:"OpenAI API key"`
	AnthropicAPIKey string `name:"anthropic-api-key" env:"ANTHROPIC_API_KEY" help:"Anthropic API key"`

	Verbose bool `short:"v" help:"Log debug output"`

	Add      AddCmd      `cmd:"" help:"Register a tool and its documentation URLs"`
	List     ListCmd     `cmd:"" help:"List registered tools"`
	Delete   DeleteCmd   `cmd:"" help:"Delete a tool and its documentation"`
	Ingest   IngestCmd   `cmd:"" help:"Crawl, chunk and embed a tool's documentation"`
	Ask      AskCmd      `cmd:"" help:"Ask a question about a tool's documentation"`
	Detect   DetectCmd   `cmd:"" help:"Detect the preferred prompt format of a tool"`
	Manifest ManifestCmd `cmd:"" help:"Print the manifest of a tool"`
	Validate ValidateCmd `cmd:"" help:"Re-detect formats and refresh stale manifests"`
	Serve    ServeCmd    `cmd:"" help:"Serve the chat and manifest API"`
}

// AddCmd is the "add" subcommand.
type AddCmd struct {
	Name    string   `arg:"" help:"Tool name"`
	URLs    []string `arg:"" name:"url" help:"Seed documentation URLs"`
	Pattern []string `short:"p" help:"Only follow URLs matching regex (repeatable)"`
	Version string   `help:"Documentation version"`
	Preview bool     `help:"List sitemap URLs of the first seed without adding the tool"`
	Force   bool     `short:"f" help:"Replace an existing tool with the same name"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct{}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	Name  string `arg:"" help:"Tool name or ID"`
	Force bool   `help:"Confirm deletion"`
}

// IngestCmd is the "ingest" subcommand.
type IngestCmd struct {
	Name string `arg:"" help:"Tool name or ID"`

	MaxDepth     int           `default:"3" help:"Maximum link depth from the seeds"`
	MaxPages     int           `default:"500" help:"Maximum pages fetched"`
	RateLimit    time.Duration `default:"500ms" help:"Minimum interval between requests to a host"`
	Timeout      time.Duration `default:"30s" help:"Timeout of a single fetch"`
	Retries      int           `default:"3" help:"Retries of a failed fetch"`
	Concurrency  int           `short:"c" default:"4" help:"Concurrent fetches"`
	IgnoreRobots bool          `help:"Do not honor robots.txt"`
	Sitemap      bool          `help:"Also crawl URLs listed in sitemaps"`
	Browser      string        `enum:"never,always,auto" default:"never" help:"Render pages in a headless browser (${enum})"`
	Chrome       string        `type:"path" env:"IDEDOCS_CHROME" help:"Chrome binary for --browser; found or downloaded when empty"`
	Mirror       string        `type:"path" help:"Also write fetched pages as markdown below this directory"`

	ChunkTokens   int `default:"512" help:"Maximum tokens per chunk"`
	OverlapTokens int `default:"64" help:"Tokens shared by consecutive chunks of a section"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Name         string `arg:"" help:"Tool name or ID"`
	Question     string `arg:"" help:"Question to ask about the documentation"`
	Conversation string `help:"Conversation ID to continue"`
	Sources      bool   `short:"s" help:"Print cited sources"`
}

// DetectCmd is the "detect" subcommand.
type DetectCmd struct {
	Name string `arg:"" help:"Tool name or ID"`
}

// ManifestCmd is the "manifest" subcommand.
type ManifestCmd struct {
	Name string `arg:"" help:"Tool name or ID"`
}

// ValidateCmd is the "validate" subcommand.
type ValidateCmd struct {
	Schedule string `help:"Cron schedule; run until interrupted instead of once"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr     string `default:"localhost:8080" help:"Listen address"`
	Validate string `help:"Cron schedule of background manifest validation"`
}
