package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/arxiv"
	"github.com/shahryar908/researchy/pkg/cache"
	"github.com/shahryar908/researchy/pkg/config"
	"github.com/shahryar908/researchy/pkg/gemini"
	"github.com/shahryar908/researchy/pkg/history"
	"github.com/shahryar908/researchy/pkg/logging"
	"github.com/shahryar908/researchy/pkg/metrics"
	"github.com/shahryar908/researchy/pkg/papers"
	"github.com/shahryar908/researchy/pkg/readpdf"
	"github.com/shahryar908/researchy/pkg/render"
	"github.com/shahryar908/researchy/pkg/server"
	"github.com/shahryar908/researchy/pkg/storage"
	"github.com/shahryar908/researchy/pkg/telemetry"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Researchy API server",
	Long: `Start the HTTP API server for the research agent.

The server exposes:
  POST /api/chat              Chat with the research agent
  POST /api/chat/stream       Chat with SSE streaming
  POST /api/generate-title    Generate a conversation title
  GET  /api/papers/list       List rendered papers
  GET  /api/papers/download/  Download a rendered paper
  GET  /health                Health check
  GET  /metrics               Prometheus metrics

Examples:
  # Start with defaults (port 8000)
  researchy serve

  # Start on a custom port
  researchy serve --port 9000

  # Start with a config file
  researchy serve --config researchy.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyEnvFallbacks(cfg)
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no Gemini API key configured (set GEMINI_API_KEY or llm.api_key)")
	}

	logger := logging.New(logging.Options{Verbose: viper.GetBool("verbose")})

	ctx := context.Background()
	tracer, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:    cfg.Telemetry.Tracing.Enabled,
		Exporter:   cfg.Telemetry.Tracing.Exporter,
		Endpoint:   cfg.Telemetry.Tracing.Endpoint,
		SampleRate: cfg.Telemetry.Tracing.SampleRate,
		Insecure:   cfg.Telemetry.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	memCache := cache.NewMemoryCache(cache.DefaultConfig())

	model, err := gemini.NewClient(gemini.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	// Titles use a smaller model at low temperature.
	titleModel, err := gemini.NewClient(gemini.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.TitleModel,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: 0.3,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating title model client: %w", err)
	}

	arxivClient := arxiv.NewClient(arxiv.Config{
		BaseURL:    cfg.Arxiv.BaseURL,
		Timeout:    cfg.Arxiv.Timeout,
		MaxResults: cfg.Arxiv.MaxResults,
		CacheTTL:   cfg.Arxiv.CacheTTL,
		Cache:      memCache,
		Logger:     logger,
	})

	pdfReader := readpdf.NewReader(cfg.Arxiv.Timeout)

	var loader *history.Loader
	if cfg.History.BackendURL != "" {
		loader, err = history.NewLoader(history.Config{
			BackendURL: cfg.History.BackendURL,
			Timeout:    cfg.History.Timeout,
			CacheTTL:   cfg.History.CacheTTL,
			Cache:      memCache,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("creating history loader: %w", err)
		}
	} else {
		logger.Warn("no backend URL configured, conversation history disabled")
	}

	var store *storage.Client
	if cfg.Storage.URL != "" {
		store, err = storage.NewClient(storage.Config{
			URL:        cfg.Storage.URL,
			ServiceKey: cfg.Storage.ServiceKey,
			Bucket:     cfg.Storage.Bucket,
		})
		if err != nil {
			return fmt.Errorf("creating storage client: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Warn("could not ensure storage bucket", "error", err)
		}
	} else {
		logger.Warn("no storage configured, rendered papers stay local only")
	}

	index, err := papers.OpenIndex(cfg.Render.IndexPath)
	if err != nil {
		return fmt.Errorf("opening paper index: %w", err)
	}
	defer index.Close()

	m := metrics.New()

	var renderer *render.Renderer
	renderer, err = render.NewRenderer(render.Config{
		OutputDir:    cfg.Render.OutputDir,
		TectonicPath: cfg.Render.TectonicPath,
		BackendURL:   cfg.History.BackendURL,
		Storage:      store,
		Index:        index,
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("LaTeX rendering unavailable", "error", err)
		renderer = nil
	}

	registry := server.BuildRegistry(server.ToolDeps{
		Arxiv:    arxivClient,
		PDF:      pdfReader,
		Renderer: renderer,
		Metrics:  m,
		Tracer:   tracer,
	})

	researchAgent := agent.New(tracer.TraceModel(model, cfg.LLM.Model), registry,
		agent.WithMaxTurns(cfg.LLM.MaxTurns),
		agent.WithLogger(logger),
	)

	paperDirs := append([]string{cfg.Render.OutputDir}, cfg.Papers.ExtraDirs...)

	srv := server.New(server.Config{
		Agent:       researchAgent,
		ModelName:   cfg.LLM.Model,
		TitleModel:  titleModel,
		History:     loader,
		Index:       index,
		PaperDirs:   paperDirs,
		Metrics:     m,
		Tracer:      tracer,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	printServeBanner(cfg, renderer != nil, store != nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			done <- err
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// applyEnvFallbacks fills settings from well-known environment variables
// when the config file leaves them empty.
func applyEnvFallbacks(cfg *config.Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.History.BackendURL == "" {
		cfg.History.BackendURL = os.Getenv("BACKEND_URL")
	}
	if cfg.Storage.URL == "" {
		cfg.Storage.URL = os.Getenv("SUPABASE_URL")
	}
	if cfg.Storage.ServiceKey == "" {
		cfg.Storage.ServiceKey = os.Getenv("SUPABASE_SERVICE_KEY")
	}
}

func printServeBanner(cfg *config.Config, renderOK, storageOK bool) {
	fmt.Println("Researchy API Server")
	fmt.Println("====================")
	fmt.Printf("Version:   %s\n", server.Version)
	fmt.Printf("Address:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Model:     %s\n", cfg.LLM.Model)
	fmt.Printf("Rendering: %s\n", onOff(renderOK))
	fmt.Printf("Storage:   %s\n", onOff(storageOK))
	fmt.Printf("History:   %s\n", onOff(cfg.History.BackendURL != ""))
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  POST /api/chat")
	fmt.Println("  POST /api/chat/stream")
	fmt.Println("  POST /api/generate-title")
	fmt.Println("  GET  /api/papers/list")
	fmt.Println("  GET  /api/papers/download/{filename}")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Println()
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
