package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/feedbackd/internal/api"
	"github.com/kalambet/feedbackd/internal/chartkind"
	"github.com/kalambet/feedbackd/internal/config"
	"github.com/kalambet/feedbackd/internal/engine"
	"github.com/kalambet/feedbackd/internal/ollama"
	"github.com/kalambet/feedbackd/internal/sentiment"
	"github.com/kalambet/feedbackd/internal/storage"
	"github.com/kalambet/feedbackd/internal/trend"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the feedbackd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpStdio)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show feedbackd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// services bundles everything the HTTP and MCP surfaces share.
type services struct {
	store     *storage.Store
	responder *sentiment.Responder
	trends    *trend.Service
}

// buildServices opens storage and wires the optional LLM into the sentiment
// and chart-kind paths. A nil engine leaves both on their rule-based paths.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	eng, err := engine.Detect(engine.DetectConfig{
		Provider:      cfg.LLM.Provider,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIKey:     cfg.OpenAI.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting llm provider: %w", err)
	}

	model := cfg.LLM.Model
	if model == "" {
		model = engine.DefaultModel(cfg.LLM.Provider)
	}

	var chatter engine.Chatter
	if eng != nil {
		if oe, ok := eng.(*engine.OllamaEngine); ok {
			// Non-fatal: rule-based paths take over until Ollama responds.
			if err := ollama.EnsureReady(ctx, oe.Client(), model, os.Stderr); err != nil {
				slog.Warn("ollama not ready", "error", err)
			}
		}
		eng = engine.WithBreaker(eng, engine.DefaultBreakerConfig(), slog.Default())
		chatter = eng
		slog.Info("llm enabled", "provider", eng.Name(), "model", model)
	} else {
		slog.Info("llm disabled, using rule-based sentiment and chart selection")
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	return &services{
		store:     store,
		responder: sentiment.New(store, chatter, model, cfg.LLM.Timeout),
		trends:    trend.NewService(store, chartkind.New(chatter, model, cfg.LLM.Timeout)),
	}, nil
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "feedbackd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	if cfg.Server.APIToken == "" {
		slog.Warn("server.api_token is not set, API is unauthenticated")
	}

	handler := api.NewHandler(api.Deps{
		Responder: svc.responder,
		Reviews:   svc.store,
		Trends:    svc.trends,
		Token:     cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Responder: svc.responder,
			Reviews:   svc.store,
			Trends:    svc.trends,
			Version:   version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "feedbackd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)

	running := false
	if resp, err := client.Get(serverURL + "/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	model := cfg.LLM.Model
	if model == "" {
		model = engine.DefaultModel(cfg.LLM.Provider)
	}
	switch cfg.LLM.Provider {
	case engine.ProviderOllama:
		if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("LLM", "ollama at %s (%s)", cfg.Ollama.BaseURL, model)
		} else {
			printStatus("LLM", "ollama not running at %s, rules only", cfg.Ollama.BaseURL)
		}
	case engine.ProviderOpenAI:
		printStatus("LLM", "openai (%s)", model)
	default:
		printStatus("LLM", "disabled, rules only")
	}

	if running {
		c := &apiClient{
			baseURL:    serverURL,
			token:      cfg.Server.APIToken,
			httpClient: client,
		}
		if err := showReviewCounts(ctx, c); err != nil {
			printStatus("Reviews", "unavailable (%v)", err)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// showReviewCounts prints the per-label totals of the default window.
func showReviewCounts(ctx context.Context, c *apiClient) error {
	resp, err := c.get(ctx, "/reviews/counts")
	if err != nil {
		return err
	}
	var counts api.ReviewCounts
	if err := decodeJSON(resp, &counts); err != nil {
		return err
	}
	printStatus("Reviews", "%d in the last %d days (%s)", counts.Total, counts.Days, formatCounts(counts.Counts))
	return nil
}
