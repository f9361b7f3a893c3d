package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kalambet/peerfuse/internal/api"
	"github.com/kalambet/peerfuse/internal/assist"
	"github.com/kalambet/peerfuse/internal/config"
	"github.com/kalambet/peerfuse/internal/engine"
	"github.com/kalambet/peerfuse/internal/identity"
	"github.com/kalambet/peerfuse/internal/profile"
	"github.com/kalambet/peerfuse/internal/realtime"
	"github.com/kalambet/peerfuse/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the peerfuse server (foreground)",
	Long: `Start the peerfuse server in the foreground.

With --mcp the tools are served over MCP on stdin/stdout instead of HTTP,
acting as the user named by --user or by the saved sign-in token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")
		user, _ := cmd.Flags().GetString("user")
		return runServer(mcpMode, user)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running peerfuse server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show peerfuse system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	startCmd.Flags().String("user", "", "user the MCP tools act as (default: signed-in user)")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "peerfuse.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// backends holds the shared services behind both the HTTP and MCP surfaces.
type backends struct {
	store     *storage.Store
	rdb       *redis.Client
	remote    *realtime.Store
	directory *profile.Manager
	identity  *identity.Service
	assistant *assist.Assistant
}

func (b *backends) Close() {
	if b.rdb != nil {
		b.rdb.Close()
	}
	if err := b.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	b := &backends{store: store}

	// The shared store is optional; without it the local database serves
	// every read and write.
	rdb, err := realtime.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		slog.Warn("shared store unavailable, using the local store only", "error", err)
	}
	var remote profile.Source
	if rdb != nil {
		b.rdb = rdb
		b.remote = realtime.New(rdb, "")
		remote = b.remote
	}
	b.directory = profile.NewManagerWithClock(storage.NewProfileSource(store), remote, profile.SystemClock{}, cfg.Matching.SnapshotTTL)

	b.identity, err = identity.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("initializing identity: %w", err)
	}

	b.assistant = newAssistant(ctx, cfg)
	return b, nil
}

// newAssistant connects the study assistant. A missing or unreachable
// backend leaves the assistant disabled; matching keeps working.
func newAssistant(ctx context.Context, cfg config.Config) *assist.Assistant {
	opts := assist.Options{
		Model:    cfg.Model(),
		Timeout:  cfg.Assist.Timeout,
		CacheTTL: cfg.Assist.CacheTTL,
	}
	eng, err := engine.Detect(engine.DetectConfig{
		Provider:      cfg.Engine.Provider,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		GeminiAPIKey:  cfg.Gemini.APIKey,
	})
	if err != nil {
		slog.Warn("study assistant disabled", "error", err)
		return assist.New(nil, opts)
	}
	if err := engine.EnsureReady(ctx, eng, opts.Model, os.Stderr); err != nil {
		slog.Warn("study assistant disabled", "error", err)
		return assist.New(nil, opts)
	}
	return assist.New(eng, opts)
}

func runServer(mcpMode bool, user string) error {
	fmt.Fprintf(os.Stderr, "peerfuse version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mcpMode {
		return runMCP(ctx, cfg, user)
	}

	// Check if a server is already running via the health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("peerfuse is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("peerfuse is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	handler := api.NewHandler(api.Deps{
		Store:     b.store,
		Directory: b.directory,
		Remote:    b.remote,
		Identity:  b.identity,
		Assistant: b.assistant,
		TopN:      cfg.Matching.TopN,
		Origins:   cfg.Server.AllowedOrigins,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "peerfuse listening on %s\n", addr)
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

func runMCP(ctx context.Context, cfg config.Config, user string) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if user == "" {
		if tok := config.SessionToken(); tok != "" {
			if u, err := b.identity.Verify(tok); err == nil {
				user = u
			} else {
				slog.Warn("saved sign-in token rejected", "error", err)
			}
		}
	}
	if user == "" {
		slog.Warn("no MCP user configured; profile tools will be unavailable")
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Directory: b.directory,
		Assistant: b.assistant,
		TopN:      cfg.Matching.TopN,
		User:      user,
	})
	slog.Info("MCP server started (stdio transport)", "user", user)
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("peerfuse is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop peerfuse (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to peerfuse (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health struct {
			Assistant bool   `json:"assistant"`
			Remote    string `json:"remote"`
		}
		json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
			printStatus("Assistant", "%s", onOff(health.Assistant))
			if health.Remote != "" {
				printStatus("Shared store", "%s", health.Remote)
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	provider := cfg.Engine.Provider
	if provider == "" {
		provider = "auto"
	}
	printStatus("Provider", "%s", provider)
	printStatus("Model", "%s", cfg.Model())

	if running {
		usersResp, err := client.Get(serverURL + "/users")
		if err == nil {
			var users struct {
				Count int `json:"count"`
			}
			if json.NewDecoder(usersResp.Body).Decode(&users) == nil {
				printStatus("Users", "%s", countLabel(users.Count, 1000))
			}
			usersResp.Body.Close()
		}
	}

	if tok := config.SessionToken(); tok != "" {
		printStatus("Signed in", "yes")
	} else {
		printStatus("Signed in", "no (guest)")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func onOff(b bool) string {
	if b {
		return "available"
	}
	return "unavailable"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
