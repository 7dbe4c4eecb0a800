package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/alanpac24/Vibebusiness/internal/agents"
	"github.com/alanpac24/Vibebusiness/internal/auth"
	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/config"
	"github.com/alanpac24/Vibebusiness/internal/logging"
	"github.com/alanpac24/Vibebusiness/internal/render"
	"github.com/alanpac24/Vibebusiness/internal/server"
	"github.com/alanpac24/Vibebusiness/internal/session"
	"github.com/alanpac24/Vibebusiness/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vibebusiness",
		Short:        "Business planning agents over MCP",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "Path to config.yaml (default <data-dir>/config.yaml if present)")
	pf.String("data-dir", "", "Directory for the SQLite database and logs")
	pf.String("db-driver", "", "SQLite driver: sqlite3 (ncruces) or sqlite (modernc)")
	pf.String("catalog", "", "Agent catalog YAML (default built-in)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(), newStatusCmd(), newCatalogCmd(), newTokenCmd())
	return root
}

// loadConfig reads file and environment settings, then applies flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return config.Config{}, err
	}
	overrides := map[string]*string{
		"data-dir":  &cfg.DataDir,
		"db-driver": &cfg.DBDriver,
		"catalog":   &cfg.Catalog,
		"log-level": &cfg.Log.Level,
		"transport": &cfg.Transport,
		"http-addr": &cfg.HTTPAddr,
		"user":      &cfg.DefaultUser,
	}
	for name, dst := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	return cfg, nil
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Catalog)
}

// app is everything a command needs to reach the sessions.
type app struct {
	cfg    config.Config
	store  *storage.Store
	deps   server.Deps
	closer func()
}

func openRuntime(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lg, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		DataDir: cfg.DataDir,
	})
	if err != nil {
		return nil, err
	}
	logger := lg.Logger

	c, err := loadCatalog(cfg)
	if err != nil {
		lg.Close()
		return nil, err
	}
	reg, err := agents.DefaultRegistry(c, agents.WithLogger(logger))
	if err != nil {
		lg.Close()
		return nil, err
	}
	store, err := storage.Open(cfg.DataDir, storage.WithDriver(cfg.DBDriver))
	if err != nil {
		lg.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	logger.Info("runtime ready", "data_dir", cfg.DataDir, "driver", store.Driver(), "agents", c.Len())
	return &app{
		cfg:   cfg,
		store: store,
		deps: server.Deps{
			Catalog:  c,
			Store:    store,
			Sessions: session.NewManager(store, c, reg, logger),
			Logger:   logger,
		},
		closer: func() {
			store.Close()
			lg.Close()
		},
	}, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.closer()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			switch rt.cfg.Transport {
			case config.TransportStdio:
				return serveStdio(ctx, rt)
			default:
				return serveHTTP(ctx, rt)
			}
		},
	}
	cmd.Flags().String("transport", "", "Transport mode: stdio or http")
	cmd.Flags().String("http-addr", "", "HTTP listen address (only used with --transport http)")
	cmd.Flags().String("user", "", "User id for the stdio transport")
	return cmd
}

func serveStdio(ctx context.Context, rt *app) error {
	logger := rt.deps.Logger
	srv := server.New(rt.deps, rt.cfg.DefaultUser)
	logger.Info("server starting", "transport", "stdio", "user", rt.cfg.DefaultUser)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func serveHTTP(ctx context.Context, rt *app) error {
	logger := rt.deps.Logger
	expiry, err := rt.cfg.Expiry()
	if err != nil {
		return err
	}
	authSvc, err := auth.New(rt.cfg.JWTSecret, expiry)
	if err != nil {
		return err
	}

	pool := server.NewPool(rt.deps)
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return pool.Get(auth.UserFromContext(r.Context()))
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", authSvc.Middleware(handler))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	httpSrv := &http.Server{
		Addr:              rt.cfg.HTTPAddr,
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "transport", "http", "addr", rt.cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("http server", "error", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("server stopping")
	return httpSrv.Shutdown(shutdownCtx)
}

// statusRecorder keeps the response code for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"authorization", logging.RedactValue(r.Header.Get("Authorization")),
		)
	})
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the agent board for a user's active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.closer()

			ctx := cmd.Context()
			sess, err := rt.deps.Sessions.Open(ctx, rt.cfg.DefaultUser)
			if err != nil {
				return err
			}
			proj, err := sess.Project(ctx)
			if err != nil {
				return err
			}
			ui, err := sess.UIState(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Board(rt.deps.Catalog, proj, ui))
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id (default from config)")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the agent catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check a catalog for unknown references and dependency cycles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Catalog = args[0]
			}
			c, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			source := cfg.Catalog
			if source == "" {
				source = "built-in"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s ok: %d agents in %d categories\n",
				source, c.Len(), len(c.Categories()))
			return nil
		},
	})
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if s, _ := cmd.Flags().GetString("expiry"); s != "" {
				cfg.TokenExpiry = s
			}
			expiry, err := cfg.Expiry()
			if err != nil {
				return err
			}
			authSvc, err := auth.New(cfg.JWTSecret, expiry)
			if err != nil {
				return err
			}
			tok, err := authSvc.GenerateToken(cfg.DefaultUser)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id the token identifies (default from config)")
	cmd.Flags().String("expiry", "", "Token lifetime, e.g. 24h")
	return cmd
}
