package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bledden/tinker-voice/internal/api"
	"github.com/bledden/tinker-voice/internal/infra/sqlite"
	"github.com/bledden/tinker-voice/internal/orchestrator"
	"github.com/bledden/tinker-voice/internal/tinker"
)

// Daemon is the tinkerd runtime. It wires the provider client, run store,
// orchestrator and HTTP API together.
type Daemon struct {
	Config Config
	Log    *zap.Logger
	Store  *sqlite.Store
	Client tinker.Client
	Orch   *orchestrator.Orchestrator
	Server *api.Server

	cancel context.CancelFunc
}

// New creates a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	store, err := sqlite.Open(cfg.Store.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	// Without an API key (or when forced) the daemon runs against the
	// in-memory mock provider, so the whole surface works offline.
	var client tinker.Client
	if cfg.Tinker.Mock || cfg.Tinker.APIKey == "" {
		if !cfg.Tinker.Mock {
			log.Warn("no API key configured, using mock provider")
		}
		client = tinker.NewMock()
	} else {
		baseURL := cfg.Tinker.BaseURL
		if baseURL == "" {
			baseURL = tinker.DefaultBaseURL
		}
		client = tinker.NewHTTPClient(baseURL, cfg.Tinker.APIKey)
	}

	orchCfg := orchestrator.Config{
		PollInterval: time.Duration(cfg.Tinker.PollIntervalSeconds) * time.Second,
	}
	orch, err := orchestrator.New(orchCfg, client, store, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	srv := api.NewServer(orch, client, log)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config: cfg,
		Log:    log,
		Store:  store,
		Client: client,
		Orch:   orch,
		Server: srv,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Reconcile with the provider so runs that were mid-flight at last
	// shutdown resume polling. Best effort: the provider may be down.
	refreshCtx, refreshCancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := d.Orch.RefreshRuns(refreshCtx); err != nil {
		d.Log.Warn("initial refresh failed", zap.Error(err))
	}
	refreshCancel()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long for the event stream
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		d.Orch.Close()
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Store.Close()
	}()

	d.Log.Info("tinkerd serving", zap.String("addr", addr))
	fmt.Printf("tinkerd serving on http://%s\n", addr)
	if d.Config.API.Metrics {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Orch != nil {
		d.Orch.Close()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
}

// newLogger builds the daemon's zap logger from config. An empty file sends
// logs to stderr.
func newLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
	}
	return zcfg.Build()
}
