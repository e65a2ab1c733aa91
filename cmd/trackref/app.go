package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats-server/v2/server"

	"github.com/c360studio/trackref/config"
	"github.com/c360studio/trackref/metrics"
	refwatcher "github.com/c360studio/trackref/processor/ref-watcher"
)

// natsConnectTimeout bounds the wait for the first NATS connection.
const natsConnectTimeout = 10 * time.Second

// App is the main application that wires together all components.
type App struct {
	store   *config.Store
	sources []string
	logger  *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsClient     *natsclient.Client

	registry  *component.Registry
	watcher   *config.Watcher
	component *refwatcher.Component

	httpServer   *http.Server
	httpListener net.Listener
}

// NewApp creates a new application instance. sources are the config files
// to watch for changes.
func NewApp(store *config.Store, sources []string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{store: store, sources: sources, logger: logger}
}

// Start initializes and starts all components. Subjects, the NATS
// connection and the metrics address are read once here; everything the
// resolver uses is re-read per message.
func (a *App) Start(ctx context.Context) error {
	cfg := a.store.Load()

	// Start NATS (embedded or connect to external)
	if err := a.startNATS(ctx, cfg.NATS); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	if len(a.sources) > 0 {
		watcher, err := config.NewWatcher(a.store, config.WatcherConfig{
			Paths:  a.sources,
			Logger: a.logger,
		})
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			_ = watcher.Stop()
			return fmt.Errorf("start config watcher: %w", err)
		}
		a.watcher = watcher
	}

	a.registry = component.NewRegistry()
	if err := refwatcher.Register(a.registry); err != nil {
		return fmt.Errorf("register ref-watcher: %w", err)
	}

	rawConfig, err := json.Marshal(refwatcher.Config{
		Ports:          refwatcher.DefaultConfig().Ports,
		InboundSubject: cfg.NATS.InboundSubject,
		ReplySubject:   cfg.NATS.ReplySubject,
		QueueGroup:     cfg.NATS.QueueGroup,
		BotNick:        cfg.Bot.Nick,
	})
	if err != nil {
		return fmt.Errorf("marshal ref-watcher config: %w", err)
	}
	discoverable, err := refwatcher.NewComponent(rawConfig, component.Dependencies{
		NATSClient: a.natsClient,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("create ref-watcher: %w", err)
	}
	refWatcher, ok := discoverable.(*refwatcher.Component)
	if !ok {
		return fmt.Errorf("ref-watcher factory returned %T", discoverable)
	}
	refWatcher.SetSnapshotSource(a.store)
	if err := refWatcher.Initialize(); err != nil {
		return fmt.Errorf("initialize ref-watcher: %w", err)
	}
	if err := refWatcher.Start(ctx); err != nil {
		return fmt.Errorf("start ref-watcher: %w", err)
	}
	a.component = refWatcher

	if cfg.Metrics.Addr != "" {
		if err := a.startHTTP(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	return nil
}

func (a *App) startNATS(ctx context.Context, cfg config.NATSConfig) error {
	url := cfg.URL
	if cfg.Embedded || url == "" {
		port := cfg.EmbeddedPort
		if port == 0 {
			port = -1
		}
		ns, err := server.NewServer(&server.Options{
			Port:   port,
			NoLog:  true,
			NoSigs: true,
		})
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns
		a.logger.Info("Embedded NATS server started", "url", ns.ClientURL())
		url = ns.ClientURL()
	}

	a.logger.Info("Connecting to NATS", "url", url)
	client, err := natsclient.NewClient(url,
		natsclient.WithName("trackref"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	connCtx, cancel := context.WithTimeout(ctx, natsConnectTimeout)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(context.Background())
		return fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	a.natsClient = client
	return nil
}

func (a *App) startHTTP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", a.handleHealth)

	a.httpListener = ln
	a.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()

	a.logger.Info("Metrics server listening", "addr", ln.Addr().String())
	return nil
}

// handleHealth reports the ref-watcher health as JSON.
func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := a.component.Health()
	w.Header().Set("Content-Type", "application/json")
	if !health.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(health)
}

// NATSURL returns the URL of the connected NATS server.
func (a *App) NATSURL() string {
	if a.natsClient == nil {
		return ""
	}
	conn := a.natsClient.GetConnection()
	if conn == nil {
		return ""
	}
	return conn.ConnectedUrl()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	a.logger.Info("Shutting down")

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown", "error", err)
		}
		cancel()
	}

	if a.component != nil {
		if err := a.component.Stop(timeout); err != nil {
			a.logger.Warn("Ref-watcher stop", "error", err)
		}
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Config watcher stop", "error", err)
		}
	}

	// Close NATS connection
	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.natsClient.Close(ctx); err != nil {
			a.logger.Warn("NATS close", "error", err)
		}
		cancel()
	}

	// Shutdown embedded server
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	a.logger.Info("Shutdown complete")
}
