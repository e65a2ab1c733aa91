package refwatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go"

	"github.com/c360studio/trackref/config"
	"github.com/c360studio/trackref/resolve"
	"github.com/c360studio/trackref/verify"
)

// refWatcherSchema defines the configuration schema.
var refWatcherSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// inboundBuffer bounds messages waiting for the handler.
const inboundBuffer = 256

// SnapshotSource supplies the configuration view for one message.
// *config.Store implements it.
type SnapshotSource interface {
	Snapshot() (resolve.Snapshot, error)
}

// Component implements the ref-watcher processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	// snapshots and handler are built in Start unless attached beforehand
	snapshots SnapshotSource
	handler   *Handler

	// Lifecycle management
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	sub       *nats.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Metrics
	messagesHandled  atomic.Int64
	repliesPublished atomic.Int64
	errors           atomic.Int64
	lastActivityMu   sync.RWMutex
	lastActivity     time.Time
}

// NewComponent creates a new ref-watcher processor component.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	// Start from defaults so unset fields keep them
	cfg := DefaultConfig()
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := deps.GetLogger()
	if logger == nil {
		logger = slog.Default()
	}

	return &Component{
		name:       "ref-watcher",
		config:     cfg,
		natsClient: deps.NATSClient,
		logger:     logger,
	}, nil
}

// SetSnapshotSource attaches the live configuration. It must be called
// before Start; without it Start loads config_path itself.
func (c *Component) SetSnapshotSource(src SnapshotSource) {
	c.mu.Lock()
	c.snapshots = src
	c.mu.Unlock()
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	return nil
}

// Start subscribes to the inbound subject and begins handling messages.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		return fmt.Errorf("NATS client required")
	}
	conn := c.natsClient.GetConnection()
	if conn == nil {
		return fmt.Errorf("NATS client not connected")
	}

	if c.snapshots == nil {
		store, err := c.loadStore()
		if err != nil {
			return fmt.Errorf("load tracker config: %w", err)
		}
		c.snapshots = store
	}
	if c.handler == nil {
		coordinator := resolve.NewCoordinator(verify.NewVerifier(verify.NewFetcher(nil), c.logger), c.logger)
		c.handler = NewHandler(coordinator, c.config.BotNick, c.logger)
	}

	msgs := make(chan *nats.Msg, inboundBuffer)
	var (
		sub *nats.Subscription
		err error
	)
	if c.config.QueueGroup != "" {
		sub, err = conn.ChanQueueSubscribe(c.config.InboundSubject, c.config.QueueGroup, msgs)
	} else {
		sub, err = conn.ChanSubscribe(c.config.InboundSubject, msgs)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.config.InboundSubject, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.sub = sub
	c.cancel = cancel
	c.running = true
	c.startTime = time.Now()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeMessages(runCtx, msgs)
	}()

	c.logger.Info("Ref watcher started",
		"subject", c.config.InboundSubject,
		"queue_group", c.config.QueueGroup,
		"reply_subject", c.config.ReplySubject)

	return nil
}

// loadStore reads config_path (or the layered config files) into a store
// that reloads from the same place.
func (c *Component) loadStore() (*config.Store, error) {
	loader := config.NewLoader(c.config.ConfigPath, c.logger)
	cfg, _, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return config.NewStore(cfg, func() (*config.Config, error) {
		cfg, _, err := loader.Load()
		return cfg, err
	}, c.logger), nil
}

// consumeMessages handles inbound messages one at a time until ctx ends.
func (c *Component) consumeMessages(ctx context.Context, msgs <-chan *nats.Msg) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			c.handleMessage(ctx, msg.Data)
		}
	}
}

// handleMessage processes a single chat message.
func (c *Component) handleMessage(ctx context.Context, data []byte) {
	c.updateLastActivity()

	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Failed to parse chat message", "error", err)
		c.errors.Add(1)
		return
	}
	if err := msg.Validate(); err != nil {
		c.logger.Warn("Invalid chat message", "id", msg.ID, "error", err)
		c.errors.Add(1)
		return
	}

	snap, err := c.snapshots.Snapshot()
	if err != nil {
		c.logger.Error("Failed to load config snapshot", "error", err)
		c.errors.Add(1)
		return
	}

	c.messagesHandled.Add(1)
	lines := c.handler.Handle(ctx, &msg, snap)

	for _, line := range lines {
		if err := c.publishReply(ctx, NewReply(&msg, line)); err != nil {
			c.logger.Error("Failed to publish reply", "in_reply_to", msg.ID, "error", err)
			c.errors.Add(1)
			return
		}
		c.repliesPublished.Add(1)
	}

	if len(lines) > 0 {
		c.logger.Debug("Replied to chat message",
			"id", msg.ID,
			"channel", msg.Channel,
			"lines", len(lines))
	}
}

// publishReply marshals and publishes one reply line.
func (c *Component) publishReply(ctx context.Context, reply *Reply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	return c.natsClient.Publish(ctx, c.config.ReplySubject, data)
}

// updateLastActivity safely updates the last activity timestamp.
func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

// getLastActivity safely retrieves the last activity timestamp.
func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

// Stop gracefully stops the component within the given timeout. A message
// being handled has its context cancelled.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	sub := c.sub
	c.mu.Unlock()

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("stop timed out after %v", timeout)
	}

	if sub != nil && sub.IsValid() {
		if uerr := sub.Unsubscribe(); uerr != nil && err == nil {
			err = fmt.Errorf("unsubscribe: %w", uerr)
		}
	}

	c.mu.Lock()
	c.running = false
	c.sub = nil
	c.mu.Unlock()

	c.logger.Info("Ref watcher stopped",
		"messages_handled", c.messagesHandled.Load(),
		"replies_published", c.repliesPublished.Load(),
		"errors", c.errors.Load())

	return err
}

// IsRunning reports whether the component is consuming messages.
func (c *Component) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Discoverable interface implementation

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "ref-watcher",
		Type:        "processor",
		Description: "Redmine reference resolver for chat messages",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = buildPort(portDef, component.DirectionInput)
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = buildPort(portDef, component.DirectionOutput)
	}
	return ports
}

// buildPort creates a component.Port from a PortDefinition.
func buildPort(portDef component.PortDefinition, direction component.Direction) component.Port {
	return component.Port{
		Name:        portDef.Name,
		Direction:   direction,
		Required:    portDef.Required,
		Description: portDef.Description,
		Config: component.NATSPort{
			Subject: portDef.Subject,
		},
	}
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return refWatcherSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	var uptime time.Duration
	if running {
		uptime = time.Since(startTime)
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errors.Load()),
		Uptime:     uptime,
		Status:     c.getStatusString(running),
	}
}

// getStatusString returns a status string based on running state.
func (c *Component) getStatusString(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

// Stats returns the message and reply counts since creation.
func (c *Component) Stats() (messages, replies int64) {
	return c.messagesHandled.Load(), c.repliesPublished.Load()
}
