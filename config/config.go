// Package config provides configuration loading and management for trackref.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	semconfig "github.com/c360studio/semstreams/config"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/trackref/channelmap"
	"github.com/c360studio/trackref/reference"
	"github.com/c360studio/trackref/resolve"
	"github.com/c360studio/trackref/verify"
)

// Config represents the complete trackref configuration
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Bot     BotConfig     `yaml:"bot"`

	// explicit holds the boolean keys a config layer sets. Nil for configs
	// that were not read by readLayer.
	explicit *explicitKeys
}

// explicitKeys tells an explicit false apart from an omitted key.
type explicitKeys struct {
	Tracker struct {
		HTTPS     *bool `yaml:"https"`
		BasicAuth *bool `yaml:"basic_auth"`
	} `yaml:"tracker"`
	NATS struct {
		Embedded *bool `yaml:"embedded"`
	} `yaml:"nats"`
}

func readExplicitKeys(data []byte) (*explicitKeys, error) {
	var keys explicitKeys
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	return &keys, nil
}

// TrackerConfig configures how references are resolved and verified
type TrackerConfig struct {
	// ChannelMap lists "#channel:http://tracker.example.com" entries. The
	// first entry for a channel wins. Base URLs take no trailing slash.
	ChannelMap []string `yaml:"channel_map"`
	// HTTPS fetches pages over https on port 443 instead of http on port 80
	HTTPS bool `yaml:"https"`
	// BasicAuth sends BasicAuthUsername/BasicAuthPassword with every fetch
	BasicAuth         bool   `yaml:"basic_auth"`
	BasicAuthUsername string `yaml:"basic_auth_username"`
	BasicAuthPassword string `yaml:"basic_auth_password"`
	// FetchTimeout bounds each page fetch (e.g. "10s")
	FetchTimeout string `yaml:"fetch_timeout"`
	// MaxContentSize is the largest page body accepted, in bytes
	MaxContentSize int64  `yaml:"max_content_size"`
	UserAgent      string `yaml:"user_agent"`
	// RevisionProject is the repository slug in revision URLs
	RevisionProject string `yaml:"revision_project"`
	// RevisionProjects overrides RevisionProject per channel
	RevisionProjects map[string]string `yaml:"revision_projects"`
	// Selectors maps a reference kind (ticket, revision, wiki) to the CSS
	// selector of its title. An empty selector only checks the page exists.
	Selectors map[string]string `yaml:"selectors"`
}

// NATSConfig configures the chat transport connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
	// EmbeddedPort is the client port of the embedded server (-1 = random)
	EmbeddedPort int `yaml:"embedded_port"`
	// InboundSubject carries chat messages from the chat gateway
	InboundSubject string `yaml:"inbound_subject"`
	// ReplySubject receives reply lines for the chat gateway to post
	ReplySubject string `yaml:"reply_subject"`
	// QueueGroup lets several trackref instances share the inbound subject
	QueueGroup string `yaml:"queue_group"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// BotConfig configures the chat-facing side
type BotConfig struct {
	// Nick is the bot's own nick, used in help text
	Nick string `yaml:"nick"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			FetchTimeout:    "10s",
			MaxContentSize:  2 * 1024 * 1024,
			UserAgent:       "trackref/1.0",
			RevisionProject: resolve.DefaultRevisionProject,
			Selectors: map[string]string{
				"ticket":   "h2.summary",
				"revision": "#searchable p",
				"wiki":     "",
			},
		},
		NATS: NATSConfig{
			URL:            "",
			Embedded:       true,
			EmbeddedPort:   4222,
			InboundSubject: "chat.message.in",
			ReplySubject:   "chat.message.out",
			QueueGroup:     "trackref",
		},
		Metrics: MetricsConfig{
			Addr: ":9108",
		},
		Bot: BotConfig{
			Nick: "trackref",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := channelmap.Validate(c.Tracker.ChannelMap); err != nil {
		return fmt.Errorf("tracker.%w", err)
	}
	if c.Tracker.FetchTimeout != "" {
		d, err := time.ParseDuration(c.Tracker.FetchTimeout)
		if err != nil {
			return fmt.Errorf("tracker.fetch_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("tracker.fetch_timeout must be positive")
		}
	}
	if c.Tracker.MaxContentSize < 0 {
		return fmt.Errorf("tracker.max_content_size must be non-negative")
	}
	if c.Tracker.BasicAuth && c.Tracker.BasicAuthUsername == "" {
		return fmt.Errorf("tracker.basic_auth_username is required when basic_auth is enabled")
	}
	rules, err := c.Tracker.Rules()
	if err != nil {
		return fmt.Errorf("tracker.selectors: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("tracker.selectors: %w", err)
	}
	if !c.NATS.Embedded && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.embedded is false")
	}
	if c.NATS.EmbeddedPort < -1 || c.NATS.EmbeddedPort > 65535 {
		return fmt.Errorf("nats.embedded_port must be -1 or a valid port")
	}
	if c.NATS.InboundSubject == "" {
		return fmt.Errorf("nats.inbound_subject is required")
	}
	if c.NATS.ReplySubject == "" {
		return fmt.Errorf("nats.reply_subject is required")
	}
	return nil
}

// parseDurationOrDefault parses a duration string and returns the default if empty or invalid.
func parseDurationOrDefault(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// GetFetchTimeout returns the fetch timeout as a duration.
func (t *TrackerConfig) GetFetchTimeout() time.Duration {
	return parseDurationOrDefault(t.FetchTimeout, 10*time.Second)
}

// HTTPConfig returns the fetch settings for the verifier.
func (t *TrackerConfig) HTTPConfig() verify.HTTPConfig {
	return verify.HTTPConfig{
		UseHTTPS:       t.HTTPS,
		UseBasicAuth:   t.BasicAuth,
		Username:       t.BasicAuthUsername,
		Password:       t.BasicAuthPassword,
		Timeout:        t.GetFetchTimeout(),
		MaxContentSize: t.MaxContentSize,
		UserAgent:      t.UserAgent,
	}
}

// Rules returns the title rules: the defaults overridden by Selectors.
func (t *TrackerConfig) Rules() (verify.Rules, error) {
	rules := verify.DefaultRules()
	for name, selector := range t.Selectors {
		kind, err := reference.ParseKind(name)
		if err != nil {
			return nil, err
		}
		rules[kind] = strings.TrimSpace(selector)
	}
	return rules, nil
}

// Snapshot builds the immutable view one resolution runs against.
func (c *Config) Snapshot() (resolve.Snapshot, error) {
	rules, err := c.Tracker.Rules()
	if err != nil {
		return resolve.Snapshot{}, fmt.Errorf("tracker.selectors: %w", err)
	}
	return resolve.Snapshot{
		ChannelMap:       slices.Clone(channelmap.Mapping(c.Tracker.ChannelMap)),
		HTTP:             c.Tracker.HTTPConfig(),
		Rules:            rules,
		RevisionProject:  c.Tracker.RevisionProject,
		RevisionProjects: maps.Clone(c.Tracker.RevisionProjects),
	}, nil
}

// LoadFromFile loads configuration from a YAML file. ${VAR} and
// ${VAR:-default} references are expanded from the environment first.
// Setting nats.url without nats.embedded selects the external server.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := []byte(ExpandEnvWithDefaults(string(data)))

	config := DefaultConfig()
	if err := yaml.Unmarshal(expanded, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	keys, err := readExplicitKeys(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.NATS.URL != "" && keys.NATS.Embedded == nil {
		config.NATS.Embedded = false
	}

	return config, nil
}

var envReference = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*(?::-[^}]*)?\}`)

// ExpandEnvWithDefaults expands ${VAR} and ${VAR:-default}. Every other "$",
// such as "$VAR" or "$$" inside a password, is kept as written.
func ExpandEnvWithDefaults(s string) string {
	return envReference.ReplaceAllStringFunc(s, semconfig.ExpandEnvWithDefaults)
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may carry a Basic auth password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Booleans only turn on, unless other came from a config
// layer that sets them explicitly, in which case an explicit false wins too.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Tracker
	t, o := &c.Tracker, &other.Tracker
	if len(o.ChannelMap) > 0 {
		t.ChannelMap = slices.Clone(o.ChannelMap)
	}
	keys := other.explicit
	if keys == nil {
		keys = &explicitKeys{}
	}
	mergeBool(&t.HTTPS, o.HTTPS, keys.Tracker.HTTPS)
	mergeBool(&t.BasicAuth, o.BasicAuth, keys.Tracker.BasicAuth)
	if o.BasicAuthUsername != "" {
		t.BasicAuthUsername = o.BasicAuthUsername
	}
	if o.BasicAuthPassword != "" {
		t.BasicAuthPassword = o.BasicAuthPassword
	}
	if o.FetchTimeout != "" {
		t.FetchTimeout = o.FetchTimeout
	}
	if o.MaxContentSize != 0 {
		t.MaxContentSize = o.MaxContentSize
	}
	if o.UserAgent != "" {
		t.UserAgent = o.UserAgent
	}
	if o.RevisionProject != "" {
		t.RevisionProject = o.RevisionProject
	}
	if len(o.RevisionProjects) > 0 {
		if t.RevisionProjects == nil {
			t.RevisionProjects = make(map[string]string)
		}
		maps.Copy(t.RevisionProjects, o.RevisionProjects)
	}
	if len(o.Selectors) > 0 {
		if t.Selectors == nil {
			t.Selectors = make(map[string]string)
		}
		maps.Copy(t.Selectors, o.Selectors)
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if keys.NATS.Embedded != nil {
		c.NATS.Embedded = *keys.NATS.Embedded
	}
	if other.NATS.EmbeddedPort != 0 {
		c.NATS.EmbeddedPort = other.NATS.EmbeddedPort
	}
	if other.NATS.InboundSubject != "" {
		c.NATS.InboundSubject = other.NATS.InboundSubject
	}
	if other.NATS.ReplySubject != "" {
		c.NATS.ReplySubject = other.NATS.ReplySubject
	}
	if other.NATS.QueueGroup != "" {
		c.NATS.QueueGroup = other.NATS.QueueGroup
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Bot
	if other.Bot.Nick != "" {
		c.Bot.Nick = other.Bot.Nick
	}
}

func mergeBool(dst *bool, value bool, explicit *bool) {
	switch {
	case explicit != nil:
		*dst = *explicit
	case value:
		*dst = true
	}
}
