package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"storeops/internal/planner"
)

// Config models storeops.yml.
type Config struct {
	Stores   []string       `yaml:"stores" json:"stores"`
	Ordering OrderingConfig `yaml:"ordering" json:"ordering"`
	Relay    RelayConfig    `yaml:"relay" json:"relay"`
}

type OrderingConfig struct {
	DefaultDeliveryDay string `yaml:"default_delivery_day" json:"default_delivery_day"`
	RequireSchedules   bool   `yaml:"require_schedules" json:"require_schedules"`
}

type RelayConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
	NATS     NATSConfig      `yaml:"nats" json:"nats"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret" json:"secret,omitempty"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

type NATSConfig struct {
	URL           string   `yaml:"url" json:"url,omitempty"`
	SubjectPrefix string   `yaml:"subject_prefix" json:"subject_prefix,omitempty"`
	Events        []string `yaml:"events" json:"events,omitempty"`
}

// Policy returns the planner policy for this config.
func (c *Config) Policy() planner.Policy {
	return planner.Policy{
		DefaultDeliveryDay: c.Ordering.DefaultDeliveryDay,
		RequireSchedules:   c.Ordering.RequireSchedules,
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Stores) == 0 {
		return fmt.Errorf("config.stores must list at least one store")
	}
	seen := map[string]bool{}
	for i, s := range c.Stores {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("config.stores[%d] is empty", i)
		}
		if seen[s] {
			return fmt.Errorf("config.stores lists %q twice", s)
		}
		seen[s] = true
	}
	if d := c.Ordering.DefaultDeliveryDay; d != "" {
		if _, err := planner.ParseWeekday(d); err != nil {
			return fmt.Errorf("config.ordering.default_delivery_day: %w", err)
		}
	}
	for i, hook := range c.Relay.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(hook.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.relay.webhooks[%d].url must be an http(s) URL", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.relay.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	if strings.ContainsAny(c.Relay.NATS.SubjectPrefix, " \t*>") {
		return fmt.Errorf("config.relay.nats.subject_prefix contains invalid subject characters")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "storeops.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with so config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `# Stores in the order the all-stores view walks them.
stores:
  - London Bridge
  - Canary Wharf
  - Shoreditch
  - Covent Garden
  - King's Cross

ordering:
  # Used for supplier/store pairs without a delivery schedule.
  default_delivery_day: Monday
  require_schedules: false

relay:
  webhooks: []
  nats:
    url: ""
    subject_prefix: storeops
`
