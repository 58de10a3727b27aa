// Package config loads harness settings from a YAML or TOML file and exposes
// them as flat dotted keys, alongside access to the process environment.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scenariokit/harness/internal/domain/fault"
)

// Well-known keys.
const (
	KeyScriptFolder       = "script.folder"
	KeyDataDir            = "data.dir"
	KeyHTTPTimeout        = "http.timeout"
	KeyMaxBodyLogSize     = "http.max_body_log_size"
	KeyInsecureSkipVerify = "http.insecure_skip_verify"
	KeyScenarioTimeout    = "scenario.timeout"
	KeyMockHost           = "mock.host"
	KeyControlPort        = "control.port"
)

// Settings is the typed view of the well-known keys.
type Settings struct {
	ScriptFolder       string        `json:"script_folder"`
	DataDir            string        `json:"data_dir"`
	HTTPTimeout        time.Duration `json:"http_timeout"`
	MaxBodyLogSize     int           `json:"max_body_log_size"`
	InsecureSkipVerify bool          `json:"insecure_skip_verify"`
	ScenarioTimeout    time.Duration `json:"scenario_timeout"`
	MockHost           string        `json:"mock_host"`
	ControlPort        int           `json:"control_port"`
}

// DefaultSettings returns the values used when a key is absent.
func DefaultSettings() Settings {
	return Settings{
		ScriptFolder:    "scripts",
		DataDir:         "data",
		HTTPTimeout:     30 * time.Second,
		MaxBodyLogSize:  1024,
		ScenarioTimeout: 5 * time.Minute,
		MockHost:        "127.0.0.1",
		ControlPort:     6300,
	}
}

// Config is a flat key/value view of the configuration file.
type Config struct {
	mu     sync.RWMutex
	values map[string]string
}

// New returns a Config holding a copy of values.
func New(values map[string]string) *Config {
	c := &Config{values: make(map[string]string, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Get returns the value for key or "" when absent.
func (c *Config) Get(key string) string {
	v, _ := c.Lookup(key)
	return v
}

func (c *Config) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *Config) GetDefault(key, def string) string {
	if v, ok := c.Lookup(key); ok {
		return v
	}
	return def
}

// Require returns the value for key or a *fault.ConfigMissing.
func (c *Config) Require(key string) (string, error) {
	if v, ok := c.Lookup(key); ok && v != "" {
		return v, nil
	}
	return "", &fault.ConfigMissing{Key: key, Source: "config"}
}

// Set overrides key, as command-line flags do.
func (c *Config) Set(key, value string) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Settings resolves the well-known keys, falling back to DefaultSettings for
// anything absent. Malformed values are errors rather than silent defaults.
func (c *Config) Settings() (Settings, error) {
	s := DefaultSettings()
	var err error

	if v, ok := c.Lookup(KeyScriptFolder); ok && v != "" {
		s.ScriptFolder = v
	}
	if v, ok := c.Lookup(KeyDataDir); ok && v != "" {
		s.DataDir = v
	}
	if v, ok := c.Lookup(KeyMockHost); ok && v != "" {
		s.MockHost = v
	}
	if v, ok := c.Lookup(KeyHTTPTimeout); ok {
		if s.HTTPTimeout, err = parseDuration(KeyHTTPTimeout, v); err != nil {
			return Settings{}, err
		}
	}
	if v, ok := c.Lookup(KeyScenarioTimeout); ok {
		if s.ScenarioTimeout, err = parseDuration(KeyScenarioTimeout, v); err != nil {
			return Settings{}, err
		}
	}
	if v, ok := c.Lookup(KeyMaxBodyLogSize); ok {
		if s.MaxBodyLogSize, err = parseInt(KeyMaxBodyLogSize, v); err != nil {
			return Settings{}, err
		}
	}
	if v, ok := c.Lookup(KeyControlPort); ok {
		if s.ControlPort, err = parseInt(KeyControlPort, v); err != nil {
			return Settings{}, err
		}
	}
	if v, ok := c.Lookup(KeyInsecureSkipVerify); ok {
		b, perr := strconv.ParseBool(strings.TrimSpace(v))
		if perr != nil {
			return Settings{}, fmt.Errorf("%s: %w", KeyInsecureSkipVerify, perr)
		}
		s.InsecureSkipVerify = b
	}
	return s, nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(key, v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseInt(key, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
