package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Store handles persistence of harness configuration to a YAML or TOML file.
type Store struct {
	path string
}

// NewStore creates a new config store. The format follows the extension:
// .toml is TOML, anything else is YAML.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the file and flattens nested tables into dotted keys. A missing
// file yields an empty Config, which still answers Settings() with defaults.
func (s *Store) Load() (*Config, error) {
	cfg := New(nil)
	if s.path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var tree map[string]any
	if s.isTOML() {
		err = toml.Unmarshal(data, &tree)
	} else {
		err = yaml.Unmarshal(data, &tree)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	flatten("", tree, cfg.values)
	return cfg, nil
}

// Save writes cfg back as nested YAML.
func (s *Store) Save(cfg *Config) error {
	tree := map[string]any{}
	for _, k := range cfg.Keys() {
		v, _ := cfg.Lookup(k)
		node := tree
		parts := strings.Split(k, ".")
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}

	bytes, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, bytes, 0644)
}

func (s *Store) isTOML() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".toml")
}

func flatten(prefix string, node any, out map[string]string) {
	switch t := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(join(prefix, k), t[k], out)
		}
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, fmt.Sprint(item))
		}
		out[prefix] = strings.Join(items, ",")
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprint(t)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
