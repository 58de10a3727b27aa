package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/scenariokit/harness/internal/domain/fault"
)

// Env reads process environment variables. lookup is swappable for tests.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

// MapEnv serves variables from a fixed map instead of the process.
func MapEnv(vars map[string]string) *Env {
	return &Env{lookup: func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}}
}

func (e *Env) Get(name string) string {
	v, _ := e.lookup(name)
	return v
}

func (e *Env) GetDefault(name, def string) string {
	if v, ok := e.lookup(name); ok {
		return v
	}
	return def
}

// GetRequired fails when name is unset. An empty value is accepted.
func (e *Env) GetRequired(name string) (string, error) {
	v, ok := e.lookup(name)
	if !ok {
		return "", &fault.ConfigMissing{Key: name, Source: "env"}
	}
	return v, nil
}

// GetNotEmpty fails when name is unset or blank.
func (e *Env) GetNotEmpty(name string) (string, error) {
	v, ok := e.lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &fault.ConfigMissing{Key: name, Source: "env"}
	}
	return v, nil
}

// LoadDotEnv merges a .env file into the process environment. Variables that
// are already set keep their values. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
