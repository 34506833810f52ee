// Package config loads larder settings from a CUE file unified with an
// embedded schema that supplies defaults and rejects unknown keys.
//
// Example larder.cue:
//
//	remote: base_url: "https://recipes.example.com"
//	view: sort: "last_updated"
//	sync: interval: "10m"
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "larder.cue"

// Config is the resolved configuration.
type Config struct {
	Remote RemoteConfig
	Store  StoreConfig
	View   ViewConfig
	Sync   SyncConfig
}

// RemoteConfig controls the recipe service client.
type RemoteConfig struct {
	BaseURL string
	Path    string
	Timeout time.Duration
}

// StoreConfig locates the database.
type StoreConfig struct {
	Path string
}

// ViewConfig holds presentation defaults.
type ViewConfig struct {
	Sort            string
	PlaceholderRows int
}

// SyncConfig controls scheduled syncing.
type SyncConfig struct {
	Interval         time.Duration
	RetryAttempts    int
	RejectConcurrent bool
	TriggerEvery     time.Duration
}

// raw mirrors #Config for cue.Value.Decode.
type raw struct {
	Remote struct {
		BaseURL string `json:"base_url"`
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"remote"`
	Store struct {
		Path string `json:"path"`
	} `json:"store"`
	View struct {
		Sort            string `json:"sort"`
		PlaceholderRows int    `json:"placeholder_rows"`
	} `json:"view"`
	Sync struct {
		Interval         string `json:"interval"`
		RetryAttempts    int    `json:"retry_attempts"`
		RejectConcurrent bool   `json:"reject_concurrent"`
		TriggerEvery     string `json:"trigger_every"`
	} `json:"sync"`
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := Parse(nil, "")
	if err != nil {
		// The embedded schema is fixed at build time.
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// LoadFile reads path, which must exist.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse unifies CUE source with the schema. nil data yields the defaults.
// filename is used in error positions.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	value := schema.LookupPath(cue.ParsePath("#Config"))

	if data != nil {
		user := ctx.CompileBytes(data, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return Config{}, fmt.Errorf("parse %s: %s", filename, details(err))
		}
		value = value.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %s", filename, details(err))
	}

	var r raw
	if err := value.Decode(&r); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return r.resolve()
}

func (r raw) resolve() (Config, error) {
	timeout, err := time.ParseDuration(r.Remote.Timeout)
	if err != nil {
		return Config{}, fmt.Errorf("remote.timeout: %w", err)
	}
	interval, err := time.ParseDuration(r.Sync.Interval)
	if err != nil {
		return Config{}, fmt.Errorf("sync.interval: %w", err)
	}
	triggerEvery, err := time.ParseDuration(r.Sync.TriggerEvery)
	if err != nil {
		return Config{}, fmt.Errorf("sync.trigger_every: %w", err)
	}

	return Config{
		Remote: RemoteConfig{
			BaseURL: r.Remote.BaseURL,
			Path:    r.Remote.Path,
			Timeout: timeout,
		},
		Store: StoreConfig{Path: r.Store.Path},
		View: ViewConfig{
			Sort:            r.View.Sort,
			PlaceholderRows: r.View.PlaceholderRows,
		},
		Sync: SyncConfig{
			Interval:         interval,
			RetryAttempts:    r.Sync.RetryAttempts,
			RejectConcurrent: r.Sync.RejectConcurrent,
			TriggerEvery:     triggerEvery,
		},
	}, nil
}

// details flattens a CUE error list, one position-prefixed line per error.
func details(err error) string {
	return cueerrors.Details(err, nil)
}
