// Package config builds the single Config value handed to every
// constructor at startup. Nothing below cmd/ and internal/cli reads the
// environment directly.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/store"
)

const (
	DefaultRoom        = "global"
	DefaultListen      = ":8080"
	DefaultStore       = "bolt"
	DefaultDeleteDelay = 220 * time.Millisecond
	DefaultTheme       = "classic"

	FileName  = "config.yaml"
	envPrefix = "BASKET_"
)

// Stores lists the accepted values of Config.Store.
var Stores = []string{"bolt", "sqlite"}

type Config struct {
	// Client side: where the feed server lives.
	ServerURL string `yaml:"server_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	Room      string `yaml:"room,omitempty"`

	// Server side.
	Listen string `yaml:"listen,omitempty"`
	Store  string `yaml:"store,omitempty"`

	DataDir     string        `yaml:"data_dir,omitempty"`
	DeleteDelay time.Duration `yaml:"delete_delay,omitempty"`
	Theme       string        `yaml:"theme,omitempty"`
	Debug       bool          `yaml:"debug,omitempty"`
}

// DefaultDir is ~/.basket.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".basket"), nil
}

// Defaults returns a Config with every optional field filled in.
func Defaults() *Config {
	dir, err := DefaultDir()
	if err != nil {
		dir = ".basket"
	}
	return &Config{
		Room:        DefaultRoom,
		Listen:      DefaultListen,
		Store:       DefaultStore,
		DataDir:     dir,
		DeleteDelay: DefaultDeleteDelay,
		Theme:       DefaultTheme,
	}
}

// Load layers defaults, the YAML file, a .env file in the working
// directory and BASKET_* environment variables, in that order. An empty
// path means DataDir/config.yaml, which may be absent; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Defaults()
	if dir := os.Getenv(envPrefix + "DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, FileName)
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var file Config
	if err := yaml.Unmarshal(b, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.overlay(file)
	return nil
}

func (c *Config) mergeEnv() error {
	env := Config{
		ServerURL: os.Getenv(envPrefix + "SERVER_URL"),
		APIKey:    os.Getenv(envPrefix + "API_KEY"),
		Room:      os.Getenv(envPrefix + "ROOM"),
		Listen:    os.Getenv(envPrefix + "LISTEN"),
		Store:     os.Getenv(envPrefix + "STORE"),
		DataDir:   os.Getenv(envPrefix + "DATA_DIR"),
		Theme:     os.Getenv(envPrefix + "THEME"),
	}
	if v := os.Getenv(envPrefix + "DELETE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sDELETE_DELAY: %w", envPrefix, err)
		}
		env.DeleteDelay = d
	}
	if v := os.Getenv(envPrefix + "DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", envPrefix, err)
		}
		env.Debug = b
	}
	c.overlay(env)
	return nil
}

// overlay copies the non-zero fields of o onto c.
func (c *Config) overlay(o Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.ServerURL, o.ServerURL)
	set(&c.APIKey, o.APIKey)
	set(&c.Room, o.Room)
	set(&c.Listen, o.Listen)
	set(&c.Store, o.Store)
	set(&c.DataDir, o.DataDir)
	set(&c.Theme, o.Theme)
	if o.DeleteDelay != 0 {
		c.DeleteDelay = o.DeleteDelay
	}
	if o.Debug {
		c.Debug = true
	}
}

// MissingClientParams names the required connection parameters that are
// unset. A client with any missing runs read/write-disabled.
func (c *Config) MissingClientParams() []string {
	var missing []string
	if strings.TrimSpace(c.ServerURL) == "" {
		missing = append(missing, "server_url")
	}
	return missing
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if !store.ValidKey(c.Room) {
		return errs.Validation(fmt.Sprintf("room %q: use 1-64 letters, digits, '-' or '_'", c.Room))
	}
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errs.Validation(fmt.Sprintf("server_url %q: want http(s)://host[:port]", c.ServerURL))
		}
	}
	known := false
	for _, s := range Stores {
		known = known || s == c.Store
	}
	if !known {
		return errs.Validation(fmt.Sprintf("store %q: want one of %v", c.Store, Stores))
	}
	if c.DeleteDelay < 0 {
		return errs.Validation("delete_delay must not be negative")
	}
	return nil
}

// Save writes c as YAML. Owner-only: the file may hold the API key.
func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path is the config file Load reads when given no explicit path.
func (c *Config) Path() string {
	return filepath.Join(c.DataDir, FileName)
}

// Edit applies fn to the file at path alone, without defaults or the
// environment, and writes it back. A missing file starts empty.
func Edit(path string, fn func(*Config)) error {
	var file Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &file); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read config: %w", err)
	}
	fn(&file)
	return Save(path, &file)
}
