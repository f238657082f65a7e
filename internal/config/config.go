// Package config loads ~/.imv/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment overrides, applied after the file.
const (
	EnvChatDB   = "IMV_CHAT_DB"
	EnvLogLevel = "IMV_LOG_LEVEL"
)

// Defaults.
const (
	DefaultProfile          = "main"
	DefaultLogLevel         = "info"
	DefaultChatDB           = "~/Library/Messages/chat.db"
	DefaultThumbnailEntries = 100
	DefaultMessageEntries   = 10
	DefaultMessageTTL       = 5 * time.Minute
	DefaultDateIndexEntries = 20
)

// Config represents the global ~/.imv/config.toml.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	LogLevel       string             `toml:"log_level"`
	Profiles       map[string]Profile `toml:"profiles"`
	Cache          Cache              `toml:"cache"`

	envChatDB string
}

// Profile points a named daemon at one chat.db.
type Profile struct {
	ChatDB          string `toml:"chat_db"`
	AttachmentsRoot string `toml:"attachments_root,omitempty"`
}

// Cache sizes the daemon and client caches.
type Cache struct {
	ThumbnailEntries int      `toml:"thumbnail_entries"`
	MessageEntries   int      `toml:"message_entries"`
	MessageTTL       Duration `toml:"message_ttl"`
	DateIndexEntries int      `toml:"date_index_entries"`
}

// Duration is a time.Duration written as a string such as "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: DefaultProfile,
		LogLevel:       DefaultLogLevel,
		Profiles: map[string]Profile{
			DefaultProfile: {ChatDB: DefaultChatDB},
		},
		Cache: Cache{
			ThumbnailEntries: DefaultThumbnailEntries,
			MessageEntries:   DefaultMessageEntries,
			MessageTTL:       Duration{DefaultMessageTTL},
			DateIndexEntries: DefaultDateIndexEntries,
		},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.Profiles = nil
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fill()
	return cfg, nil
}

// LoadOrDefault reads path, falling back to Default when it does not exist.
// Environment overrides are applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) fill() {
	d := Default()
	if c.DefaultProfile == "" {
		c.DefaultProfile = d.DefaultProfile
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Profiles == nil {
		c.Profiles = map[string]Profile{}
	}
	if c.Cache.ThumbnailEntries <= 0 {
		c.Cache.ThumbnailEntries = d.Cache.ThumbnailEntries
	}
	if c.Cache.MessageEntries <= 0 {
		c.Cache.MessageEntries = d.Cache.MessageEntries
	}
	if c.Cache.MessageTTL.Duration <= 0 {
		c.Cache.MessageTTL = d.Cache.MessageTTL
	}
	if c.Cache.DateIndexEntries <= 0 {
		c.Cache.DateIndexEntries = d.Cache.DateIndexEntries
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvChatDB); v != "" {
		c.envChatDB = v
	}
}

// Profile returns the settings for name with defaults and overrides applied
// and paths expanded. Unknown names get the default chat.db location.
func (c *Config) Profile(name string) Profile {
	p, ok := c.Profiles[name]
	if !ok || p.ChatDB == "" {
		p.ChatDB = DefaultChatDB
	}
	if c.envChatDB != "" {
		p.ChatDB = c.envChatDB
	}
	p.ChatDB = ExpandHome(p.ChatDB)
	p.AttachmentsRoot = ExpandHome(p.AttachmentsRoot)
	return p
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
