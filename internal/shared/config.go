package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Log        LogConfig        `toml:"log"`
	Sync       SyncConfig       `toml:"sync"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	Device     DeviceConfig     `toml:"device"`
	Media      MediaConfig      `toml:"media"`
}

// DatabaseConfig contains local library database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls log level and the optional rotated log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// SyncConfig holds settings shared by every sync target.
type SyncConfig struct {
	MarkPlayedOnSync   bool     `toml:"mark_played_on_sync"`
	SyncPlayedEpisodes bool     `toml:"sync_played_episodes"`
	ChannelPause       Duration `toml:"channel_pause"`
}

// FilesystemConfig describes a mounted folder used as a sync target.
type FilesystemConfig struct {
	Destination       string `toml:"destination"`
	ChannelSubfolders bool   `toml:"channel_subfolders"`
}

// DeviceConfig describes a portable player with an on-device database.
type DeviceConfig struct {
	Mount        string   `toml:"mount"`
	PollAttempts int      `toml:"poll_attempts"`
	PollInterval Duration `toml:"poll_interval"`
}

// MediaConfig points at external media tools.
type MediaConfig struct {
	FFmpegPath  string   `toml:"ffmpeg_path"`
	FFprobePath string   `toml:"ffprobe_path"`
	Transcode   []string `toml:"transcode"`
	Bitrate     string   `toml:"bitrate"`
}

// Duration wraps [time.Duration] so it can be written as "1s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// MinChannelPause is the shortest pause allowed after each synced channel.
const MinChannelPause = time.Second

// Validate rejects settings the sync engine cannot honour.
func (c *Config) Validate() error {
	if c.Sync.ChannelPause.Duration < MinChannelPause {
		return fmt.Errorf("%w: sync.channel_pause must be at least %s, got %s",
			ErrInvalidConfig, MinChannelPause, c.Sync.ChannelPause.Duration)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
