package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./podsync.db" {
			t.Errorf("expected database path ./podsync.db, got %s", config.Database.Path)
		}
		if config.Device.PollAttempts != 30 {
			t.Errorf("expected 30 poll attempts, got %d", config.Device.PollAttempts)
		}
		if config.Device.PollInterval.Duration != time.Second {
			t.Errorf("expected poll interval 1s, got %v", config.Device.PollInterval)
		}
		if config.Sync.ChannelPause.Duration != time.Second {
			t.Errorf("expected channel pause 1s, got %v", config.Sync.ChannelPause)
		}
		if !config.Sync.SyncPlayedEpisodes {
			t.Error("expected sync_played_episodes to default to true")
		}
		if len(config.Media.Transcode) == 0 {
			t.Error("expected default transcode extensions")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[filesystem]
destination = "/mnt/usb"
channel_subfolders = false

[device]
mount = "/mnt/ipod"
poll_interval = "250ms"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Filesystem.Destination != "/mnt/usb" || config.Filesystem.ChannelSubfolders {
			t.Errorf("unexpected filesystem config: %+v", config.Filesystem)
		}
		if config.Device.PollInterval.Duration != 250*time.Millisecond {
			t.Errorf("expected poll interval 250ms, got %v", config.Device.PollInterval)
		}
		if config.Device.PollAttempts != 30 {
			t.Errorf("missing keys should keep defaults, got poll_attempts=%d", config.Device.PollAttempts)
		}
	})

	t.Run("channel pause below one second", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[sync]\nchannel_pause = \"500ms\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[sync]\nchannel_pause = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})
}
