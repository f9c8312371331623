package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newChannel(title, url string) *models.Channel {
	return &models.Channel{Title: title, URL: url, SyncToDevices: true}
}

func TestChannelRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := NewChannelRepository(setupTestDB(t))
		ch := newChannel("Show", "http://example.com/feed")

		if err := repo.Create(ch); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if ch.ID == "" || ch.Sequence != 1 {
			t.Fatalf("expected ID and sequence 1, got %q/%d", ch.ID, ch.Sequence)
		}

		got, err := repo.Get(ch.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Title != "Show" || !got.SyncToDevices {
			t.Errorf("unexpected channel: %+v", got)
		}
	})

	t.Run("Create validation", func(t *testing.T) {
		repo := NewChannelRepository(setupTestDB(t))
		err := repo.Create(&models.Channel{URL: "http://x"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Duplicate URL", func(t *testing.T) {
		repo := NewChannelRepository(setupTestDB(t))
		if err := repo.Create(newChannel("A", "http://dup")); err != nil {
			t.Fatal(err)
		}
		if err := repo.Create(newChannel("B", "http://dup")); err == nil {
			t.Error("expected unique constraint error")
		}
	})

	t.Run("List in sequence order with filter", func(t *testing.T) {
		repo := NewChannelRepository(setupTestDB(t))
		a := newChannel("A", "http://a")
		b := newChannel("B", "http://b")
		b.SyncToDevices = false
		c := newChannel("C", "http://c")
		for _, ch := range []*models.Channel{a, b, c} {
			if err := repo.Create(ch); err != nil {
				t.Fatal(err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 || all[0].Title != "A" || all[2].Title != "C" {
			t.Errorf("unexpected order: %v", all)
		}

		syncing, err := repo.List(map[string]any{"sync_to_devices": true})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(syncing) != 2 {
			t.Errorf("expected 2 syncing channels, got %d", len(syncing))
		}
	})

	t.Run("Update and Delete", func(t *testing.T) {
		repo := NewChannelRepository(setupTestDB(t))
		ch := newChannel("Show", "http://s")
		if err := repo.Create(ch); err != nil {
			t.Fatal(err)
		}

		ch.IsMusicChannel = true
		ch.DevicePlaylistName = "Mix"
		if err := repo.Update(ch); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, _ := repo.Get(ch.ID)
		if !got.IsMusicChannel || got.DevicePlaylistName != "Mix" {
			t.Errorf("update not persisted: %+v", got)
		}

		if err := repo.Delete(ch.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.Get(ch.ID); !errors.Is(err, shared.ErrChannelNotFound) {
			t.Errorf("expected ErrChannelNotFound after delete, got %v", err)
		}
		if err := repo.Delete(ch.ID); !errors.Is(err, shared.ErrChannelNotFound) {
			t.Errorf("second delete should fail with ErrChannelNotFound, got %v", err)
		}
	})
}

func TestEpisodeRepository(t *testing.T) {
	setup := func(t *testing.T) (*Library, *models.Channel) {
		lib := NewLibrary(setupTestDB(t))
		ch := newChannel("Show", "http://feed")
		if err := lib.Channels.Create(ch); err != nil {
			t.Fatal(err)
		}
		return lib, ch
	}

	t.Run("MarkPlayed is idempotent", func(t *testing.T) {
		lib, ch := setup(t)
		ep := &models.Episode{ChannelID: ch.ID, Title: "One", URL: "http://feed/1.mp3"}
		if err := lib.Episodes.Create(ep); err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 2; i++ {
			if err := lib.MarkPlayed(ep.URL); err != nil {
				t.Fatalf("MarkPlayed() #%d error = %v", i, err)
			}
		}
		played, err := lib.Episodes.IsPlayed(ep.URL)
		if err != nil || !played {
			t.Errorf("IsPlayed() = %v, %v; want true", played, err)
		}
	})

	t.Run("MarkPlayed unknown url", func(t *testing.T) {
		lib, _ := setup(t)
		if err := lib.MarkPlayed("http://nope"); !errors.Is(err, shared.ErrEpisodeNotFound) {
			t.Errorf("expected ErrEpisodeNotFound, got %v", err)
		}
	})

	t.Run("SetLocalPath", func(t *testing.T) {
		lib, ch := setup(t)
		ep := &models.Episode{ChannelID: ch.ID, Title: "One", URL: "http://feed/1.mp3"}
		if err := lib.Episodes.Create(ep); err != nil {
			t.Fatal(err)
		}
		if err := lib.Episodes.SetLocalPath(ep.ID, "/lib/1.mp3"); err != nil {
			t.Fatalf("SetLocalPath() error = %v", err)
		}
		got, _ := lib.Episodes.Get(ep.ID)
		if !got.IsDownloaded() {
			t.Error("expected episode to be downloaded")
		}
	})

	t.Run("LoadChannels attaches episodes in order", func(t *testing.T) {
		lib, ch := setup(t)
		for _, title := range []string{"One", "Two", "Three"} {
			ep := &models.Episode{ChannelID: ch.ID, Title: title, URL: "http://feed/" + title}
			if err := lib.Episodes.Create(ep); err != nil {
				t.Fatal(err)
			}
		}

		channels, err := lib.LoadChannels()
		if err != nil {
			t.Fatalf("LoadChannels() error = %v", err)
		}
		if len(channels) != 1 || len(channels[0].Episodes) != 3 {
			t.Fatalf("unexpected library shape: %v", channels)
		}
		if channels[0].Episodes[0].Title != "One" || channels[0].Episodes[2].Title != "Three" {
			t.Errorf("episodes out of order: %v", channels[0].Episodes)
		}
	})
}
