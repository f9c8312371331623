package device

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/podsync/internal/shared"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// DatabaseFile is the on-device database location relative to the mount.
const DatabaseFile = ".podsync/device.db"

// SQLiteBinding reads and writes a SQLite database stored on the device itself.
type SQLiteBinding struct{}

// DatabasePath returns where the database lives for a mount.
func DatabasePath(mount string) string {
	return filepath.Join(mount, filepath.FromSlash(DatabaseFile))
}

// Init creates an empty on-device database with the master and podcasts playlists.
// An existing database is left untouched.
func Init(mount string) error {
	dbPath := DatabasePath(mount)
	if _, err := os.Stat(dbPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := openSchema(dbPath)
	if err != nil {
		return err
	}
	s := &sqliteDatabase{MemoryDatabase: NewMemoryDatabase(mount, sqliteFeatures), db: db}
	defer s.Close()
	return s.WriteBack()
}

var sqliteFeatures = Features{MediaTypeField: true, EpochConversion: true, PodcastFlags: true}

// Parse loads the database found on mount. It fails with [shared.ErrNoDatabase] when the
// device has not been initialised.
func (SQLiteBinding) Parse(mount string) (Database, error) {
	dbPath := DatabasePath(mount)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoDatabase, dbPath)
	}

	db, err := openSchema(dbPath)
	if err != nil {
		return nil, err
	}

	s := &sqliteDatabase{
		MemoryDatabase: &MemoryDatabase{mount: mount, features: sqliteFeatures},
		db:             db,
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openSchema(path string) (*sql.DB, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	migrations, err := shared.LoadMigrations(schemaFiles, "schema")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := shared.Apply(db, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate device database: %w", err)
	}
	return db, nil
}

// sqliteDatabase persists a [MemoryDatabase] on WriteBack.
type sqliteDatabase struct {
	*MemoryDatabase
	db *sql.DB
}

func (s *sqliteDatabase) load() error {
	rows, err := s.db.Query(`SELECT id, name, is_master, is_podcasts FROM playlists ORDER BY position`)
	if err != nil {
		return fmt.Errorf("failed to query playlists: %w", err)
	}
	byID := map[string]*Playlist{}
	for rows.Next() {
		pl := &Playlist{}
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.Master, &pl.Podcasts); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan playlist: %w", err)
		}
		s.playlists = append(s.playlists, pl)
		byID[pl.ID] = pl
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(`
		SELECT id, title, album, artist, description, podcast_url, podcast_rss, length_ms, size,
			file_type, media_type, unk208, time_released, play_count, mark_unplayed,
			remember_position, flag1, flag2, flag3, flag4, path, artwork
		FROM tracks ORDER BY position`)
	if err != nil {
		return fmt.Errorf("failed to query tracks: %w", err)
	}
	tracks := map[string]*Track{}
	for rows.Next() {
		t := &Track{}
		err := rows.Scan(&t.ID, &t.Title, &t.Album, &t.Artist, &t.Description, &t.PodcastURL, &t.PodcastRSS,
			&t.Length, &t.Size, &t.FileType, &t.MediaType, &t.Unk208, &t.TimeReleased, &t.PlayCount,
			&t.MarkUnplayed, &t.RememberPlaybackPosition, &t.Flag1, &t.Flag2, &t.Flag3, &t.Flag4, &t.Path, &t.Artwork)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan track: %w", err)
		}
		s.tracks = append(s.tracks, t)
		tracks[t.ID] = t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(`SELECT playlist_id, track_id FROM playlist_tracks ORDER BY playlist_id, position`)
	if err != nil {
		return fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var plID, trackID string
		if err := rows.Scan(&plID, &trackID); err != nil {
			return fmt.Errorf("failed to scan playlist track: %w", err)
		}
		pl, t := byID[plID], tracks[trackID]
		if pl == nil || t == nil {
			continue
		}
		pl.tracks = append(pl.tracks, t)
	}
	return rows.Err()
}

// WriteBack replaces the stored database with the in-memory state in one transaction.
func (s *sqliteDatabase) WriteBack() error {
	if s.db == nil {
		return errors.New("device database is closed")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin write-back: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"playlist_tracks", "tracks", "playlists"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, pl := range s.playlists {
		_, err := tx.Exec(`INSERT INTO playlists (id, name, is_master, is_podcasts, position) VALUES (?, ?, ?, ?, ?)`,
			pl.ID, pl.Name, pl.Master, pl.Podcasts, i)
		if err != nil {
			return fmt.Errorf("failed to write playlist %s: %w", pl.Name, err)
		}
	}

	for i, t := range s.tracks {
		_, err := tx.Exec(`
			INSERT INTO tracks (id, title, album, artist, description, podcast_url, podcast_rss, length_ms, size,
				file_type, media_type, unk208, time_released, play_count, mark_unplayed,
				remember_position, flag1, flag2, flag3, flag4, path, artwork, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Album, t.Artist, t.Description, t.PodcastURL, t.PodcastRSS, t.Length, t.Size,
			t.FileType, t.MediaType, t.Unk208, t.TimeReleased, t.PlayCount, t.MarkUnplayed,
			t.RememberPlaybackPosition, t.Flag1, t.Flag2, t.Flag3, t.Flag4, t.Path, t.Artwork, i)
		if err != nil {
			return fmt.Errorf("failed to write track %s: %w", t.Title, err)
		}
	}

	for _, pl := range s.playlists {
		for i, t := range pl.tracks {
			if _, err := tx.Exec(`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`, pl.ID, t.ID, i); err != nil {
				return fmt.Errorf("failed to write playlist entry: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *sqliteDatabase) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
