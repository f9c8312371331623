package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

const episodeColumns = `id, channel_id, title, description, pub_date, url, local_path, sync_name, played, created_at, updated_at`

// EpisodeRepository persists [models.Episode] rows and their played state.
type EpisodeRepository struct {
	db *sql.DB
}

// NewEpisodeRepository creates a new EpisodeRepository with the given database connection
func NewEpisodeRepository(db *sql.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// Create inserts an episode with a generated ID
func (r *EpisodeRepository) Create(ep *models.Episode) error {
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	ep.ID = shared.GenerateID()
	ep.CreatedAt = now
	ep.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ep.ID, ep.ChannelID, ep.Title, ep.Description, ep.PubDate, ep.URL, ep.LocalPath, ep.SyncName, ep.Played, ep.CreatedAt, ep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}
	return nil
}

// Get retrieves an episode by ID
func (r *EpisodeRepository) Get(id string) (*models.Episode, error) {
	return scanEpisode(r.db.QueryRow(`SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id))
}

// GetByURL retrieves an episode by its enclosure URL
func (r *EpisodeRepository) GetByURL(url string) (*models.Episode, error) {
	return scanEpisode(r.db.QueryRow(`SELECT `+episodeColumns+` FROM episodes WHERE url = ?`, url))
}

// ListByChannel returns a channel's episodes, in insertion order.
func (r *EpisodeRepository) ListByChannel(channelID string) ([]*models.Episode, error) {
	rows, err := r.db.Query(`SELECT `+episodeColumns+` FROM episodes WHERE channel_id = ? ORDER BY created_at ASC, rowid ASC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*models.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return episodes, nil
}

// SetLocalPath records where the downloaded file lives; an empty path marks it not downloaded.
func (r *EpisodeRepository) SetLocalPath(id, path string) error {
	result, err := r.db.Exec(`UPDATE episodes SET local_path = ?, updated_at = ? WHERE id = ?`, path, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}
	return expectOneRow(result, shared.ErrEpisodeNotFound, id)
}

// MarkPlayed flags the episode with the given URL as played. Marking a played episode again is a no-op.
func (r *EpisodeRepository) MarkPlayed(url string) error {
	result, err := r.db.Exec(`UPDATE episodes SET played = 1, updated_at = ? WHERE url = ? AND played = 0`, time.Now(), url)
	if err != nil {
		return fmt.Errorf("failed to mark episode played: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	if _, err := r.GetByURL(url); err != nil {
		return err
	}
	return nil
}

// IsPlayed reports the stored played flag for url.
func (r *EpisodeRepository) IsPlayed(url string) (bool, error) {
	var played bool
	err := r.db.QueryRow(`SELECT played FROM episodes WHERE url = ?`, url).Scan(&played)
	if errors.Is(err, sql.ErrNoRows) {
		return false, shared.ErrEpisodeNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to query episode: %w", err)
	}
	return played, nil
}

func scanEpisode(s scanner) (*models.Episode, error) {
	var ep models.Episode
	err := s.Scan(&ep.ID, &ep.ChannelID, &ep.Title, &ep.Description, &ep.PubDate, &ep.URL, &ep.LocalPath, &ep.SyncName, &ep.Played, &ep.CreatedAt, &ep.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrEpisodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan episode: %w", err)
	}
	return &ep, nil
}
