package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

const channelColumns = `id, sequence, title, url, is_music_channel, device_playlist_name, sync_to_devices, created_at, updated_at`

// ChannelRepository persists [models.Channel] subscriptions with soft delete support.
type ChannelRepository struct {
	db *sql.DB
}

// NewChannelRepository creates a new ChannelRepository with the given database connection
func NewChannelRepository(db *sql.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create inserts a channel with a generated ID and sequence
func (r *ChannelRepository) Create(ch *models.Channel) error {
	if err := ch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "channels")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	ch.ID = shared.GenerateID()
	ch.Sequence = sequence
	ch.CreatedAt = now
	ch.UpdatedAt = now

	_, err = r.db.Exec(`
		INSERT INTO channels (`+channelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ch.ID, ch.Sequence, ch.Title, ch.URL, ch.IsMusicChannel, ch.DevicePlaylistName, ch.SyncToDevices, ch.CreatedAt, ch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}
	return nil
}

// Get retrieves a channel by ID, excluding soft-deleted channels
func (r *ChannelRepository) Get(id string) (*models.Channel, error) {
	row := r.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE id = ? AND deleted_at IS NULL`, id)
	return scanChannel(row)
}

// GetByURL retrieves a channel by its feed URL
func (r *ChannelRepository) GetByURL(url string) (*models.Channel, error) {
	row := r.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE url = ? AND deleted_at IS NULL`, url)
	return scanChannel(row)
}

// Update modifies an existing channel's title and sync preferences
func (r *ChannelRepository) Update(ch *models.Channel) error {
	if err := ch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	ch.UpdatedAt = time.Now()
	result, err := r.db.Exec(`
		UPDATE channels
		SET title = ?, is_music_channel = ?, device_playlist_name = ?, sync_to_devices = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, ch.Title, ch.IsMusicChannel, ch.DevicePlaylistName, ch.SyncToDevices, ch.UpdatedAt, ch.ID)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	return expectOneRow(result, shared.ErrChannelNotFound, ch.ID)
}

// Delete soft-deletes a channel by ID
func (r *ChannelRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE channels SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return expectOneRow(result, shared.ErrChannelNotFound, id)
}

// List retrieves channels in subscription order.
//
// Supported criteria: "sync_to_devices" (bool).
func (r *ChannelRepository) List(criteria map[string]any) ([]*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE deleted_at IS NULL`
	args := []any{}

	if v, ok := criteria["sync_to_devices"].(bool); ok {
		query += " AND sync_to_devices = ?"
		args = append(args, v)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return channels, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(s scanner) (*models.Channel, error) {
	var ch models.Channel
	err := s.Scan(&ch.ID, &ch.Sequence, &ch.Title, &ch.URL, &ch.IsMusicChannel, &ch.DevicePlaylistName, &ch.SyncToDevices, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan channel: %w", err)
	}
	return &ch, nil
}

func expectOneRow(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
