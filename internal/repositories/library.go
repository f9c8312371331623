package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/podsync/internal/models"
)

// Library combines channel and episode persistence into the view the sync engine needs.
type Library struct {
	Channels *ChannelRepository
	Episodes *EpisodeRepository
}

// NewLibrary creates a Library over db.
func NewLibrary(db *sql.DB) *Library {
	return &Library{
		Channels: NewChannelRepository(db),
		Episodes: NewEpisodeRepository(db),
	}
}

// MarkPlayed implements tasks.Library.
func (l *Library) MarkPlayed(url string) error {
	return l.Episodes.MarkPlayed(url)
}

// LoadChannels returns every channel with its episodes attached.
func (l *Library) LoadChannels() ([]*models.Channel, error) {
	channels, err := l.Channels.List(nil)
	if err != nil {
		return nil, err
	}

	for _, ch := range channels {
		episodes, err := l.Episodes.ListByChannel(ch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load episodes for %s: %w", ch.Title, err)
		}
		ch.Episodes = episodes
	}
	return channels, nil
}
