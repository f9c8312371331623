package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/podsync/internal/models"
)

var (
	_ list.Item = channelItem{}
)

// channelItem wraps [models.Channel] to implement [list.Item].
type channelItem struct {
	channel *models.Channel
}

func (i channelItem) FilterValue() string { return i.channel.Title }
func (i channelItem) Title() string       { return i.channel.Title }
func (i channelItem) Description() string {
	downloaded := 0
	for _, ep := range i.channel.Episodes {
		if ep.IsDownloaded() {
			downloaded++
		}
	}
	desc := fmt.Sprintf("%d episodes, %d downloaded", len(i.channel.Episodes), downloaded)
	if i.channel.IsMusicChannel {
		desc = fmt.Sprintf("%s • playlist %q", desc, i.channel.DevicePlaylistName)
	}
	if !i.channel.SyncToDevices {
		desc = fmt.Sprintf("%s • sync disabled", desc)
	}
	return desc
}
