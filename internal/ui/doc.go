// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for syncing podcast channels:
//  1. [ChannelListView] : Browse channels and pick one, or all of them
//  2. [ConfirmView] : Confirm the sync target
//  3. [SyncView] : Monitor episode and overall progress with status texts
//  4. [ResultView] : Display the job completion and recorded errors
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync strategy, which never blocks on a slow UI.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, a, y/n, c, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
