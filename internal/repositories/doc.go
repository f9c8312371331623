// Package repositories implements SQLite persistence for the local podcast library.
//
//   - [ChannelRepository] : subscriptions with soft delete and per-table sequence ordering
//   - [EpisodeRepository] : episodes, download paths and played state
//   - [Library] : the combined view handed to the sync engine (channel loading, MarkPlayed)
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
