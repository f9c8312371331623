// Package models defines the podcast library entities consumed by the sync engine.
//
//   - [Channel] : a podcast subscription with its sync preferences
//   - [Episode] : a single item; only downloaded audio/video episodes are synced
//
// The sync engine treats both as read-only except for [Episode.Played], which is updated
// when play state is reconciled with a device.
package models
