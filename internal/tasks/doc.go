// Package tasks implements the podcast synchronization engine with real-time progress reporting.
//
// # Protocol
//
// A [Strategy] is driven through one job:
//
//  1. [Strategy.Open] : acquire the target (wait for a device mount, check a directory)
//  2. [Strategy.SyncChannel] : walk a channel's episodes, calling [Strategy.AddEpisode]
//     for each downloaded audio or video episode
//  3. [Strategy.Close] : flush the target and report a [Completion]
//
// [Job] runs this sequence across channels and returns a [Summary].
//
// # Strategies
//
//   - [DeviceStrategy] : writes tracks into a portable player's database via [device.Binding].
//     Tracks are matched to episodes by title and album, and played state flows both ways.
//   - [FilesystemStrategy] : copies files into a directory tree. An existing file counts as synced.
//
// # Progress Reporting
//
// All strategies post [ProgressUpdate] values on a channel with select/default, so a slow
// consumer never blocks a transfer.
//
// # Failures
//
// Failures are sentinel errors from package shared. [Classify] decides whether one is only
// logged, recorded against the episode, or cancels the job. Recorded messages are returned
// by [Strategy.Errors] and in the [Completion].
package tasks
