package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Library errors
	ErrChannelNotFound = fmt.Errorf("channel not found")
	ErrEpisodeNotFound = fmt.Errorf("episode not found")

	// Sync target errors
	ErrTargetUnavailable = fmt.Errorf("sync target unavailable")
	ErrNotWritable       = fmt.Errorf("destination not writable")
	ErrNoSpace           = fmt.Errorf("not enough free disk space")
	ErrOpenFile          = fmt.Errorf("error opening file")
	ErrWriteFile         = fmt.Errorf("error writing file")
	ErrDeviceUnsupported = fmt.Errorf("device database support not available")
	ErrNoDatabase        = fmt.Errorf("no device database found")
	ErrPlaylistMissing   = fmt.Errorf("required device playlist missing")
	ErrSyncFailed        = fmt.Errorf("synchronization did not complete")

	// Per-episode transfer errors
	ErrTranscode  = fmt.Errorf("transcoding produced no output")
	ErrDeviceCopy = fmt.Errorf("could not copy file to device")

	// Best-effort errors that are only logged
	ErrCoverArt      = fmt.Errorf("cover art unavailable")
	ErrTagWrite      = fmt.Errorf("could not update tags")
	ErrLengthProbe   = fmt.Errorf("could not determine track length")
	ErrLegacyFlags   = fmt.Errorf("podcast flags not supported by device database")
	ErrTempCleanup   = fmt.Errorf("could not remove temporary file")
	ErrPartialUnlink = fmt.Errorf("could not remove partially copied file")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
