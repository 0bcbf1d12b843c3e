// Package player defines the playback collaborator consumed by the command
// handlers: a media [Library] scanned from a local music directory and the
// per-room [Controller] that plays songs into a voice connection.
//
// Platform-specific playback lives in sub-packages (e.g. discordplayer); this
// package is transport-agnostic.
package player

import "context"

// Controller is a per-room playback handle. A Controller is bound to one
// voice connection; room state holds it as an opaque capability.
//
// Implementations must be safe for concurrent use.
type Controller interface {
	// PlayFile starts playback of the local media file at path, stopping any
	// current playback first. title is the human-readable name reported by
	// Playing.
	PlayFile(ctx context.Context, path, title string) error

	// PlayURL streams remote media from url and returns its resolved title.
	PlayURL(ctx context.Context, url string) (string, error)

	// Stop halts current playback. Stopping an idle controller is a no-op.
	Stop() error

	// SetVolume adjusts the playback gain. gain is clamped to [0.0, 2.0].
	SetVolume(gain float64)

	// Playing returns the current title and true while something plays.
	Playing() (string, bool)

	// Close stops playback and releases the voice connection.
	Close() error
}
