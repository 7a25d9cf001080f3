// Package channels holds the transport lifecycle shared by bot front ends:
// the Channel contract, a Manager that starts and stops registered channels,
// and a per-sender rate limiter.
package channels

import "context"

// Channel is a running bot transport (Telegram long polling today).
type Channel interface {
	// Name returns the channel identifier (e.g., "telegram").
	Name() string

	// Start begins receiving updates. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// IsRunning returns whether the channel is actively processing updates.
	IsRunning() bool
}
