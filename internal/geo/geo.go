// Package geo wraps the positioning capability in a single-shot request
// with a bounded wait and a fixed failure taxonomy.
package geo

import "context"

// Point is a geographic coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator resolves the current position. Implementations make a single
// attempt; retry policy belongs to the caller.
type Locator interface {
	Current(ctx context.Context) (Point, error)
}

// Failure taxonomy. Each variant carries the message shown to the user.
type locError string

func (e locError) Error() string { return string(e) }

const (
	// ErrUnsupported means no positioning capability is available at all.
	ErrUnsupported = locError("Geolocation is not supported on this device.")
	// ErrPermissionDenied means the user or platform refused access.
	ErrPermissionDenied = locError("Location access denied. Please enable location permissions in your settings.")
	// ErrUnavailable means the platform could not produce a fix.
	ErrUnavailable = locError("Location information is unavailable.")
	// ErrTimeout means the bounded wait elapsed before a fix arrived.
	ErrTimeout = locError("The request to get user location timed out.")
	// ErrUnknown covers everything else.
	ErrUnknown = locError("An unknown error occurred while getting location.")
)
