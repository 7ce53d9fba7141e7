package shared

import "fmt"

// Sentinel errors shared across packages. Callers wrap them with fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
)

// Spotify session and transport.
var (
	ErrAuthFailed         = fmt.Errorf("authentication failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrTokenExpired       = fmt.Errorf("access token expired")
	ErrTimeout            = fmt.Errorf("operation timed out")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
)

// Lookups.
var (
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrRunNotFound      = fmt.Errorf("rearrangement run not found")
)

// Track records and comparisons.
var (
	// ErrMissingAttribute marks a track without audio features; it is skipped, not fatal.
	ErrMissingAttribute   = fmt.Errorf("missing track attribute")
	ErrInvalidAttribute   = fmt.Errorf("invalid track attribute")
	ErrDuplicateTrack     = fmt.Errorf("duplicate track id")
	ErrEmptyComparisonSet = fmt.Errorf("fewer than two comparable tracks")
)

// Command line input.
var (
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
