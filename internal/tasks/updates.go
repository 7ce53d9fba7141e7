package tasks

import (
	"fmt"

	"github.com/desertthunder/segue/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchSource
	FetchFeatures
	BuildStore
	Analyze
	Sequence
	CreatePlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchSource:
		return "fetch_source"
	case FetchFeatures:
		return "fetch_features"
	case BuildStore:
		return "build_store"
	case Analyze:
		return "analyze"
	case Sequence:
		return "sequence"
	case CreatePlaylist:
		return "create_playlist"
	default:
		return ""
	}
}

func fetchPlaylistsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: "Fetching playlists from Spotify...",
	}
}

func fetchingSourceUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching playlist %s...", step, total, id),
	}
}

func foundPlaylistUpdate(step, total int, export *models.PlaylistExport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, export.Playlist.Name, len(export.Tracks)),
		Data:    export,
	}
}

func playlistFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}

func fetchFeaturesUpdate(cached, missing int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    cached,
		Total:   cached + missing,
		Message: fmt.Sprintf("Fetching audio features for %d tracks (%d cached)...", missing, cached),
	}
}

func buildStoreUpdate(loaded, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildStore,
		Step:    loaded,
		Total:   loaded + skipped,
		Message: fmt.Sprintf("Loaded %d tracks, skipped %d", loaded, skipped),
	}
}

func analyzeUpdate(tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Analyze,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Comparing %d pairs...", tracks*(tracks-1)/2),
	}
}

func sequenceUpdate(candidates int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sequence,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Walking %d candidate orders...", candidates),
	}
}

func createDestinationUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q on Spotify...", name),
	}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}
