// Package tasks orchestrates playlist smoothing with real-time progress reporting.
//
// # Core Operations
//
// [PlaylistEngine] wires the Spotify service to the track store, the pair analyzer and the sequencer:
//
//  1. [PlaylistEngine.Collect] : Fetch playlists into a track store
//     - Exports playlists concurrently through a bounded, rate limited worker pool
//     - Joins every track with its audio features, from the cache when possible
//     - Skips tracks without an id or without features
//
//  2. [PlaylistEngine.Analyze] : Compare every pair of tracks
//     - Reports duplicates, undetectable keys and the most similar/dissimilar pair
//
//  3. [PlaylistEngine.Rearrange] : Reorder a collection
//     - Runs the multi-start sequencer over the analysed pairs
//     - Optionally publishes "Rearranged | <name>" to Spotify
//     - Records the run when a [RunRecorder] is configured
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends never block; an
// update is dropped when the channel is full.
//
// # Feature Caching
//
// The optional [FeatureCache] stores fetched audio features (repositories.TrackCache).
// Cache errors are logged and otherwise ignored.
package tasks
