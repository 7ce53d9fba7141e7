// Package models defines domain entities and persistence interfaces for segue.
//
// The package contains two categories of types:
//
// 1. Value types passed between the service, analysis and output layers
//   - [Track] : a track with the audio attributes the distance metric reads
//   - [CatalogTrack] : playlist item metadata before audio features are fetched
//   - [AudioFeatures] : key, mode, tempo, valence and energy of one track
//   - [Playlist], [PlaylistExport] : playlist metadata and items
//
// 2. Persistent entities backed by sqlite
//   - [PersistedTrack] : cached audio features, so repeated runs skip the API
//   - [Rearrangement] : history of rearrange runs with their scores
//
// Persistent entities implement [Model]; [Repository] defines the CRUD operations.
package models
