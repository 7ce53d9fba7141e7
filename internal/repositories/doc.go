// Package repositories implements SQLite persistence for the audio feature cache and the run history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [TrackRepository] : Tracks with their audio features, unique per service and service ID
//   - [RearrangementRepository] : Rearrange runs with status, counts and scores
//   - [TrackCache] : Adapts [TrackRepository] to the engine's feature cache
//   - [RunHistory] : Adapts [RearrangementRepository] to the engine's run recorder
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
