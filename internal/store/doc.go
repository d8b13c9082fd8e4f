// Package store provides SQLite-backed durable storage for storysync.
//
// The store owns every persisted record:
//   - Stories: the cache of stories confirmed by the remote Story API
//   - Pending stories: the offline queue drained by the sync coordinator
//   - Key/value pairs: small client state such as the session token
//
// # Ordering
//
// The pending queue is ordered by seq INTEGER (assigned on insert), never by
// timestamps. ListUnsynced always returns ORDER BY seq ASC so a drain replays
// submissions in exactly the order the user made them.
//
// # Missing Records
//
// Reads of missing records return empty results, and deletes or marks of
// missing records are no-ops. Neither is an error.
//
// # Failure Semantics
//
// A store that cannot be opened, or has been closed, reports
// story.ErrStorageUnavailable. The store never retries; callers decide.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds (set in the DSN so
//     it applies before any other statement, including concurrent opens)
//   - foreign_keys=ON
package store
