// Package story defines the domain types shared by every storysync component.
//
// Two record kinds exist:
//   - Record: a story confirmed by the remote Story API and cached locally.
//   - Pending: a submission captured locally that has not yet been confirmed.
//
// # Pending Lifecycle
//
//	Created -> Pending(synced=false) -> Synced(synced=true)
//
// There is no reverse transition. A Pending entry is mutated exactly once,
// when the sync coordinator flips Synced after a confirmed remote write.
// It is only ever removed by explicit user action or after confirmed sync.
//
// # Ordering
//
// Pending entries carry two orderings: LocalID is a UUIDv7 (time-sortable,
// unique across processes) and Seq is assigned by the store on insert. Queue
// drains always use Seq so submission order is preserved exactly.
package story
