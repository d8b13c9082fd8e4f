// Package syncer reconciles the local pending queue with the Story API.
//
// A submission goes straight to the API when the monitor says online. If
// that fails, or the device is offline, it is queued in the store instead
// and the user sees a "saved offline" notice rather than an error.
//
// Drain walks the unsynced queue oldest-first, one record at a time. A
// record is marked synced only after the API confirmed it, so a crash
// between the two steps leaves the record pending and the next drain sends
// it again. Delivery is therefore at-least-once. A failed record is logged
// and skipped; it never aborts the batch.
//
// The coordinator keeps no state of its own beyond the drain lock and the
// trigger signal. Everything that must survive a restart lives in the store.
package syncer
