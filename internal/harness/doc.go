// Package harness runs scripted offline-sync scenarios against the real
// coordinator, store and connectivity monitor.
//
// A scenario puts the system in a starting state, drives it through a flow
// of steps and then checks the recorded trace and the final store contents.
// The remote API is a scripted fake, so every run is deterministic and its
// trace can be compared with a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: offline_then_reconnect
//	description: "Stories queued offline are sent when connectivity returns"
//	online: false
//	setup:
//	  - action: Gateway.failNext
//	    args: { errors: [network] }
//	flow:
//	  - invoke: Coordinator.submit
//	    args: { description: "A" }
//	    expect:
//	      case: Queued
//	      result: { local_id: L1 }
//	  - invoke: Connectivity.set
//	    args: { online: true }
//	assertions:
//	  - type: trace_order
//	    actions: [Coordinator.submit, Notice.queued, Notice.synced]
//	  - type: final_state
//	    table: pending
//	    where: { local_id: L1 }
//	    expect: { synced: true }
//
// # Actions
//
//   - Connectivity.set {online}: cases Changed, Unchanged. The reconnect
//     edge drains the queue before the step completes.
//   - Coordinator.submit {description, lat, lon}: cases Sent, Queued.
//   - Coordinator.drain {}: cases Success, Interrupted.
//   - Store.enqueue {description}: queue directly, as an earlier session would.
//   - Store.markSynced {local_id}: cases Found, NotFound.
//   - Store.deletePending {local_id}, Store.prune {}.
//   - Gateway.failNext {errors}: script the next create results; each entry
//     is network, rejected or ok.
//   - Gateway.failOn {description, error}: fail every create of one story;
//     an empty error clears it.
//   - Gateway.echo {on}: make creates return the created story.
//
// Besides step invocations the trace records every Gateway.createStory call
// and every user notice (Notice.sent, Notice.queued, Notice.synced).
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: one row of the pending or stories table has the expected fields
//   - table_count: a table has exactly N rows matching where
//
// # Determinism
//
// Each run uses an in-memory database, local ids L1, L2, ... and a step
// clock, so identical scenarios always produce identical traces.
package harness
