// Package harness runs replay scenarios as executable contract tests for
// rule sets.
//
// A scenario pairs an encounter with the rules to replay it against and
// a list of assertions on the resulting report.
//
// # Scenario Format
//
//	name: charge_sync
//	description: "Charge fires for the targeted player"
//	rules: |
//	  package encounterlab
//	  ruleset: windward: { ... }
//	encounter:
//	  start: 1000
//	  zone: { id: "4A1", name: "The Windward Wilds" }
//	  members:
//	    - { id: "10FF0001", name: "Tini Poutini", job: 24 }
//	  lines:
//	    - ts: 1500
//	      type: StartsUsing
//	      fields: { id: "A3D5", targetId: "10FF0001" }
//	batch_sizes: [1, 8]
//	assertions:
//	  - type: resolved_offset
//	    actor: "10FF0001"
//	    rule: charge
//	    offset: 500
//
// rules_path may replace rules and capture (a network log file) may
// replace encounter. Relative paths resolve against the scenario file.
//
// # Assertion Types
//
//   - firing_count: the actor has Count firings of Rule (every rule if empty)
//   - pending_count: the actor has Count firings that never resolved
//   - resolved_offset: the Nth firing of Rule resolved at Offset ms
//   - output: the Nth firing of Rule produced Text
//   - excluded: the actor was reported but never replayed
//   - final_data: the actor's final data holds Expect at Key
//
// # Determinism
//
// Every batch size listed in the scenario is analyzed with the same fixed
// run id. The report digests must agree or the scenario fails, which
// checks that batching never leaks state between perspectives.
package harness
