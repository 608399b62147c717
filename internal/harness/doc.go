// Package harness runs log-replay scenarios against the engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	verbose: false        # result suffix format
//	timezone: UTC         # zone result times are shown in (default UTC)
//	backend: memory       # memory | sqlite
//	lines:
//	  - new msg 123
//	  - "info msg 123: bytes 4500 from <alice@example.com>"
//	expect:
//	  results:
//	    - "2023-11-14 22:13:20 alice@example.com ==> bob@example.org (ds: success)"
//	  warnings: [duplicate_message]
//	  pending_messages: ["123"]
//	  pending_deliveries: ["7"]
//
// Every expect list is compared exactly and in order; an omitted list means
// "none expected".
//
// # Golden Files
//
// RunWithGolden additionally compares the result lines with
// testdata/scenarios/golden/<name>.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// # Deterministic Testing
//
// Each scenario runs on a fresh store with a fixed run id and an explicit
// time zone, so the same scenario always produces byte-identical output.
package harness
