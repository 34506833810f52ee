// Package harness runs end-to-end scenarios against the real store, sync
// engine and live query.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	view:
//	  sort: name
//	  search: ""
//	steps:
//	  - sync:
//	      recipes:
//	        - { uuid: "...", name: Soup, difficulty: 9 }
//	    expect:
//	      inserted: 1
//	  - sync:
//	      error: down
//	    expect:
//	      error: service_rejected
//	      message: down
//	  - search: soup
//	    expect:
//	      rows: ["..."]
//	assertions:
//	  - type: store_ids
//	    ids: ["..."]
//	  - type: recipe
//	    id: "..."
//	    expect: { difficulty: 5 }
//
// A sync step serves exactly one response to the engine: recipes (encoded
// as {"recipes": [...]}), error (a service error envelope), payload (raw
// bytes, for malformed bodies) or fail (a transport error).
//
// # Assertion Types
//
//   - store_ids: the stored id set equals ids (order ignored)
//   - recipe: the stored recipe with id has the expect field values
//   - rows: the live query rows are exactly ids, in order
//   - commit_count: the store recorded count commits
//   - loading: the live query loading flag equals loading
//
// # Deterministic Testing
//
// Every run uses a fresh database file, a step clock for commit times and
// sequential commit ids, so traces are byte-identical across runs and can
// be compared against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/clamp_and_search.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
