// Package harness runs query scenarios against compiled models.
//
// A scenario loads CUE model files, seeds an in-memory backend, runs a list
// of projection queries and checks the output. Every lookup the projection
// engine makes is recorded, so scenarios can pin down batching behavior as
// well as the shape of the output.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - ../models/blog.cue
//	data:
//	  User:
//	    - { id: 1, name: Ann }
//	  Post:
//	    - { id: 10, title: first, author_id: 1 }
//	associations:
//	  Post.tags:
//	    "10": [go, sql]
//	steps:
//	  - model: Post
//	    fields: "title,author(name)"
//	    ids: [10]
//	    expect:
//	      count: 1
//	      records:
//	        - { id: "10", author: { name: Ann } }
//	assertions:
//	  - type: lookup_count
//	    step: 0
//	    model: User
//	    count: 1
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - lookup_count: a step issued exactly N backend lookups against a model
//   - field_order: a record's keys appear in exactly the given order
//   - record_matches: a record contains the given values (subset match)
//   - same_output: several steps produced byte-identical output
//
// # Deterministic Testing
//
// All scenarios execute with a fixed request id and a single resolver
// worker, so output and lookup order are reproducible and can be compared
// against golden files with RunWithGolden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/blog.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
