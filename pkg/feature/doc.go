// Package feature holds the structured Feature/Scenario/Step model the engine consumes.
//
// The engine never parses Gherkin text. Features arrive already structured, either built in
// Go code or loaded from a YAML interchange document with LoadFile/Load:
//
//	features:
//	  - name: Vault health
//	    tags: ["@infra"]
//	    scenarios:
//	      - name: healthy vault
//	        tags: ["@serial"]
//	        steps:
//	          - Given the vault service is running
//	          - When checking the health endpoint
//	          - Then the service should respond with healthy status
//
// The loader resolves And/But keywords to the kind of the previous step and records source
// lines for diagnostics.
package feature
