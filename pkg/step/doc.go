// Package step implements the step registry: it binds Given/When/Then patterns to handlers
// and resolves a step's text to exactly one handler.
//
// Registries are built by chaining and combined with Merge or Compose, which lets
// independently owned domains contribute their own definitions:
//
//	infra := step.New[*World]().
//	    GivenRe(`the vault service is running`, vaultRunning).
//	    GivenRe(`service "([^"]+)" is healthy`, serviceHealthy)
//	auth := step.New[*World]().
//	    GivenRe(`(\w+) is an admin user`, adminUser)
//
//	suite := step.Compose(infra, auth)
//
// Matching is a full-text match within the step's kind. Zero matches means the step is
// undefined; two or more produce an *AmbiguousMatchError with a stable ordering.
package step
