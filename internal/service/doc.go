// Package service contains the application use cases of the task engine. It
// orchestrates the domain types, the generator and the store interfaces
// (defined in internal/store) without depending on a concrete backend.
//
// Key components:
//
//   - StrategyCatalog: strategy CRUD with defaults, visibility and the
//     read-only rule for system strategies
//   - TaskService: generation with per-chain serialization, the task
//     lifecycle and best-effort batch operations
//   - AggregationService: dashboard, calendar and preview read models
//
// Every method is scoped to the user id passed in; a resource owned by
// someone else is reported as not found.
package service
