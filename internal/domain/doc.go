// Package domain contains the core business entities, value objects, and
// domain logic of the application: strategies, accounts, tasks and the task
// status state machine, plus the calendar helpers generation relies on. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
