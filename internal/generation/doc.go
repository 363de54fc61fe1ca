// Package generation schedules transfer tasks for a set of accounts under a
// strategy's policy. It is pure: storage reads happen in the caller, and all
// randomness comes from an injected, seedable source so a seed reproduces a
// schedule exactly.
package generation
