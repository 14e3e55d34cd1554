// Package testutil provides deterministic helpers shared by package tests:
// seeded expression generators for property tests and sequential identifier
// generators for golden output.
package testutil
