// Package jobs names workflow executions and maps between execution names,
// execution ARNs, and the submission endpoint's routes.
package jobs

import (
	"github.com/google/uuid"
)

// ExecutionPrefix prefixes every execution started by the submission endpoint.
const ExecutionPrefix = "track-"

// NewExecutionName creates a unique execution name with the given prefix.
// The prefix should include a trailing dash, e.g. "track-". Step Functions
// limits names to 80 characters; a UUID plus a short prefix stays well under.
func NewExecutionName(prefix string) string {
	return prefix + uuid.NewString()
}
