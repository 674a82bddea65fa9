package jobs

import (
	"fmt"
	"strings"
)

// ParseRoute extracts the execution name and action from a URL path like
// /track/{name}/{action}. apiPrefix should be like "/track/". Exactly two
// segments are accepted. Names without idPrefix get it prepended, so clients
// may pass the bare UUID.
func ParseRoute(path, apiPrefix, idPrefix string) (name, action string, ok bool) {
	rest, found := strings.CutPrefix(path, apiPrefix)
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	name = parts[0]
	if !strings.HasPrefix(name, idPrefix) {
		name = idPrefix + name
	}
	return name, parts[1], true
}

// ExecutionArn derives an execution ARN from its state machine ARN and name:
// arn:aws:states:<region>:<account>:stateMachine:<sm> becomes
// arn:aws:states:<region>:<account>:execution:<sm>:<name>.
func ExecutionArn(stateMachineArn, name string) (string, error) {
	const marker = ":stateMachine:"
	i := strings.Index(stateMachineArn, marker)
	if i < 0 {
		return "", fmt.Errorf("not a state machine ARN: %q", stateMachineArn)
	}
	return stateMachineArn[:i] + ":execution:" + stateMachineArn[i+len(marker):] + ":" + name, nil
}

// ExecutionName returns the name segment of an execution ARN (the text
// after the last colon). A bare name is returned unchanged.
func ExecutionName(executionArn string) string {
	if i := strings.LastIndex(executionArn, ":"); i >= 0 {
		return executionArn[i+1:]
	}
	return executionArn
}
