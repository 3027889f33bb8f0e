package attr

import (
	"fmt"
	"strings"
)

// EvaluationError reports a computed formula that failed. Key is the
// variable whose formula failed.
type EvaluationError struct {
	Key string
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("Failed to evaluate Variable(%s): %v", e.Key, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// DefaultEvaluationError reports a default formula that failed while its
// variable was materialized.
type DefaultEvaluationError struct {
	Key string
	Err error
}

func (e *DefaultEvaluationError) Error() string {
	return fmt.Sprintf("Failed to evaluate default value for Variable(%s): %v", e.Key, e.Err)
}

func (e *DefaultEvaluationError) Unwrap() error { return e.Err }

// CircularDependencyError lists the variables forming a cycle, starting and
// ending with the same key.
type CircularDependencyError struct {
	Keys []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("Circular dependency while evaluating the variable. Stack: [%s]", strings.Join(e.Keys, ", "))
}

// UnknownVariableError is returned for keys that name no variable.
type UnknownVariableError struct {
	Key string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("Variable %s does not exist", e.Key)
}
