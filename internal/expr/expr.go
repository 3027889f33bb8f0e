// Package expr defines the arithmetic formula capability consumed by the
// content registry and the attribute graph, and provides the default
// HCL-syntax implementation.
//
// A formula is parsed once, reports the names of the free variables it reads
// (deduplicated, in order of first appearance) and is evaluated against a
// vector of numbers aligned to those names.
package expr

import (
	"fmt"
	"slices"
)

// Expr is a parsed formula.
type Expr interface {
	// Vars returns the free variable names in order of first appearance.
	Vars() []string
	// Eval evaluates the formula. args[i] is the value of Vars()[i].
	Eval(args []float64) (float64, error)
	// String returns the source text.
	String() string
}

// Engine parses formula text.
type Engine interface {
	Name() string
	Parse(text string) (Expr, error)
}

// ParseError reports malformed formula text.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse formula %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EvalError reports a formula that failed at evaluation time.
type EvalError struct {
	Text string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate formula %q: %v", e.Text, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// ArityError is returned when Eval receives a vector that does not line up
// with Vars.
type ArityError struct {
	Want, Got int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("formula expects %d arguments, got %d", e.Want, e.Got)
}

// appendUnique appends name unless it is already present.
func appendUnique(names []string, name string) []string {
	if slices.Contains(names, name) {
		return names
	}
	return append(names, name)
}
