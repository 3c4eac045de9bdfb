package compliance

import (
	"fmt"
	"strings"
)

// Policy decides whether a failed check blocks generation.
type Policy string

const (
	Advisory Policy = "advisory"
	Strict   Policy = "strict"
)

// ParsePolicy accepts the config spelling; empty means Advisory.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Advisory:
		return Advisory, nil
	case Strict:
		return Strict, nil
	}
	return "", fmt.Errorf("unknown compliance policy %q", s)
}

// ViolationError is returned by Enforce under the strict policy.
type ViolationError struct {
	Errors []string
}

func (e *ViolationError) Error() string {
	return "compliance check failed: " + strings.Join(e.Errors, "; ")
}

// Enforce returns a *ViolationError when p is Strict and r is invalid.
func (p Policy) Enforce(r Result) error {
	if p != Strict || r.IsValid {
		return nil
	}
	return &ViolationError{Errors: append([]string(nil), r.Errors...)}
}
