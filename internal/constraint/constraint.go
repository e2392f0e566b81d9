// Package constraint implements post-quiescence invariant checking: a
// boolean expression evaluated over every binding of a pattern, with
// Warn (log and continue) or Abort (roll back the whole tick) severity.
package constraint

import (
	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/pattern"
	"github.com/longtable/longtable/internal/store"
)

// OnViolation selects what a tick does when a constraint's check
// expression evaluates false for some binding.
type OnViolation int

const (
	// Warn records the violation but lets the tick commit.
	Warn OnViolation = iota
	// Abort rolls the whole tick back to its pre-tick World.
	Abort
)

// Constraint is a named invariant: for every binding of Pattern, Check
// must evaluate truthy.
type Constraint struct {
	Name    string
	Pattern *pattern.CompiledPattern
	Check   string
	OnFail  OnViolation
}

// Violation records one failing binding of one constraint.
type Violation struct {
	Constraint string
	Bindings   pattern.Bindings
	OnFail     OnViolation
}

// Checker runs every registered constraint against a World.
type Checker struct {
	vm          *effectvm.VM
	constraints []Constraint
}

// NewChecker returns an empty Checker evaluating Check expressions with vm.
func NewChecker(vm *effectvm.VM) *Checker {
	return &Checker{vm: vm}
}

// Register adds a constraint.
func (c *Checker) Register(con Constraint) {
	c.constraints = append(c.constraints, con)
}

// Constraints returns every registered constraint.
func (c *Checker) Constraints() []Constraint {
	return c.constraints
}

// Check evaluates every registered constraint against w, returning one
// Violation per (constraint, binding) pair that failed. The result order
// matches registration order and, within a constraint, pattern match
// order.
func (c *Checker) Check(w store.World) ([]Violation, error) {
	var out []Violation
	for _, con := range c.constraints {
		for _, b := range con.Pattern.Match(w) {
			ok, err := c.vm.EvalBool(con.Check, b.Env())
			if err != nil {
				return out, foundation.NewErrorf(foundation.ErrVMError, "constraint %q: %v", con.Name, err).WithCause(err)
			}
			if !ok {
				out = append(out, Violation{Constraint: con.Name, Bindings: b, OnFail: con.OnFail})
			}
		}
	}
	return out, nil
}

// HasAbort reports whether any violation in vs demands a tick rollback.
func HasAbort(vs []Violation) bool {
	for _, v := range vs {
		if v.OnFail == Abort {
			return true
		}
	}
	return false
}
