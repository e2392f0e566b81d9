// Package effectvm adapts a general-purpose expression evaluator into the
// opaque bytecode VM rule guards, rule bodies, and constraint checks are
// expressed against. Longtable's own pattern/rule/constraint language is
// out of scope; this package only needs a safe, cacheable way to evaluate
// boolean guards and value expressions over a set of bound variables.
package effectvm

import (
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// VM compiles and caches expr-lang programs by source text, the same
// compile-once-run-many-times shape used for condition evaluation
// elsewhere in the corpus.
type VM struct {
	mu      sync.RWMutex
	cache   map[string]*vm.Program
	debug   bool
}

// New returns an empty VM.
func New() *VM {
	return &VM{cache: map[string]*vm.Program{}}
}

// compile returns a cached program for src, compiling (without a fixed
// Env type, since bound variables vary per pattern) and caching it on
// first use.
func (v *VM) compile(src string) (*vm.Program, error) {
	v.mu.RLock()
	if p, ok := v.cache[src]; ok {
		v.mu.RUnlock()
		return p, nil
	}
	v.mu.RUnlock()

	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.cache[src] = program
	v.mu.Unlock()
	return program, nil
}

// Eval runs src against the given variable bindings and returns its raw
// result.
func (v *VM) Eval(src string, bindings map[string]any) (any, error) {
	program, err := v.compile(src)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, bindings)
}

// EvalBool runs src and coerces its result to a bool. An expression that
// references a variable absent from bindings (typical for guard clauses
// evaluated before every binding is known) is treated as false rather
// than an error, mirroring the lenient "not found" handling the corpus
// uses for conditional edges.
func (v *VM) EvalBool(src string, bindings map[string]any) (bool, error) {
	result, err := v.Eval(src, bindings)
	if err != nil {
		if isMissingVariableErr(err) {
			return false, nil
		}
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, nil
	}
	return b, nil
}

func isMissingVariableErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unknown name") || strings.Contains(msg, "not found")
}
