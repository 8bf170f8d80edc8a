package cache

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// CompilePredicate compiles a CEL expression into a Predicate over string
// keys, so an operator can express an invalidation rule (e.g.
// `key.startsWith("workflow:42")`) as configuration rather than code. The
// expression sees a single variable, "key", and must evaluate to bool; the
// value itself is not exposed to CEL since cached values are arbitrary Go
// types with no stable CEL type mapping.
func CompilePredicate[V any](expr string) (Predicate[V], error) {
	env, err := cel.NewEnv(cel.Variable("key", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("cache: building CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cache: compiling predicate %q: %w", expr, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cache: building CEL program for %q: %w", expr, err)
	}

	return func(key string, _ V) bool {
		out, _, err := program.Eval(map[string]any{"key": key})
		if err != nil {
			return false
		}
		matched, ok := out.Value().(bool)
		return ok && matched
	}, nil
}
