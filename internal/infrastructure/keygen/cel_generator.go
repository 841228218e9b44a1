// Package keygen provides the CEL-based custom key generator. Operator-supplied
// key derivation is a trust boundary: instead of arbitrary code, configs carry a
// CEL expression evaluated against a read-only request view under a hard cost
// budget and timeout.
package keygen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/pkg/logger"
)

// maxCostBudget is the CEL runtime cost limit preventing cost-exhaustion.
const maxCostBudget = 50_000

// maxNestingDepth caps parenthesis/bracket nesting in expressions.
const maxNestingDepth = 20

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked during evaluation.
const interruptCheckFreq = 100

// CELGenerator compiles and evaluates custom key generator expressions.
// Compiled programs are cached per expression; config deletion does not need
// to invalidate them because evaluation is pure.
type CELGenerator struct {
	env     *cel.Env
	timeout time.Duration
	maxLen  int
	logger  logger.Logger

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELGenerator creates a CEL key generator. The environment exposes the
// request context as read-only variables; no extension functions with side
// effects are registered.
func NewCELGenerator(timeout time.Duration, maxLen int, log logger.Logger) (*CELGenerator, error) {
	env, err := cel.NewEnv(
		cel.Variable("applicationId", cel.StringType),
		cel.Variable("roleId", cel.StringType),
		cel.Variable("serviceId", cel.StringType),
		cel.Variable("procedureName", cel.StringType),
		cel.Variable("ip", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("query", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELGenerator{
		env:      env,
		timeout:  timeout,
		maxLen:   maxLen,
		logger:   log.WithComponent("cel_keygen"),
		programs: make(map[string]cel.Program),
	}, nil
}

// Validate implements service.KeyGenerator. Called at config-write time so a
// bad expression is rejected before it can reach the hot path.
func (g *CELGenerator) Validate(expression string) error {
	if expression == "" {
		return fmt.Errorf("expression is empty")
	}

	if len(expression) > g.maxLen {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expression), g.maxLen)
	}

	if err := validateNesting(expression); err != nil {
		return err
	}

	ast, issues := g.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.StringType {
		return fmt.Errorf("expression must produce a string, got %s", ast.OutputType())
	}

	return nil
}

// Generate implements service.KeyGenerator. Runs under the hard timeout; the
// caller treats any error as a signal to fall back to IP keying.
func (g *CELGenerator) Generate(ctx context.Context, expression string, req *service.RequestContext) (string, error) {
	prg, err := g.program(expression)
	if err != nil {
		return "", err
	}

	evalCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, _, err := prg.ContextEval(evalCtx, map[string]interface{}{
		"applicationId": req.ApplicationID,
		"roleId":        req.RoleID,
		"serviceId":     req.ServiceID,
		"procedureName": req.ProcedureName,
		"ip":            req.ClientIP,
		"method":        req.Method,
		"path":          req.Path,
		"headers":       nonNil(req.Headers),
		"query":         nonNil(req.Query),
	})
	if err != nil {
		return "", fmt.Errorf("evaluation failed: %w", err)
	}

	key, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("expression produced %T, want string", out.Value())
	}

	return key, nil
}

func (g *CELGenerator) program(expression string) (cel.Program, error) {
	g.mu.RLock()
	prg, ok := g.programs[expression]
	g.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := g.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := g.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	g.mu.Lock()
	g.programs[expression] = prg
	g.mu.Unlock()

	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
