package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.account.authz.allow"

// DefaultPolicy grants access when the caller's role is one of the route's allowed roles.
const DefaultPolicy = `package account.authz

default allow := false

allow if {
	some role in input.allowed_roles
	role == input.role
}
`

// OPAEvaluator evaluates the authorization policy with OPA Rego. The policy is compiled once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles DefaultPolicy.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	return NewOPAEvaluatorWithPolicy(ctx, DefaultPolicy)
}

// NewOPAEvaluatorWithPolicy compiles policy, which must define data.account.authz.allow.
func NewOPAEvaluatorWithPolicy(ctx context.Context, policy string) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allowed evaluates the policy for role against allowed. A policy that yields no boolean denies.
func (e *OPAEvaluator) Allowed(ctx context.Context, role string, allowed []string) (bool, error) {
	if allowed == nil {
		allowed = []string{}
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"role":          role,
		"allowed_roles": allowed,
	}))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	return ok && v, nil
}

// HealthCheck verifies the compiled policy evaluates. Does not touch the database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"role":          "",
		"allowed_roles": []string{},
	}))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}
