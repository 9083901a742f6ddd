package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"authguard/internal/platform/rbac"
)

const defaultQuery = "data.authguard.authz.allow"

// DefaultRegoPolicy allows a caller whose role is listed on the route, or any
// caller when the route lists no roles. Admins inherit editor routes through
// the route's own role list, not through the policy.
const DefaultRegoPolicy = `package authguard.authz

default allow := false

allow if {
	count(input.allowed_roles) == 0
}

allow if {
	some r in input.allowed_roles
	r == input.role
}
`

// OPAAuthorizer evaluates role checks with an OPA Rego policy compiled once at construction.
type OPAAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewOPAAuthorizer compiles policy (DefaultRegoPolicy when empty). The policy
// must define data.authguard.authz.allow.
func NewOPAAuthorizer(ctx context.Context, policy string) (*OPAAuthorizer, error) {
	if policy == "" {
		policy = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAAuthorizer{query: q}, nil
}

// Authorize implements Authorizer.
func (a *OPAAuthorizer) Authorize(ctx context.Context, in Input) (bool, error) {
	rs, err := a.query.Eval(ctx, rego.EvalInput(toInput(in)))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck evaluates the compiled policy against a fixed admin-only input.
func (a *OPAAuthorizer) HealthCheck(ctx context.Context) error {
	allowed, err := a.Authorize(ctx, Input{Role: rbac.RoleAdmin, AllowedRoles: []rbac.Role{rbac.RoleAdmin}})
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("policy denied the health check input")
	}
	return nil
}

func toInput(in Input) map[string]interface{} {
	roles := make([]interface{}, len(in.AllowedRoles))
	for i, r := range in.AllowedRoles {
		roles[i] = string(r)
	}
	return map[string]interface{}{
		"user_id":       in.UserID,
		"role":          string(in.Role),
		"allowed_roles": roles,
		"resource":      in.Resource,
	}
}
