// Package policy decides route access with an embedded OPA Rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// RouteClass is the access tier of a request path.
type RouteClass string

const (
	RouteStatic    RouteClass = "static"
	RoutePublic    RouteClass = "public"
	RouteProtected RouteClass = "protected"
	RouteAdmin     RouteClass = "admin"
)

// Decision is the outcome of an access check.
type Decision string

const (
	Allow           Decision = "allow"
	Unauthenticated Decision = "unauthenticated"
	Forbidden       Decision = "forbidden"
	Deny            Decision = "deny"
)

const accessQuery = "data.secretvault.access.decision"

const accessPolicy = `package secretvault.access

default decision = "deny"

decision = "allow" if {
	input.route_class == "static"
}

decision = "allow" if {
	input.route_class == "public"
}

decision = "allow" if {
	input.route_class == "protected"
	input.authenticated
}

decision = "allow" if {
	input.route_class == "admin"
	input.authenticated
	input.role == "admin"
}

decision = "unauthenticated" if {
	protected_class
	not input.authenticated
}

decision = "forbidden" if {
	input.route_class == "admin"
	input.authenticated
	input.role != "admin"
}

protected_class if input.route_class == "protected"

protected_class if input.route_class == "admin"
`

// Input is what the policy sees about a request.
type Input struct {
	RouteClass    RouteClass
	Authenticated bool
	Role          string
}

// Engine evaluates the access policy. The query is compiled once and is safe
// for concurrent use.
type Engine struct {
	query rego.PreparedEvalQuery
}

// New compiles the access policy.
func New(ctx context.Context) (*Engine, error) {
	compiler, err := ast.CompileModules(map[string]string{"access.rego": accessPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}

	query, err := rego.New(
		rego.Query(accessQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare access policy: %w", err)
	}

	return &Engine{query: query}, nil
}

// Decide evaluates the policy for in. Anything the policy does not explicitly
// allow comes back as Deny.
func (e *Engine) Decide(ctx context.Context, in Input) (Decision, error) {
	input := map[string]interface{}{
		"route_class":   string(in.RouteClass),
		"authenticated": in.Authenticated,
		"role":          in.Role,
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Deny, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Deny, fmt.Errorf("access policy returned no result")
	}

	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return Deny, fmt.Errorf("access policy returned %T, want string", rs[0].Expressions[0].Value)
	}

	switch d := Decision(s); d {
	case Allow, Unauthenticated, Forbidden:
		return d, nil
	default:
		return Deny, nil
	}
}
