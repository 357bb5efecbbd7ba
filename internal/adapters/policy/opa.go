// Package policy evaluates role-based access rules with Open Policy Agent.
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/samirrijal/civicconnect/internal/core/ports"
)

//go:embed authz.rego
var authzModule string

const allowQuery = "data.civicconnect.authz.allow"

// Actions checked by the HTTP layer.
const (
	ActionIssueReport         = "issue:report"
	ActionIssueReadOwn        = "issue:read_own"
	ActionIssueWithdraw       = "issue:withdraw"
	ActionPredict             = "predict"
	ActionOfficerRead         = "officer:read"
	ActionOfficerUpdateStatus = "officer:update_status"
	ActionGraphQL             = "graphql:query"
	ActionFeedSubscribe       = "feed:subscribe"
	ActionAdminUsers          = "admin:users"
	ActionAdminIssues         = "admin:issues"
)

// Engine implements ports.Authorizer with a prepared Rego query.
type Engine struct {
	query rego.PreparedEvalQuery
}

// New compiles the embedded policy.
func New(ctx context.Context) (*Engine, error) {
	return NewFromSource(ctx, authzModule)
}

// NewFromSource compiles a policy module that defines
// data.civicconnect.authz.allow.
func NewFromSource(ctx context.Context, module string) (*Engine, error) {
	prepared, err := rego.New(
		rego.Query(allowQuery),
		rego.Module("authz.rego", module),
		rego.StrictBuiltinErrors(true),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &Engine{query: prepared}, nil
}

// Allow evaluates the policy for in. An undefined result denies.
func (e *Engine) Allow(ctx context.Context, in ports.AuthzInput) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	return rs.Allowed(), nil
}
