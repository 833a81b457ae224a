package insight

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const navModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || g(r.sub, p.sub)) && r.obj == p.obj && r.act == p.act
`

// DefaultNavPolicy lets every role see every section except user management
// and the metrics endpoint.
const DefaultNavPolicy = `
p, *, nav.dashboard, view
p, *, nav.reports, view
p, *, nav.editor, view
p, *, nav.alerts, view
p, *, nav.profile, view
p, admin, nav.users, view
p, admin, nav.users, manage
p, admin, ops.metrics, view
`

// Authorizer answers whether a role may act on a navigation object.
type Authorizer interface {
	Allowed(role, object, action string) bool
}

// CasbinAuthorizer is an Authorizer backed by an in-memory casbin enforcer.
type CasbinAuthorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewCasbinAuthorizer loads the navigation model and the given policy lines.
// An empty policy loads DefaultNavPolicy.
func NewCasbinAuthorizer(policy string) (*CasbinAuthorizer, error) {
	m, err := model.NewModelFromString(navModel)
	if err != nil {
		return nil, fmt.Errorf("insight: nav model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("insight: nav enforcer: %w", err)
	}
	if strings.TrimSpace(policy) == "" {
		policy = DefaultNavPolicy
	}
	if err := loadPolicy(enforcer, policy); err != nil {
		return nil, err
	}
	return &CasbinAuthorizer{enforcer: enforcer}, nil
}

// Allowed implements Authorizer. Enforcement errors deny.
func (a *CasbinAuthorizer) Allowed(role, object, action string) bool {
	if a == nil || a.enforcer == nil {
		return false
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = "anonymous"
	}
	ok, err := a.enforcer.Enforce(role, object, action)
	return err == nil && ok
}

func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch {
		case parts[0] == "p" && len(parts) >= 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("insight: add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) >= 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("insight: add grouping policy %v: %w", parts[1:], err)
			}
		}
	}
	return nil
}
