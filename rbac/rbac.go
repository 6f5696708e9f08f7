// Package rbac implements the spec's deny-by-default role/table/action
// decision table. Grounded on the pack's simpler
// canonica-labs/internal/auth.AuthorizationService pattern (a
// mutex-guarded map) rather than the teacher's Casbin-backed RBAC:
// Casbin's policy/effect model cannot directly express "an explicit
// but empty rule denies regardless of a wildcard grant" without a
// custom matcher, and this decision table is small and total, so a
// plain map is the correct fit. See DESIGN.md for the full
// justification of dropping Casbin.
package rbac

import "sync"

// Action is the closed set of RBAC action categories the router maps
// HTTP actions onto (§4.10's action-to-category table).
type Action string

const (
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Wildcard is the table key matching every table not given an
// explicit entry.
const Wildcard = "*"

// RBAC decides (role, table, action) -> allow/deny.
type RBAC struct {
	mu    sync.RWMutex
	rules map[string]map[string]map[Action]bool // role -> table -> action set
}

// New builds an RBAC instance from the configured role -> table ->
// action-list rules (config.Roles.Rules).
func New(rules map[string]map[string][]string) *RBAC {
	r := &RBAC{rules: make(map[string]map[string]map[Action]bool, len(rules))}
	for role, tables := range rules {
		tm := make(map[string]map[Action]bool, len(tables))
		for table, actions := range tables {
			set := make(map[Action]bool, len(actions))
			for _, a := range actions {
				set[Action(a)] = true
			}
			tm[table] = set
		}
		r.rules[role] = tm
	}
	return r
}

// IsAllowed implements the exact precedence rule from §4.5:
//  1. Unknown role -> deny.
//  2. Explicit entry for table, even if its action set is empty ->
//     decided by that set alone (empty set denies), regardless of "*".
//  3. Else fall back to the wildcard entry's action set, if any.
//  4. Else deny.
func (r *RBAC) IsAllowed(role, table string, action Action) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tables, ok := r.rules[role]
	if !ok {
		return false
	}
	if set, ok := tables[table]; ok {
		return set[action]
	}
	if set, ok := tables[Wildcard]; ok {
		return set[action]
	}
	return false
}

// Grant and Deny allow runtime rule adjustment (e.g. an admin
// action), guarded by the same mutex as reads so no caller ever
// observes a torn rule set.
func (r *RBAC) Grant(role, table string, actions ...Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rules[role] == nil {
		r.rules[role] = make(map[string]map[Action]bool)
	}
	if r.rules[role][table] == nil {
		r.rules[role][table] = make(map[Action]bool)
	}
	for _, a := range actions {
		r.rules[role][table][a] = true
	}
}

// Deny installs an explicit, empty rule for (role, table), which
// takes precedence over any wildcard grant for that table.
func (r *RBAC) Deny(role, table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rules[role] == nil {
		r.rules[role] = make(map[string]map[Action]bool)
	}
	r.rules[role][table] = make(map[Action]bool)
}

// ActionForHTTPAction maps the request's `action` query parameter to
// an RBAC category, per §4.10.
func ActionForHTTPAction(httpAction string) (Action, bool) {
	switch httpAction {
	case "list", "count":
		return ActionList, true
	case "read":
		return ActionRead, true
	case "create", "bulk_create":
		return ActionCreate, true
	case "update":
		return ActionUpdate, true
	case "delete", "bulk_delete":
		return ActionDelete, true
	default:
		return "", false // administrative actions: unguarded or handled by Authenticator itself
	}
}
