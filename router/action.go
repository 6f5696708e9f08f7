package router

import (
	"net/http"

	"github.com/forbearing/crudgate/rbac"
)

// Action is the closed set of values the `action` query parameter can
// resolve to (§9's "stringly-typed action dispatch" redesign note):
// the string arrives once at ParseAction and every downstream stage —
// including RBAC category mapping — switches on this type instead of
// re-comparing strings.
type Action string

const (
	ActionTables     Action = "tables"
	ActionColumns    Action = "columns"
	ActionList       Action = "list"
	ActionCount      Action = "count"
	ActionRead       Action = "read"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionBulkCreate Action = "bulk_create"
	ActionBulkDelete Action = "bulk_delete"
	ActionOpenAPI    Action = "openapi"
	ActionLogin      Action = "login"
)

// actionSpec describes what an Action requires and how it maps to the
// response-cache/RBAC/HTTP-method surface, per §6's action table and
// §4.10's action-to-category mapping.
type actionSpec struct {
	requiresTable bool
	requiresID    bool
	requiresBody  bool
	cacheable     bool
	mutates       bool
	methods       []string
	rbac          rbac.Action
	hasRBAC       bool
}

var actionSpecs = map[Action]actionSpec{
	ActionTables:     {methods: []string{http.MethodGet}},
	ActionColumns:    {requiresTable: true, methods: []string{http.MethodGet}},
	ActionList:       {requiresTable: true, cacheable: true, methods: []string{http.MethodGet}, rbac: rbac.ActionList, hasRBAC: true},
	ActionCount:      {requiresTable: true, cacheable: true, methods: []string{http.MethodGet}, rbac: rbac.ActionList, hasRBAC: true},
	ActionRead:       {requiresTable: true, requiresID: true, cacheable: true, methods: []string{http.MethodGet}, rbac: rbac.ActionRead, hasRBAC: true},
	ActionCreate:     {requiresTable: true, requiresBody: true, mutates: true, methods: []string{http.MethodPost}, rbac: rbac.ActionCreate, hasRBAC: true},
	ActionUpdate:     {requiresTable: true, requiresID: true, requiresBody: true, mutates: true, methods: []string{http.MethodPost, http.MethodPut}, rbac: rbac.ActionUpdate, hasRBAC: true},
	ActionDelete:     {requiresTable: true, requiresID: true, mutates: true, methods: []string{http.MethodPost, http.MethodDelete}, rbac: rbac.ActionDelete, hasRBAC: true},
	ActionBulkCreate: {requiresTable: true, requiresBody: true, mutates: true, methods: []string{http.MethodPost}, rbac: rbac.ActionCreate, hasRBAC: true},
	ActionBulkDelete: {requiresTable: true, requiresBody: true, mutates: true, methods: []string{http.MethodPost}, rbac: rbac.ActionDelete, hasRBAC: true},
	ActionOpenAPI:    {methods: []string{http.MethodGet}},
	ActionLogin:      {requiresBody: true, methods: []string{http.MethodPost}},
}

// ParseAction resolves the raw `action` query value to a known
// Action, or false if it names nothing this router understands.
func ParseAction(raw string) (Action, bool) {
	a := Action(raw)
	_, ok := actionSpecs[a]
	return a, ok
}

func (a Action) spec() actionSpec { return actionSpecs[a] }

func (a Action) allowsMethod(method string) bool {
	for _, m := range a.spec().methods {
		if m == method {
			return true
		}
	}
	return false
}
