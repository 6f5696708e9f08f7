package router

import (
	"net/http"
	"testing"

	"github.com/forbearing/crudgate/rbac"
	"github.com/stretchr/testify/assert"
)

func TestParseAction_Known(t *testing.T) {
	a, ok := ParseAction("list")
	assert.True(t, ok)
	assert.Equal(t, ActionList, a)
}

func TestParseAction_Unknown(t *testing.T) {
	_, ok := ParseAction("drop_table")
	assert.False(t, ok)
}

func TestActionSpec_List(t *testing.T) {
	s := ActionList.spec()
	assert.True(t, s.requiresTable)
	assert.False(t, s.requiresID)
	assert.True(t, s.cacheable)
	assert.False(t, s.mutates)
	assert.True(t, s.hasRBAC)
	assert.Equal(t, rbac.ActionList, s.rbac)
}

func TestActionSpec_Update_AllowsPostAndPut(t *testing.T) {
	assert.True(t, ActionUpdate.allowsMethod(http.MethodPost))
	assert.True(t, ActionUpdate.allowsMethod(http.MethodPut))
	assert.False(t, ActionUpdate.allowsMethod(http.MethodDelete))
}

func TestActionSpec_Tables_NoRBACNoTable(t *testing.T) {
	s := ActionTables.spec()
	assert.False(t, s.requiresTable)
	assert.False(t, s.hasRBAC)
}

func TestActionSpec_BulkDelete_RequiresBodyNotID(t *testing.T) {
	s := ActionBulkDelete.spec()
	assert.True(t, s.requiresBody)
	assert.False(t, s.requiresID)
	assert.True(t, s.mutates)
	assert.Equal(t, rbac.ActionDelete, s.rbac)
}
