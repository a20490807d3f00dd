package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleViewer, PermissionReadState))
	assert.False(t, HasPermission(RoleViewer, PermissionToggle))
	assert.False(t, HasPermission(RoleViewer, PermissionSetBackend))

	for _, p := range []string{PermissionReadState, PermissionToggle, PermissionSetBackend, PermissionResetStats} {
		assert.True(t, HasPermission(RoleOperator, p), p)
	}

	assert.False(t, HasPermission("", PermissionReadState))
	assert.False(t, HasPermission("root", PermissionToggle))
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission("alice", RoleOperator, PermissionResetStats))

	err := CheckPermission("bob", RoleViewer, PermissionToggle)
	var denied *PermissionDeniedError
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, "bob", denied.Subject)
	assert.Equal(t, PermissionToggle, denied.Permission)
}
