package rbac

// 权限常量
const (
	// 只读
	PermissionReadState = "state:read"

	// 改变 pipeline 行为
	PermissionToggle     = "triage:toggle"
	PermissionSetBackend = "backend:write"
	PermissionResetStats = "stats:reset"
)

// 角色常量
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleViewer: {
		PermissionReadState,
	},
	RoleOperator: {
		PermissionReadState,
		PermissionToggle,
		PermissionSetBackend,
		PermissionResetStats,
	},
}

// ValidRole 是否是已知角色
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限，未知角色没有任何权限
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(subject, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Subject:    subject,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Subject    string
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
