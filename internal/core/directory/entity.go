package directory

import "time"

// Role は組織内の役職を表します。
type Role string

const (
	RoleEmployee       Role = "employee"
	RoleDepartmentHead Role = "department_head"
	RoleVicePresident  Role = "vice_president"
	RoleGeneralManager Role = "general_manager"
	RoleAdmin          Role = "admin"
)

// IsValid は既知の役職かどうかを返します。
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleDepartmentHead, RoleVicePresident, RoleGeneralManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanApprove は承認段階を担当できる役職かどうかを返します。
func (r Role) CanApprove() bool {
	switch r {
	case RoleDepartmentHead, RoleVicePresident, RoleGeneralManager:
		return true
	default:
		return false
	}
}

// User は組織内のユーザーエンティティです。
type User struct {
	ID           string
	Name         string
	Role         Role
	DepartmentID *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InDepartment は指定部署に所属しているかどうかを返します。
func (u *User) InDepartment(departmentID string) bool {
	return u.DepartmentID != nil && *u.DepartmentID == departmentID
}

// Department は部署エンティティです。HeadID は部門長ユーザーを指します。
type Department struct {
	ID        string
	Name      string
	HeadID    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
