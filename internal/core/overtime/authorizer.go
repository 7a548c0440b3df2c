package overtime

import (
	"context"
	"errors"

	"github.com/ogurasousui/attendance-approval/internal/core/directory"
)

// Authorizer は残業申請の承認可否を判定します。状態は変更しません。
type Authorizer struct {
	dir directory.Repository
}

// NewAuthorizer は Authorizer を生成します。
func NewAuthorizer(dir directory.Repository) *Authorizer {
	return &Authorizer{dir: dir}
}

// Authorize は actor が req を承認できるかを返します。
// 拒否時の理由は常に非空で、そのまま利用者へ提示できます。
func (az *Authorizer) Authorize(ctx context.Context, req *Request, actor *directory.User) (bool, string, error) {
	requester, err := az.dir.FindUserByID(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return false, "requester no longer exists", nil
		}
		return false, "", err
	}

	if req.Status != StatusPending {
		return false, "request is not awaiting approval", nil
	}

	// 本人申請の特例。副社長は自分に割り当てられた自申請を、総経理は自申請を常に承認できます。
	if actor.Role == directory.RoleVicePresident && req.RequesterID == actor.ID {
		if req.AssignedApprover() == actor.ID {
			return true, "", nil
		}
	}
	if actor.Role == directory.RoleGeneralManager && req.RequesterID == actor.ID {
		return true, "", nil
	}

	switch actor.Role {
	case directory.RoleDepartmentHead:
		if requester.DepartmentID == nil || actor.DepartmentID == nil || *requester.DepartmentID != *actor.DepartmentID {
			return false, "you can only approve requests from your own department", nil
		}
		return true, "", nil

	case directory.RoleVicePresident:
		if req.AssignedApprover() != actor.ID {
			return false, "request is not assigned to you", nil
		}
		return true, "", nil

	case directory.RoleGeneralManager:
		if assigned := req.AssignedApprover(); assigned != "" && assigned != actor.ID {
			return false, "request is not assigned to you", nil
		}
		return true, "", nil

	case directory.RoleAdmin:
		return true, "", nil

	default:
		return false, "insufficient role", nil
	}
}
