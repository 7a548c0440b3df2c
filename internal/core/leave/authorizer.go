package leave

import (
	"context"
	"errors"

	"github.com/ogurasousui/attendance-approval/internal/core/directory"
)

// Authorizer は「この申請を今この人が承認できるか」を判定します。
// 状態は一切変更しません。未解決の承認者は Service.EnsureAssigned が
// 事前に確定させるため、ここでは割当済みの値を読むだけです。
type Authorizer struct {
	dir directory.Repository
}

// NewAuthorizer は Authorizer を生成します。
func NewAuthorizer(dir directory.Repository) *Authorizer {
	return &Authorizer{dir: dir}
}

// Authorize は actor が req を承認できるかを返します。
// 拒否時は利用者へそのまま提示できる理由を返します。理由は常に非空です。
func (az *Authorizer) Authorize(ctx context.Context, req *Request, actor *directory.User) (bool, string, error) {
	requester, err := az.dir.FindUserByID(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return false, "requester no longer exists", nil
		}
		return false, "", err
	}

	// 本人申請の特例。副社長は自分に割り当てられた pending の自申請を、
	// 総経理は pending の自申請を常に承認できます。
	if actor.Role == directory.RoleVicePresident && req.RequesterID == actor.ID {
		if req.Status == StatusPending && req.AssignedVP() == actor.ID {
			return true, "", nil
		}
	}
	if actor.Role == directory.RoleGeneralManager && req.RequesterID == actor.ID {
		if req.Status == StatusPending {
			return true, "", nil
		}
	}

	switch actor.Role {
	case directory.RoleDepartmentHead:
		if req.Status != StatusPending {
			return false, "request is not awaiting department approval", nil
		}
		if requester.DepartmentID == nil || actor.DepartmentID == nil || *requester.DepartmentID != *actor.DepartmentID {
			return false, "you can only approve requests from your own department", nil
		}
		return true, "", nil

	case directory.RoleVicePresident:
		if req.Status == StatusPending {
			// 副社長が別の副社長の申請を割当先として承認する場合。
			if requester.Role == directory.RoleVicePresident && req.AssignedVP() == actor.ID {
				return true, "", nil
			}
			// 副社長が部門長を兼ねている部署の申請を承認する場合。
			if requester.DepartmentID != nil {
				dept, err := az.dir.FindDepartmentByID(ctx, *requester.DepartmentID)
				if err != nil && !errors.Is(err, directory.ErrDepartmentNotFound) {
					return false, "", err
				}
				if dept != nil && dept.HeadID != nil && *dept.HeadID == actor.ID {
					return true, "", nil
				}
			}
			return false, "request is not awaiting your approval", nil
		}
		if req.Status != StatusDeptApproved {
			return false, "request is not awaiting vice president approval", nil
		}
		if req.AssignedVP() != actor.ID {
			return false, "request is not assigned to you", nil
		}
		return true, "", nil

	case directory.RoleGeneralManager:
		if req.Status != StatusVPApproved {
			return false, "request is not awaiting general manager approval", nil
		}
		// 割当が未指定であればアクティブな総経理の誰でも承認できます。
		if gm := req.AssignedGM(); gm != "" && gm != actor.ID {
			return false, "request is not assigned to you", nil
		}
		return true, "", nil

	case directory.RoleAdmin:
		return true, "", nil

	default:
		return false, "insufficient role", nil
	}
}
