package overtime

import (
	"context"
	"errors"

	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	"github.com/ogurasousui/attendance-approval/internal/core/supervision"
)

// Assigner は残業申請の承認者を固定の優先順位に従って決定します。
// 見つからない場合は空文字列を返し、エラーにはしません。
type Assigner struct {
	dir directory.Repository
	sup supervision.Repository
}

// NewAssigner は Assigner を生成します。
func NewAssigner(dir directory.Repository, sup supervision.Repository) *Assigner {
	return &Assigner{dir: dir, sup: sup}
}

// ResolveApprover は残業申請の承認者を決定します。
// 優先順位: 手動指定 > 部署の分担副社長（デフォルト優先） > 部門長 >
// ID 最小のアクティブ副社長 > ID 最小のアクティブ総経理。
func (a *Assigner) ResolveApprover(ctx context.Context, req *Request, requester *directory.User) (string, error) {
	if id := req.AssignedApprover(); id != "" {
		approver, err := a.dir.FindUserByID(ctx, id)
		if err != nil && !errors.Is(err, directory.ErrUserNotFound) {
			return "", err
		}
		if approver != nil && approver.Active && approver.Role.CanApprove() {
			return approver.ID, nil
		}
	}

	if requester.DepartmentID != nil {
		id, err := a.resolveSupervisor(ctx, *requester.DepartmentID)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}

		id, err = a.resolveDepartmentHead(ctx, *requester.DepartmentID)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}

	for _, role := range []directory.Role{directory.RoleVicePresident, directory.RoleGeneralManager} {
		first, err := a.dir.FirstActiveByRole(ctx, role)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				continue
			}
			return "", err
		}
		return first.ID, nil
	}

	return "", nil
}

func (a *Assigner) resolveSupervisor(ctx context.Context, departmentID string) (string, error) {
	link, err := a.sup.FindDefaultByDepartment(ctx, departmentID)
	if err != nil && !errors.Is(err, supervision.ErrLinkNotFound) {
		return "", err
	}
	if link != nil {
		return link.VicePresidentID, nil
	}

	link, err = a.sup.FindAnyByDepartment(ctx, departmentID)
	if err != nil && !errors.Is(err, supervision.ErrLinkNotFound) {
		return "", err
	}
	if link != nil {
		return link.VicePresidentID, nil
	}

	return "", nil
}

func (a *Assigner) resolveDepartmentHead(ctx context.Context, departmentID string) (string, error) {
	dept, err := a.dir.FindDepartmentByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, directory.ErrDepartmentNotFound) {
			return "", nil
		}
		return "", err
	}
	if dept.HeadID == nil {
		return "", nil
	}

	head, err := a.dir.FindUserByID(ctx, *dept.HeadID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}
	if !head.Active {
		return "", nil
	}
	return head.ID, nil
}
