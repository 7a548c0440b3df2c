package leave

import (
	"context"
	"errors"

	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	"github.com/ogurasousui/attendance-approval/internal/core/supervision"
)

// Assigner は申請の承認者を固定の優先順位に従って決定します。
// Directory と分担関係を読むだけで、状態は変更しません。
// 承認者が見つからない場合は空文字列を返します。エラーではなく、
// 申請は未割当のまま残り、人手での差配に委ねられます。
type Assigner struct {
	dir directory.Repository
	sup supervision.Repository
}

// NewAssigner は Assigner を生成します。
func NewAssigner(dir directory.Repository, sup supervision.Repository) *Assigner {
	return &Assigner{dir: dir, sup: sup}
}

// ResolveVP は副社長段階の承認者を決定します。
// 優先順位: 手動指定 > 部署のデフォルト分担 > 任意の分担 > 全社で ID 最小のアクティブ副社長。
func (a *Assigner) ResolveVP(ctx context.Context, req *Request, requester *directory.User) (string, error) {
	if id := req.AssignedVP(); id != "" {
		vp, err := a.dir.FindUserByID(ctx, id)
		if err != nil && !errors.Is(err, directory.ErrUserNotFound) {
			return "", err
		}
		if vp != nil && vp.Role == directory.RoleVicePresident && vp.Active {
			return vp.ID, nil
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
	}

	return a.firstActive(ctx, directory.RoleVicePresident)
}

// ResolveGM は総経理段階の承認者を決定します。
// 優先順位: 手動指定 > 全社で ID 最小のアクティブ総経理。
func (a *Assigner) ResolveGM(ctx context.Context, req *Request) (string, error) {
	if id := req.AssignedGM(); id != "" {
		gm, err := a.dir.FindUserByID(ctx, id)
		if err != nil && !errors.Is(err, directory.ErrUserNotFound) {
			return "", err
		}
		if gm != nil && gm.Role == directory.RoleGeneralManager && gm.Active {
			return gm.ID, nil
		}
	}

	return a.firstActive(ctx, directory.RoleGeneralManager)
}

// resolveSupervisor はデフォルト分担を優先し、なければ任意の分担を返します。
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

func (a *Assigner) firstActive(ctx context.Context, role directory.Role) (string, error) {
	first, err := a.dir.FirstActiveByRole(ctx, role)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}
	return first.ID, nil
}
