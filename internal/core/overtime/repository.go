package overtime

import (
	"context"
	"time"

	"github.com/ogurasousui/attendance-approval/internal/core/directory"
)

// DecisionWrite は状態遷移と同時に書き込む監査記録です。
type DecisionWrite struct {
	Next       Status
	ApproverID string
	ActedAt    time.Time
	Comment    *string
}

// ListFilter は申請一覧取得用フィルタです。
type ListFilter struct {
	RequesterID string
	Status      *Status
	Limit       int
	Offset      int
}

// PendingFilter は承認待ち一覧取得用フィルタです。
type PendingFilter struct {
	ApproverID   string
	Role         directory.Role
	DepartmentID *string
	Limit        int
	Offset       int
}

// Repository は残業申請永続化の抽象です。
// 休暇申請と同じく、遷移と遅延割当は行単位の条件付き更新で収束させます。
type Repository interface {
	Create(ctx context.Context, req *Request) (*Request, error)
	Update(ctx context.Context, req *Request) (*Request, error)
	FindByID(ctx context.Context, id string) (*Request, error)
	// ApplyDecision は status = pending の行にのみ遷移と監査記録を適用します。
	ApplyDecision(ctx context.Context, id string, write DecisionWrite) (*Request, error)
	// Cancel は approved / rejected 以外の行を cancelled に更新します。
	Cancel(ctx context.Context, id string, updatedAt time.Time) (*Request, error)
	// AssignApprover は assigned_approver_id が未設定の場合のみ書き込み、確定した値を返します。
	AssignApprover(ctx context.Context, id, approverID string, updatedAt time.Time) (string, error)
	// Delete は cancelled の行のみ物理削除します。
	Delete(ctx context.Context, id string) error
	ListByRequester(ctx context.Context, filter ListFilter) ([]*Request, string, error)
	ListPendingForApprover(ctx context.Context, filter PendingFilter) ([]*Request, error)
}
