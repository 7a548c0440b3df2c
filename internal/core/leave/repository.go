package leave

import (
	"context"
	"time"

	"github.com/ogurasousui/attendance-approval/internal/core/directory"
)

// DecisionWrite は状態遷移と同時に書き込む監査記録です。
// Expected が現在の行の状態と一致しない場合、実装は ErrStatusConflict を返します。
type DecisionWrite struct {
	Expected   Status
	Next       Status
	Stage      Stage
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

// Repository は休暇申請永続化の抽象です。
// 状態遷移と承認者の遅延解決は行単位の条件付き更新で実装し、
// 複数インスタンスからの同時操作でも単一の勝者に収束させます。
type Repository interface {
	Create(ctx context.Context, req *Request) (*Request, error)
	FindByID(ctx context.Context, id string) (*Request, error)
	// ApplyDecision は status = Expected の行にのみ遷移と監査記録を適用します。
	ApplyDecision(ctx context.Context, id string, write DecisionWrite) (*Request, error)
	// Cancel は approved / rejected 以外の行を cancelled に更新します。
	Cancel(ctx context.Context, id string, updatedAt time.Time) (*Request, error)
	// AssignVP は assigned_vp_id が未設定の場合のみ書き込み、確定した値を返します。
	// 既に設定済みであれば既存の値が返るため、競合しても結果は収束します。
	AssignVP(ctx context.Context, id, vicePresidentID string, updatedAt time.Time) (string, error)
	// AssignGM は AssignVP と同じ規律で assigned_gm_id を確定させます。
	AssignGM(ctx context.Context, id, generalManagerID string, updatedAt time.Time) (string, error)
	// Delete は cancelled の行のみ物理削除します。
	Delete(ctx context.Context, id string) error
	ListByRequester(ctx context.Context, filter ListFilter) ([]*Request, string, error)
	ListPendingForApprover(ctx context.Context, filter PendingFilter) ([]*Request, error)
	ActiveLeaveTypeExists(ctx context.Context, id string) (bool, error)
}
