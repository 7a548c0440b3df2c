package leave

import "time"

// Status は休暇申請の承認状態を表します。
// pending → dept_approved → vp_approved → approved と前進し、
// rejected / cancelled へは非終端状態から直接遷移します。後退はしません。
type Status string

const (
	StatusPending      Status = "pending"
	StatusDeptApproved Status = "dept_approved"
	StatusVPApproved   Status = "vp_approved"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusCancelled    Status = "cancelled"
)

// IsValid は既知の状態かどうかを返します。
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDeptApproved, StatusVPApproved, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal は以降の遷移が許されない状態かどうかを返します。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Decision は承認操作の判断を表します。
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid は既知の判断かどうかを返します。
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionReject:
		return true
	default:
		return false
	}
}

// Stage は承認段階を表します。
type Stage string

const (
	StageDepartment     Stage = "department"
	StageVicePresident  Stage = "vice_president"
	StageGeneralManager Stage = "general_manager"
)

// Request は休暇申請エンティティです。
// AssignedVPID / AssignedGMID は作成時の手動指定または遅延解決の結果で、
// 一度設定された値はその段階が終わるまで固定です。
type Request struct {
	ID          string
	RequesterID string
	StartDate   time.Time
	EndDate     time.Time
	Days        float64
	Reason      string
	LeaveTypeID string
	Status      Status

	AssignedVPID *string
	AssignedGMID *string

	DeptApproverID *string
	DeptActedAt    *time.Time
	DeptComment    *string
	VPApproverID   *string
	VPActedAt      *time.Time
	VPComment      *string
	GMApproverID   *string
	GMActedAt      *time.Time
	GMComment      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssignedVP は解決済みの副社長 ID を返します。未解決なら空文字列です。
func (r *Request) AssignedVP() string {
	if r.AssignedVPID == nil {
		return ""
	}
	return *r.AssignedVPID
}

// AssignedGM は解決済みの総経理 ID を返します。未解決なら空文字列です。
func (r *Request) AssignedGM() string {
	if r.AssignedGMID == nil {
		return ""
	}
	return *r.AssignedGMID
}
