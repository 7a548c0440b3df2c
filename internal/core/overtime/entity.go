package overtime

import "time"

// Status は残業申請の承認状態を表します。単段階の承認で終端へ遷移します。
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// IsValid は既知の状態かどうかを返します。
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal は以降の遷移が許されない状態かどうかを返します。
func (s Status) IsTerminal() bool {
	return s != StatusPending
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

// Request は残業申請エンティティです。承認段階は一つだけです。
type Request struct {
	ID          string
	RequesterID string
	StartTime   time.Time
	EndTime     time.Time
	Hours       float64
	Days        float64
	Reason      string
	Status      Status

	AssignedApproverID *string

	ApproverID *string
	ActedAt    *time.Time
	Comment    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssignedApprover は解決済みの承認者 ID を返します。未解決なら空文字列です。
func (r *Request) AssignedApprover() string {
	if r.AssignedApproverID == nil {
		return ""
	}
	return *r.AssignedApproverID
}
