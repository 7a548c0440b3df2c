package leave

import "errors"

var (
	ErrRequestNotFound   = errors.New("leave: request not found")
	ErrRequesterNotFound = errors.New("leave: requester not found")
	ErrApproverNotFound  = errors.New("leave: approver not found")
	ErrLeaveTypeNotFound = errors.New("leave: leave type not found")
	// ErrNotAllowed は承認・取消の権限がない場合に返却されます。
	// ラップ元のメッセージに判定理由が含まれ、そのまま利用者へ提示できます。
	ErrNotAllowed = errors.New("leave: not allowed")
	// ErrStatusConflict は状態遷移の前提条件を満たさない場合に返却されます。
	// 競合する承認操作に敗けた側もこのエラーを受け取ります。
	ErrStatusConflict   = errors.New("leave: request status conflict")
	ErrInvalidID        = errors.New("leave: invalid id")
	ErrInvalidDateRange = errors.New("leave: end date before start date")
	ErrInvalidDayCount  = errors.New("leave: invalid day count")
	ErrInvalidReason    = errors.New("leave: reason is required")
	ErrInvalidAssignee  = errors.New("leave: assigned approver does not exist or is inactive")
	ErrInvalidDecision  = errors.New("leave: invalid decision")
	ErrInvalidStatus    = errors.New("leave: invalid status")
	ErrInvalidPageSize  = errors.New("leave: invalid page size")
	ErrInvalidPageToken = errors.New("leave: invalid page token")
)
