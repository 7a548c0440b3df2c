package overtime

import "errors"

var (
	ErrRequestNotFound   = errors.New("overtime: request not found")
	ErrRequesterNotFound = errors.New("overtime: requester not found")
	ErrApproverNotFound  = errors.New("overtime: approver not found")
	// ErrNotAllowed は承認・更新・取消の権限がない場合に返却されます。
	ErrNotAllowed = errors.New("overtime: not allowed")
	// ErrStatusConflict は状態遷移の前提条件を満たさない場合に返却されます。
	ErrStatusConflict   = errors.New("overtime: request status conflict")
	ErrInvalidID        = errors.New("overtime: invalid id")
	ErrInvalidTimeRange = errors.New("overtime: end time before start time")
	// ErrInvalidDayCount は半日刻みでない日数が指定された場合に返却されます。
	ErrInvalidDayCount  = errors.New("overtime: day count must be in half-day steps")
	ErrInvalidHours     = errors.New("overtime: invalid hours")
	ErrInvalidReason    = errors.New("overtime: reason is required")
	ErrInvalidAssignee  = errors.New("overtime: assigned approver does not exist or is inactive")
	ErrInvalidDecision  = errors.New("overtime: invalid decision")
	ErrInvalidStatus    = errors.New("overtime: invalid status")
	ErrInvalidPageSize  = errors.New("overtime: invalid page size")
	ErrInvalidPageToken = errors.New("overtime: invalid page token")
)
