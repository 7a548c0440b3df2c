package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	"github.com/ogurasousui/attendance-approval/internal/core/leave"
	pgdb "github.com/ogurasousui/attendance-approval/internal/platform/db/postgres"
)

const (
	leaveForeignKeyViolationCode = "23503"
	leaveCheckViolationCode      = "23514"

	leaveRequesterConstraint = "leave_requests_requester_id_fkey"
	leaveTypeConstraint      = "leave_requests_leave_type_id_fkey"
	leaveDateRangeConstraint = "leave_requests_date_range_check"
)

const leaveRequestColumns = `id, requester_id, start_date, end_date, days, reason, leave_type_id, status,
               assigned_vp_id, assigned_gm_id,
               dept_approver_id, dept_acted_at, dept_comment,
               vp_approver_id, vp_acted_at, vp_comment,
               gm_approver_id, gm_acted_at, gm_comment,
               created_at, updated_at`

// LeaveRepository は PostgreSQL を利用した休暇申請永続化の実装です。
// 状態遷移と承認者割当は単一の条件付き UPDATE で行い、行ロックに頼らず
// 競合時も一方だけが勝つことを保証します。
type LeaveRepository struct {
	pool pgdb.Queryer
}

// NewLeaveRepository は LeaveRepository を生成します。
func NewLeaveRepository(pool pgdb.Queryer) *LeaveRepository {
	return &LeaveRepository{pool: pool}
}

// Create は休暇申請を新規作成します。
func (r *LeaveRepository) Create(ctx context.Context, req *leave.Request) (*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO leave_requests (
            id, requester_id, start_date, end_date, days, reason, leave_type_id, status,
            assigned_vp_id, assigned_gm_id, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING `+leaveRequestColumns+`
    `,
		req.ID,
		req.RequesterID,
		req.StartDate,
		req.EndDate,
		req.Days,
		req.Reason,
		req.LeaveTypeID,
		string(req.Status),
		stringOrNil(req.AssignedVPID),
		stringOrNil(req.AssignedGMID),
		req.CreatedAt,
		req.UpdatedAt,
	)

	created, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	return created, nil
}

// FindByID は ID で休暇申請を取得します。
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+leaveRequestColumns+`
          FROM leave_requests
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	return found, nil
}

// ApplyDecision は期待した状態の行にのみ遷移と監査記録を適用します。
// 行の状態が Expected と異なる場合は更新されず ErrStatusConflict を返します。
func (r *LeaveRepository) ApplyDecision(ctx context.Context, id string, write leave.DecisionWrite) (*leave.Request, error) {
	var approverCol, actedAtCol, commentCol string
	switch write.Stage {
	case leave.StageDepartment:
		approverCol, actedAtCol, commentCol = "dept_approver_id", "dept_acted_at", "dept_comment"
	case leave.StageVicePresident:
		approverCol, actedAtCol, commentCol = "vp_approver_id", "vp_acted_at", "vp_comment"
	case leave.StageGeneralManager:
		approverCol, actedAtCol, commentCol = "gm_approver_id", "gm_acted_at", "gm_comment"
	default:
		return nil, leave.ErrInvalidStatus
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE leave_requests
           SET status = $3,
               `+approverCol+` = $4,
               `+actedAtCol+` = $5,
               `+commentCol+` = $6,
               updated_at = $5
         WHERE id = $1 AND status = $2
        RETURNING `+leaveRequestColumns+`
    `,
		id,
		string(write.Expected),
		string(write.Next),
		write.ApproverID,
		write.ActedAt,
		stringOrNil(write.Comment),
	)

	updated, err := scanLeaveRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.resolveConflict(ctx, id)
		}
		return nil, translateLeavePgError(err)
	}
	return updated, nil
}

// Cancel は終端状態でない行を cancelled に更新します。
// 取消済みの行への再取消は成功扱いです。
func (r *LeaveRepository) Cancel(ctx context.Context, id string, updatedAt time.Time) (*leave.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE leave_requests
           SET status = 'cancelled',
               updated_at = $2
         WHERE id = $1 AND status NOT IN ('approved', 'rejected')
        RETURNING `+leaveRequestColumns+`
    `, id, updatedAt)

	cancelled, err := scanLeaveRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.resolveConflict(ctx, id)
		}
		return nil, translateLeavePgError(err)
	}
	return cancelled, nil
}

// AssignVP は assigned_vp_id が未設定の行にのみ $2 を書き込み、確定値を返します。
// 競合した場合も先に書き込まれた値が全員に返ります。
func (r *LeaveRepository) AssignVP(ctx context.Context, id, vicePresidentID string, updatedAt time.Time) (string, error) {
	return r.assignApprover(ctx, "assigned_vp_id", id, vicePresidentID, updatedAt)
}

// AssignGM は AssignVP と同じ規律で assigned_gm_id を確定させます。
func (r *LeaveRepository) AssignGM(ctx context.Context, id, generalManagerID string, updatedAt time.Time) (string, error) {
	return r.assignApprover(ctx, "assigned_gm_id", id, generalManagerID, updatedAt)
}

func (r *LeaveRepository) assignApprover(ctx context.Context, column, id, approverID string, updatedAt time.Time) (string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE leave_requests
           SET `+column+` = COALESCE(`+column+`, $2),
               updated_at = CASE WHEN `+column+` IS NULL THEN $3 ELSE updated_at END
         WHERE id = $1
        RETURNING `+column+`
    `, id, approverID, updatedAt)

	var assigned string
	if err := row.Scan(&assigned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", leave.ErrRequestNotFound
		}
		return "", translateLeavePgError(err)
	}
	return assigned, nil
}

// Delete は cancelled の行のみ物理削除します。
func (r *LeaveRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM leave_requests WHERE id = $1 AND status = 'cancelled'`, id)
	if err != nil {
		return translateLeavePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return r.resolveConflict(ctx, id)
	}
	return nil
}

// ListByRequester は申請者の休暇申請一覧を取得します。
func (r *LeaveRepository) ListByRequester(ctx context.Context, filter leave.ListFilter) ([]*leave.Request, string, error) {
	if strings.TrimSpace(filter.RequesterID) == "" {
		return nil, "", leave.ErrInvalidID
	}
	if filter.Limit <= 0 {
		return nil, "", leave.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", leave.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	requesterPlaceholder := "$" + strconv.Itoa(len(args)+1)
	conditions = append(conditions, "requester_id = "+requesterPlaceholder)
	args = append(args, filter.RequesterID)

	if filter.Status != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "status = "+placeholder)
		args = append(args, string(*filter.Status))
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT ` + leaveRequestColumns + `
          FROM leave_requests` + whereClause + `
         ORDER BY created_at DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateLeavePgError(err)
	}
	defer rows.Close()

	requests := make([]*leave.Request, 0, filter.Limit)
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, "", translateLeavePgError(err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateLeavePgError(err)
	}

	var nextToken string
	if len(requests) == limitWithBuffer {
		requests = requests[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return requests, nextToken, nil
}

// ListPendingForApprover は承認者の役割ごとに処理待ちの申請を取得します。
func (r *LeaveRepository) ListPendingForApprover(ctx context.Context, filter leave.PendingFilter) ([]*leave.Request, error) {
	if filter.Limit <= 0 {
		return nil, leave.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, leave.ErrInvalidPageToken
	}

	var (
		query string
		args  []any
	)

	switch filter.Role {
	case directory.RoleDepartmentHead:
		// 所属部署が未設定の部署長に届く申請はありません。
		if filter.DepartmentID == nil {
			return []*leave.Request{}, nil
		}
		query = `
        SELECT ` + prefixLeaveColumns("r") + `
          FROM leave_requests r
          JOIN users u ON u.id = r.requester_id
         WHERE r.status = 'pending'
           AND u.department_id = $1
         ORDER BY r.created_at, r.id
         LIMIT $2
        OFFSET $3
    `
		args = []any{*filter.DepartmentID, filter.Limit, filter.Offset}
	case directory.RoleVicePresident:
		query = `
        SELECT ` + leaveRequestColumns + `
          FROM leave_requests
         WHERE status = 'dept_approved'
           AND assigned_vp_id = $1
         ORDER BY created_at, id
         LIMIT $2
        OFFSET $3
    `
		args = []any{filter.ApproverID, filter.Limit, filter.Offset}
	case directory.RoleGeneralManager:
		query = `
        SELECT ` + leaveRequestColumns + `
          FROM leave_requests
         WHERE status = 'vp_approved'
           AND (assigned_gm_id IS NULL OR assigned_gm_id = $1)
         ORDER BY created_at, id
         LIMIT $2
        OFFSET $3
    `
		args = []any{filter.ApproverID, filter.Limit, filter.Offset}
	default:
		return nil, leave.ErrNotAllowed
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateLeavePgError(err)
	}
	defer rows.Close()

	requests := make([]*leave.Request, 0, filter.Limit)
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, translateLeavePgError(err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, translateLeavePgError(err)
	}

	return requests, nil
}

// ActiveLeaveTypeExists はアクティブな休暇種別の存在を確認します。
func (r *LeaveRepository) ActiveLeaveTypeExists(ctx context.Context, id string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM leave_types WHERE id = $1 AND is_active)
    `, id)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, translateLeavePgError(err)
	}
	return exists, nil
}

// resolveConflict は条件付き更新が空振りした原因を行の有無で切り分けます。
func (r *LeaveRepository) resolveConflict(ctx context.Context, id string) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return leave.ErrStatusConflict
}

func prefixLeaveColumns(alias string) string {
	cols := strings.Split(leaveRequestColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanLeaveRequest(row pgx.Row) (*leave.Request, error) {
	var (
		id             string
		requesterID    string
		startDate      time.Time
		endDate        time.Time
		days           float64
		reason         string
		leaveTypeID    string
		status         string
		assignedVPID   sql.NullString
		assignedGMID   sql.NullString
		deptApproverID sql.NullString
		deptActedAt    sql.NullTime
		deptComment    sql.NullString
		vpApproverID   sql.NullString
		vpActedAt      sql.NullTime
		vpComment      sql.NullString
		gmApproverID   sql.NullString
		gmActedAt      sql.NullTime
		gmComment      sql.NullString
		createdAt      time.Time
		updatedAt      time.Time
	)

	if err := row.Scan(
		&id,
		&requesterID,
		&startDate,
		&endDate,
		&days,
		&reason,
		&leaveTypeID,
		&status,
		&assignedVPID,
		&assignedGMID,
		&deptApproverID,
		&deptActedAt,
		&deptComment,
		&vpApproverID,
		&vpActedAt,
		&vpComment,
		&gmApproverID,
		&gmActedAt,
		&gmComment,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, leave.ErrRequestNotFound
		}
		return nil, err
	}

	return &leave.Request{
		ID:             id,
		RequesterID:    requesterID,
		StartDate:      startDate,
		EndDate:        endDate,
		Days:           days,
		Reason:         reason,
		LeaveTypeID:    leaveTypeID,
		Status:         leave.Status(status),
		AssignedVPID:   nullableString(assignedVPID),
		AssignedGMID:   nullableString(assignedGMID),
		DeptApproverID: nullableString(deptApproverID),
		DeptActedAt:    nullableTime(deptActedAt),
		DeptComment:    nullableString(deptComment),
		VPApproverID:   nullableString(vpApproverID),
		VPActedAt:      nullableTime(vpActedAt),
		VPComment:      nullableString(vpComment),
		GMApproverID:   nullableString(gmApproverID),
		GMActedAt:      nullableTime(gmActedAt),
		GMComment:      nullableString(gmComment),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func translateLeavePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return leave.ErrRequestNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case leaveForeignKeyViolationCode:
			switch pgErr.ConstraintName {
			case leaveRequesterConstraint:
				return leave.ErrRequesterNotFound
			case leaveTypeConstraint:
				return leave.ErrLeaveTypeNotFound
			}
		case leaveCheckViolationCode:
			if pgErr.ConstraintName == leaveDateRangeConstraint {
				return leave.ErrInvalidDateRange
			}
		}
	}

	return err
}
