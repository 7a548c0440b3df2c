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
	"github.com/ogurasousui/attendance-approval/internal/core/overtime"
	pgdb "github.com/ogurasousui/attendance-approval/internal/platform/db/postgres"
)

const (
	overtimeForeignKeyViolationCode = "23503"
	overtimeCheckViolationCode      = "23514"

	overtimeRequesterConstraint = "overtime_requests_requester_id_fkey"
	overtimeTimeRangeConstraint = "overtime_requests_time_range_check"
)

const overtimeRequestColumns = `id, requester_id, start_time, end_time, hours, days, reason, status,
               assigned_approver_id, approver_id, acted_at, comment,
               created_at, updated_at`

// OvertimeRepository は PostgreSQL を利用した残業申請永続化の実装です。
type OvertimeRepository struct {
	pool pgdb.Queryer
}

// NewOvertimeRepository は OvertimeRepository を生成します。
func NewOvertimeRepository(pool pgdb.Queryer) *OvertimeRepository {
	return &OvertimeRepository{pool: pool}
}

// Create は残業申請を新規作成します。
func (r *OvertimeRepository) Create(ctx context.Context, req *overtime.Request) (*overtime.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO overtime_requests (
            id, requester_id, start_time, end_time, hours, days, reason, status,
            assigned_approver_id, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+overtimeRequestColumns+`
    `,
		req.ID,
		req.RequesterID,
		req.StartTime,
		req.EndTime,
		req.Hours,
		req.Days,
		req.Reason,
		string(req.Status),
		stringOrNil(req.AssignedApproverID),
		req.CreatedAt,
		req.UpdatedAt,
	)

	created, err := scanOvertimeRequest(row)
	if err != nil {
		return nil, translateOvertimePgError(err)
	}
	return created, nil
}

// Update は申請内容を上書きします。状態や監査記録は変更しません。
func (r *OvertimeRepository) Update(ctx context.Context, req *overtime.Request) (*overtime.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE overtime_requests
           SET start_time = $2,
               end_time = $3,
               hours = $4,
               days = $5,
               reason = $6,
               assigned_approver_id = $7,
               updated_at = $8
         WHERE id = $1
        RETURNING `+overtimeRequestColumns+`
    `,
		req.ID,
		req.StartTime,
		req.EndTime,
		req.Hours,
		req.Days,
		req.Reason,
		stringOrNil(req.AssignedApproverID),
		req.UpdatedAt,
	)

	updated, err := scanOvertimeRequest(row)
	if err != nil {
		return nil, translateOvertimePgError(err)
	}
	return updated, nil
}

// FindByID は ID で残業申請を取得します。
func (r *OvertimeRepository) FindByID(ctx context.Context, id string) (*overtime.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+overtimeRequestColumns+`
          FROM overtime_requests
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanOvertimeRequest(row)
	if err != nil {
		return nil, translateOvertimePgError(err)
	}
	return found, nil
}

// ApplyDecision は pending の行にのみ遷移と監査記録を適用します。
// 既に処理済みの行には更新がかからず ErrStatusConflict を返します。
func (r *OvertimeRepository) ApplyDecision(ctx context.Context, id string, write overtime.DecisionWrite) (*overtime.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE overtime_requests
           SET status = $2,
               approver_id = $3,
               acted_at = $4,
               comment = $5,
               updated_at = $4
         WHERE id = $1 AND status = 'pending'
        RETURNING `+overtimeRequestColumns+`
    `,
		id,
		string(write.Next),
		write.ApproverID,
		write.ActedAt,
		stringOrNil(write.Comment),
	)

	updated, err := scanOvertimeRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.resolveConflict(ctx, id)
		}
		return nil, translateOvertimePgError(err)
	}
	return updated, nil
}

// Cancel は終端状態でない行を cancelled に更新します。
// 取消済みの行への再取消は成功扱いです。
func (r *OvertimeRepository) Cancel(ctx context.Context, id string, updatedAt time.Time) (*overtime.Request, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE overtime_requests
           SET status = 'cancelled',
               updated_at = $2
         WHERE id = $1 AND status NOT IN ('approved', 'rejected')
        RETURNING `+overtimeRequestColumns+`
    `, id, updatedAt)

	cancelled, err := scanOvertimeRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.resolveConflict(ctx, id)
		}
		return nil, translateOvertimePgError(err)
	}
	return cancelled, nil
}

// AssignApprover は assigned_approver_id が未設定の行にのみ書き込み、確定値を返します。
func (r *OvertimeRepository) AssignApprover(ctx context.Context, id, approverID string, updatedAt time.Time) (string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE overtime_requests
           SET assigned_approver_id = COALESCE(assigned_approver_id, $2),
               updated_at = CASE WHEN assigned_approver_id IS NULL THEN $3 ELSE updated_at END
         WHERE id = $1
        RETURNING assigned_approver_id
    `, id, approverID, updatedAt)

	var assigned string
	if err := row.Scan(&assigned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", overtime.ErrRequestNotFound
		}
		return "", translateOvertimePgError(err)
	}
	return assigned, nil
}

// Delete は cancelled の行のみ物理削除します。
func (r *OvertimeRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM overtime_requests WHERE id = $1 AND status = 'cancelled'`, id)
	if err != nil {
		return translateOvertimePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return r.resolveConflict(ctx, id)
	}
	return nil
}

// ListByRequester は申請者の残業申請一覧を取得します。
func (r *OvertimeRepository) ListByRequester(ctx context.Context, filter overtime.ListFilter) ([]*overtime.Request, string, error) {
	if strings.TrimSpace(filter.RequesterID) == "" {
		return nil, "", overtime.ErrInvalidID
	}
	if filter.Limit <= 0 {
		return nil, "", overtime.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", overtime.ErrInvalidPageToken
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
        SELECT ` + overtimeRequestColumns + `
          FROM overtime_requests` + whereClause + `
         ORDER BY created_at DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateOvertimePgError(err)
	}
	defer rows.Close()

	requests := make([]*overtime.Request, 0, filter.Limit)
	for rows.Next() {
		req, err := scanOvertimeRequest(rows)
		if err != nil {
			return nil, "", translateOvertimePgError(err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateOvertimePgError(err)
	}

	var nextToken string
	if len(requests) == limitWithBuffer {
		requests = requests[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return requests, nextToken, nil
}

// ListPendingForApprover は承認者の役割ごとに処理待ちの申請を取得します。
func (r *OvertimeRepository) ListPendingForApprover(ctx context.Context, filter overtime.PendingFilter) ([]*overtime.Request, error) {
	if filter.Limit <= 0 {
		return nil, overtime.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, overtime.ErrInvalidPageToken
	}

	var (
		query string
		args  []any
	)

	switch filter.Role {
	case directory.RoleDepartmentHead:
		// 所属部署が未設定の部署長に届く申請はありません。
		if filter.DepartmentID == nil {
			return []*overtime.Request{}, nil
		}
		query = `
        SELECT ` + prefixOvertimeColumns("r") + `
          FROM overtime_requests r
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
        SELECT ` + overtimeRequestColumns + `
          FROM overtime_requests
         WHERE status = 'pending'
           AND assigned_approver_id = $1
         ORDER BY created_at, id
         LIMIT $2
        OFFSET $3
    `
		args = []any{filter.ApproverID, filter.Limit, filter.Offset}
	case directory.RoleGeneralManager:
		query = `
        SELECT ` + overtimeRequestColumns + `
          FROM overtime_requests
         WHERE status = 'pending'
           AND (assigned_approver_id IS NULL OR assigned_approver_id = $1)
         ORDER BY created_at, id
         LIMIT $2
        OFFSET $3
    `
		args = []any{filter.ApproverID, filter.Limit, filter.Offset}
	default:
		return nil, overtime.ErrNotAllowed
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateOvertimePgError(err)
	}
	defer rows.Close()

	requests := make([]*overtime.Request, 0, filter.Limit)
	for rows.Next() {
		req, err := scanOvertimeRequest(rows)
		if err != nil {
			return nil, translateOvertimePgError(err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, translateOvertimePgError(err)
	}

	return requests, nil
}

func (r *OvertimeRepository) resolveConflict(ctx context.Context, id string) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return overtime.ErrStatusConflict
}

func prefixOvertimeColumns(alias string) string {
	cols := strings.Split(overtimeRequestColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanOvertimeRequest(row pgx.Row) (*overtime.Request, error) {
	var (
		id                 string
		requesterID        string
		startTime          time.Time
		endTime            time.Time
		hours              float64
		days               float64
		reason             string
		status             string
		assignedApproverID sql.NullString
		approverID         sql.NullString
		actedAt            sql.NullTime
		comment            sql.NullString
		createdAt          time.Time
		updatedAt          time.Time
	)

	if err := row.Scan(
		&id,
		&requesterID,
		&startTime,
		&endTime,
		&hours,
		&days,
		&reason,
		&status,
		&assignedApproverID,
		&approverID,
		&actedAt,
		&comment,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, overtime.ErrRequestNotFound
		}
		return nil, err
	}

	return &overtime.Request{
		ID:                 id,
		RequesterID:        requesterID,
		StartTime:          startTime,
		EndTime:            endTime,
		Hours:              hours,
		Days:               days,
		Reason:             reason,
		Status:             overtime.Status(status),
		AssignedApproverID: nullableString(assignedApproverID),
		ApproverID:         nullableString(approverID),
		ActedAt:            nullableTime(actedAt),
		Comment:            nullableString(comment),
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

func translateOvertimePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return overtime.ErrRequestNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case overtimeForeignKeyViolationCode:
			if pgErr.ConstraintName == overtimeRequesterConstraint {
				return overtime.ErrRequesterNotFound
			}
		case overtimeCheckViolationCode:
			if pgErr.ConstraintName == overtimeTimeRangeConstraint {
				return overtime.ErrInvalidTimeRange
			}
		}
	}

	return err
}
