package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	"github.com/ogurasousui/attendance-approval/internal/core/leave"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type stubLeaveRow struct {
	scanFn func(dest ...interface{}) error
}

func (s stubLeaveRow) Scan(dest ...interface{}) error {
	return s.scanFn(dest...)
}

var leaveRowColumns = []string{
	"id", "requester_id", "start_date", "end_date", "days", "reason", "leave_type_id", "status",
	"assigned_vp_id", "assigned_gm_id",
	"dept_approver_id", "dept_acted_at", "dept_comment",
	"vp_approver_id", "vp_acted_at", "vp_comment",
	"gm_approver_id", "gm_acted_at", "gm_comment",
	"created_at", "updated_at",
}

func leaveRow(id, status string, now time.Time) []any {
	return []any{
		id, "user-1", now, now, 1.0, "rest", "type-1", status,
		nil, nil,
		nil, nil, nil,
		nil, nil, nil,
		nil, nil, nil,
		now, now,
	}
}

func TestScanLeaveRequest_Success(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	acted := start.Add(9 * time.Hour)
	createdAt := time.Now().UTC()
	vpID := "vp-1"

	row := stubLeaveRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 21 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "req-1"
		*(dest[1].(*string)) = "user-1"
		*(dest[2].(*time.Time)) = start
		*(dest[3].(*time.Time)) = end
		*(dest[4].(*float64)) = 2
		*(dest[5].(*string)) = "family event"
		*(dest[6].(*string)) = "type-1"
		*(dest[7].(*string)) = string(leave.StatusDeptApproved)

		assignedVP := dest[8].(*sql.NullString)
		assignedVP.String = vpID
		assignedVP.Valid = true

		deptApprover := dest[10].(*sql.NullString)
		deptApprover.String = "head-1"
		deptApprover.Valid = true

		deptActed := dest[11].(*sql.NullTime)
		deptActed.Time = acted
		deptActed.Valid = true

		*(dest[19].(*time.Time)) = createdAt
		*(dest[20].(*time.Time)) = createdAt
		return nil
	}}

	req, err := scanLeaveRequest(row)
	if err != nil {
		t.Fatalf("scanLeaveRequest returned error: %v", err)
	}

	if req.Status != leave.StatusDeptApproved {
		t.Fatalf("expected dept_approved, got %s", req.Status)
	}
	if req.AssignedVP() != vpID {
		t.Fatalf("expected assigned vp %s, got %q", vpID, req.AssignedVP())
	}
	if req.AssignedGMID != nil {
		t.Fatalf("expected nil assigned gm, got %+v", req.AssignedGMID)
	}
	if req.DeptApproverID == nil || *req.DeptApproverID != "head-1" {
		t.Fatalf("expected dept approver, got %+v", req.DeptApproverID)
	}
	if req.DeptActedAt == nil || !req.DeptActedAt.Equal(acted) {
		t.Fatalf("expected dept acted at, got %+v", req.DeptActedAt)
	}
}

func TestScanLeaveRequest_NoRows(t *testing.T) {
	t.Parallel()

	row := stubLeaveRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	_, err := scanLeaveRequest(row)
	if !errors.Is(err, leave.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestTranslateLeavePgError(t *testing.T) {
	t.Parallel()

	requesterErr := &pgconn.PgError{Code: leaveForeignKeyViolationCode, ConstraintName: leaveRequesterConstraint}
	if !errors.Is(translateLeavePgError(requesterErr), leave.ErrRequesterNotFound) {
		t.Fatalf("expected requester fk violation to map to ErrRequesterNotFound")
	}

	typeErr := &pgconn.PgError{Code: leaveForeignKeyViolationCode, ConstraintName: leaveTypeConstraint}
	if !errors.Is(translateLeavePgError(typeErr), leave.ErrLeaveTypeNotFound) {
		t.Fatalf("expected leave type fk violation to map to ErrLeaveTypeNotFound")
	}

	rangeErr := &pgconn.PgError{Code: leaveCheckViolationCode, ConstraintName: leaveDateRangeConstraint}
	if !errors.Is(translateLeavePgError(rangeErr), leave.ErrInvalidDateRange) {
		t.Fatalf("expected check violation to map to ErrInvalidDateRange")
	}

	other := errors.New("other")
	if translateLeavePgError(other) != other {
		t.Fatalf("unexpected translation for generic error")
	}
}

func TestLeaveRepository_ApplyDecision_Success(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLeaveRepository(mock)
	acted := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(leaveRowColumns).
		AddRow(leaveRow("req-1", string(leave.StatusDeptApproved), acted)...)

	mock.ExpectQuery(regexp.QuoteMeta("dept_approver_id = $4")).
		WithArgs("req-1", string(leave.StatusPending), string(leave.StatusDeptApproved), "head-1", acted, nil).
		WillReturnRows(rows)

	updated, err := repo.ApplyDecision(context.Background(), "req-1", leave.DecisionWrite{
		Expected:   leave.StatusPending,
		Next:       leave.StatusDeptApproved,
		Stage:      leave.StageDepartment,
		ApproverID: "head-1",
		ActedAt:    acted,
	})
	if err != nil {
		t.Fatalf("ApplyDecision returned error: %v", err)
	}
	if updated.Status != leave.StatusDeptApproved {
		t.Fatalf("expected dept_approved, got %s", updated.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaveRepository_ApplyDecision_StatusConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLeaveRepository(mock)
	acted := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs("req-1", string(leave.StatusPending), string(leave.StatusDeptApproved), "head-1", acted, nil).
		WillReturnError(pgx.ErrNoRows)

	// 行は存在するが状態が先行操作で進んでいる。
	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests")).
		WithArgs("req-1").
		WillReturnRows(pgxmock.NewRows(leaveRowColumns).
			AddRow(leaveRow("req-1", string(leave.StatusRejected), acted)...))

	_, err = repo.ApplyDecision(context.Background(), "req-1", leave.DecisionWrite{
		Expected:   leave.StatusPending,
		Next:       leave.StatusDeptApproved,
		Stage:      leave.StageDepartment,
		ApproverID: "head-1",
		ActedAt:    acted,
	})
	if !errors.Is(err, leave.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaveRepository_ApplyDecision_MissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLeaveRepository(mock)
	acted := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs("missing", string(leave.StatusPending), string(leave.StatusDeptApproved), "head-1", acted, nil).
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.ApplyDecision(context.Background(), "missing", leave.DecisionWrite{
		Expected:   leave.StatusPending,
		Next:       leave.StatusDeptApproved,
		Stage:      leave.StageDepartment,
		ApproverID: "head-1",
		ActedAt:    acted,
	})
	if !errors.Is(err, leave.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaveRepository_AssignVP_ReturnsWinner(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLeaveRepository(mock)
	now := time.Now().UTC()

	// 既に別の値が確定している行への割当は既存値を返す。
	mock.ExpectQuery(regexp.QuoteMeta("SET assigned_vp_id = COALESCE(assigned_vp_id, $2)")).
		WithArgs("req-1", "vp-late", now).
		WillReturnRows(pgxmock.NewRows([]string{"assigned_vp_id"}).AddRow("vp-early"))

	assigned, err := repo.AssignVP(context.Background(), "req-1", "vp-late", now)
	if err != nil {
		t.Fatalf("AssignVP returned error: %v", err)
	}
	if assigned != "vp-early" {
		t.Fatalf("expected vp-early, got %s", assigned)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaveRepository_ListByRequester_Pagination(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLeaveRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(leaveRowColumns).
		AddRow(leaveRow("req-3", string(leave.StatusPending), now)...).
		AddRow(leaveRow("req-2", string(leave.StatusPending), now)...).
		AddRow(leaveRow("req-1", string(leave.StatusPending), now)...)

	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests WHERE requester_id = $1")).
		WithArgs("user-1", 3, 0).
		WillReturnRows(rows)

	requests, nextToken, err := repo.ListByRequester(context.Background(), leave.ListFilter{
		RequesterID: "user-1",
		Limit:       2,
		Offset:      0,
	})
	if err != nil {
		t.Fatalf("ListByRequester returned error: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if nextToken != "2" {
		t.Fatalf("expected next token '2', got %s", nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaveRepository_ListPendingForApprover_HeadWithoutDepartment(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLeaveRepository(mock)

	requests, err := repo.ListPendingForApprover(context.Background(), leave.PendingFilter{
		ApproverID: "head-1",
		Role:       directory.RoleDepartmentHead,
		Limit:      50,
	})
	if err != nil {
		t.Fatalf("ListPendingForApprover returned error: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("expected empty inbox, got %d", len(requests))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeaveRepository_Delete_OnlyCancelled(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLeaveRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM leave_requests")).
		WithArgs("req-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	mock.ExpectQuery(regexp.QuoteMeta("FROM leave_requests")).
		WithArgs("req-1").
		WillReturnRows(pgxmock.NewRows(leaveRowColumns).
			AddRow(leaveRow("req-1", string(leave.StatusPending), now)...))

	err = repo.Delete(context.Background(), "req-1")
	if !errors.Is(err, leave.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
