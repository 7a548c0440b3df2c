package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var directoryUserColumns = []string{
	"id", "name", "role", "department_id", "is_active", "created_at", "updated_at",
}

func TestDirectoryRepository_FindUserByID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewDirectoryRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(directoryUserColumns).
		AddRow("user-1", "Yamada", string(directory.RoleDepartmentHead), "dept-1", true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("user-1").
		WillReturnRows(rows)

	user, err := repo.FindUserByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FindUserByID returned error: %v", err)
	}
	if user.Role != directory.RoleDepartmentHead {
		t.Fatalf("expected department_head, got %s", user.Role)
	}
	if user.DepartmentID == nil || *user.DepartmentID != "dept-1" {
		t.Fatalf("expected department dept-1, got %+v", user.DepartmentID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDirectoryRepository_FindUserByID_NotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewDirectoryRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindUserByID(context.Background(), "missing")
	if !errors.Is(err, directory.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDirectoryRepository_FirstActiveByRole(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewDirectoryRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(directoryUserColumns).
		AddRow("vp-01", "Sato", string(directory.RoleVicePresident), nil, true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id")).
		WithArgs(string(directory.RoleVicePresident)).
		WillReturnRows(rows)

	user, err := repo.FirstActiveByRole(context.Background(), directory.RoleVicePresident)
	if err != nil {
		t.Fatalf("FirstActiveByRole returned error: %v", err)
	}
	if user.ID != "vp-01" {
		t.Fatalf("expected vp-01, got %s", user.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDirectoryRepository_FirstActiveByRole_InvalidRole(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewDirectoryRepository(mock)

	_, err = repo.FirstActiveByRole(context.Background(), directory.Role("intern"))
	if !errors.Is(err, directory.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
