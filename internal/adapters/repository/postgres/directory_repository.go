package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	pgdb "github.com/ogurasousui/attendance-approval/internal/platform/db/postgres"
)

// DirectoryRepository は PostgreSQL を利用した組織情報参照の実装です。
// ユーザー・部署の書き込みは別システムが所有するため、読み取りのみを提供します。
type DirectoryRepository struct {
	pool pgdb.Queryer
}

// NewDirectoryRepository は DirectoryRepository を生成します。
func NewDirectoryRepository(pool pgdb.Queryer) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

// FindUserByID は ID でユーザーを取得します。
func (r *DirectoryRepository) FindUserByID(ctx context.Context, id string) (*directory.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, name, role, department_id, is_active, created_at, updated_at
          FROM users
         WHERE id = $1
         LIMIT 1
    `, id)

	return scanDirectoryUser(row)
}

// FindDepartmentByID は ID で部署を取得します。
func (r *DirectoryRepository) FindDepartmentByID(ctx context.Context, id string) (*directory.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, name, head_id, created_at, updated_at
          FROM departments
         WHERE id = $1
         LIMIT 1
    `, id)

	var (
		deptID    string
		name      string
		headID    sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&deptID, &name, &headID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrDepartmentNotFound
		}
		return nil, err
	}

	return &directory.Department{
		ID:        deptID,
		Name:      name,
		HeadID:    nullableString(headID),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// FirstActiveByRole は指定役職のアクティブなユーザーのうち ID 最小の一人を取得します。
func (r *DirectoryRepository) FirstActiveByRole(ctx context.Context, role directory.Role) (*directory.User, error) {
	if !role.IsValid() {
		return nil, directory.ErrInvalidRole
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, name, role, department_id, is_active, created_at, updated_at
          FROM users
         WHERE role = $1 AND is_active
         ORDER BY id
         LIMIT 1
    `, string(role))

	return scanDirectoryUser(row)
}

// ListActiveByRole は指定役職のアクティブなユーザー一覧を ID 順で取得します。
func (r *DirectoryRepository) ListActiveByRole(ctx context.Context, role directory.Role) ([]*directory.User, error) {
	if !role.IsValid() {
		return nil, directory.ErrInvalidRole
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, name, role, department_id, is_active, created_at, updated_at
          FROM users
         WHERE role = $1 AND is_active
         ORDER BY id
    `, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*directory.User
	for rows.Next() {
		u, err := scanDirectoryUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func scanDirectoryUser(row pgx.Row) (*directory.User, error) {
	var (
		id           string
		name         string
		role         string
		departmentID sql.NullString
		active       bool
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&id, &name, &role, &departmentID, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrUserNotFound
		}
		return nil, err
	}

	return &directory.User{
		ID:           id,
		Name:         name,
		Role:         directory.Role(role),
		DepartmentID: nullableString(departmentID),
		Active:       active,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func nullableTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func stringOrNil(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
