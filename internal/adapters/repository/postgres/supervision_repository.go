package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/attendance-approval/internal/core/supervision"
	pgdb "github.com/ogurasousui/attendance-approval/internal/platform/db/postgres"
)

const (
	supervisionUniqueViolationCode     = "23505"
	supervisionForeignKeyViolationCode = "23503"

	supervisionPairConstraint    = "vice_president_departments_vp_dept_key"
	supervisionDefaultConstraint = "vice_president_departments_default_idx"
)

// SupervisionRepository は PostgreSQL を利用した分担関係永続化の実装です。
type SupervisionRepository struct {
	pool pgdb.Queryer
}

// NewSupervisionRepository は SupervisionRepository を生成します。
func NewSupervisionRepository(pool pgdb.Queryer) *SupervisionRepository {
	return &SupervisionRepository{pool: pool}
}

// Create は分担関係を新規作成します。
func (r *SupervisionRepository) Create(ctx context.Context, link *supervision.Link) (*supervision.Link, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO vice_president_departments (id, vice_president_id, department_id, is_default, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, vice_president_id, department_id, is_default, created_at, updated_at
    `,
		link.ID,
		link.VicePresidentID,
		link.DepartmentID,
		link.IsDefault,
		link.CreatedAt,
		link.UpdatedAt,
	)

	created, err := scanSupervisionLink(row)
	if err != nil {
		return nil, translateSupervisionPgError(err)
	}
	return created, nil
}

// Update は分担関係を更新します。
func (r *SupervisionRepository) Update(ctx context.Context, link *supervision.Link) (*supervision.Link, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE vice_president_departments
           SET is_default = $2,
               updated_at = $3
         WHERE id = $1
        RETURNING id, vice_president_id, department_id, is_default, created_at, updated_at
    `, link.ID, link.IsDefault, link.UpdatedAt)

	updated, err := scanSupervisionLink(row)
	if err != nil {
		return nil, translateSupervisionPgError(err)
	}
	return updated, nil
}

// Delete は分担関係を削除します。
func (r *SupervisionRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM vice_president_departments WHERE id = $1`, id)
	if err != nil {
		return translateSupervisionPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return supervision.ErrLinkNotFound
	}
	return nil
}

// FindByID は ID で分担関係を取得します。
func (r *SupervisionRepository) FindByID(ctx context.Context, id string) (*supervision.Link, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, vice_president_id, department_id, is_default, created_at, updated_at
          FROM vice_president_departments
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanSupervisionLink(row)
	if err != nil {
		return nil, translateSupervisionPgError(err)
	}
	return found, nil
}

// FindByVPAndDepartment は副社長と部署の組で分担関係を取得します。
func (r *SupervisionRepository) FindByVPAndDepartment(ctx context.Context, vicePresidentID, departmentID string) (*supervision.Link, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, vice_president_id, department_id, is_default, created_at, updated_at
          FROM vice_president_departments
         WHERE vice_president_id = $1 AND department_id = $2
         LIMIT 1
    `, vicePresidentID, departmentID)

	found, err := scanSupervisionLink(row)
	if err != nil {
		return nil, translateSupervisionPgError(err)
	}
	return found, nil
}

// ListByDepartment は部署の分担関係一覧を ID 順で取得します。
func (r *SupervisionRepository) ListByDepartment(ctx context.Context, departmentID string) ([]*supervision.Link, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, vice_president_id, department_id, is_default, created_at, updated_at
          FROM vice_president_departments
         WHERE department_id = $1
         ORDER BY id
    `, departmentID)
	if err != nil {
		return nil, translateSupervisionPgError(err)
	}
	defer rows.Close()

	var links []*supervision.Link
	for rows.Next() {
		link, err := scanSupervisionLink(rows)
		if err != nil {
			return nil, translateSupervisionPgError(err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, translateSupervisionPgError(err)
	}

	return links, nil
}

// FindDefaultByDepartment はデフォルト分担のうち副社長がアクティブな一件を取得します。
func (r *SupervisionRepository) FindDefaultByDepartment(ctx context.Context, departmentID string) (*supervision.Link, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT l.id, l.vice_president_id, l.department_id, l.is_default, l.created_at, l.updated_at
          FROM vice_president_departments l
          JOIN users u ON u.id = l.vice_president_id
         WHERE l.department_id = $1
           AND l.is_default
           AND u.role = 'vice_president'
           AND u.is_active
         LIMIT 1
    `, departmentID)

	found, err := scanSupervisionLink(row)
	if err != nil {
		return nil, translateSupervisionPgError(err)
	}
	return found, nil
}

// FindAnyByDepartment は副社長がアクティブな分担のうち ID 最小の一件を取得します。
func (r *SupervisionRepository) FindAnyByDepartment(ctx context.Context, departmentID string) (*supervision.Link, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT l.id, l.vice_president_id, l.department_id, l.is_default, l.created_at, l.updated_at
          FROM vice_president_departments l
          JOIN users u ON u.id = l.vice_president_id
         WHERE l.department_id = $1
           AND u.role = 'vice_president'
           AND u.is_active
         ORDER BY l.id
         LIMIT 1
    `, departmentID)

	found, err := scanSupervisionLink(row)
	if err != nil {
		return nil, translateSupervisionPgError(err)
	}
	return found, nil
}

func scanSupervisionLink(row pgx.Row) (*supervision.Link, error) {
	var (
		id              string
		vicePresidentID string
		departmentID    string
		isDefault       bool
		createdAt       time.Time
		updatedAt       time.Time
	)

	if err := row.Scan(&id, &vicePresidentID, &departmentID, &isDefault, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, supervision.ErrLinkNotFound
		}
		return nil, err
	}

	return &supervision.Link{
		ID:              id,
		VicePresidentID: vicePresidentID,
		DepartmentID:    departmentID,
		IsDefault:       isDefault,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func translateSupervisionPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return supervision.ErrLinkNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case supervisionUniqueViolationCode:
			if pgErr.ConstraintName == supervisionDefaultConstraint {
				return supervision.ErrDefaultAlreadyAssigned
			}
			return supervision.ErrLinkAlreadyExists
		case supervisionForeignKeyViolationCode:
			return supervision.ErrDepartmentNotFound
		}
	}

	return err
}
