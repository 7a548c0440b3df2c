package supervision

import "context"

// Repository は分担関係の永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, link *Link) (*Link, error)
	Update(ctx context.Context, link *Link) (*Link, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Link, error)
	FindByVPAndDepartment(ctx context.Context, vicePresidentID, departmentID string) (*Link, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]*Link, error)
	// FindDefaultByDepartment は is_default=true かつ副社長がアクティブな分担を返します。
	FindDefaultByDepartment(ctx context.Context, departmentID string) (*Link, error)
	// FindAnyByDepartment は副社長がアクティブな分担のうち ID 最小の一件を返します。
	FindAnyByDepartment(ctx context.Context, departmentID string) (*Link, error)
}
