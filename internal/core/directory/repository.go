package directory

import "context"

// Repository は組織情報への読み取り専用アクセスです。
// ユーザー・部署の更新は別システムが所有するため、この層からは変更しません。
type Repository interface {
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindDepartmentByID(ctx context.Context, id string) (*Department, error)
	// FirstActiveByRole は指定役職のアクティブなユーザーのうち ID 最小の一人を返します。
	FirstActiveByRole(ctx context.Context, role Role) (*User, error)
	ListActiveByRole(ctx context.Context, role Role) ([]*User, error)
}
