package supervision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-approval/internal/core/directory"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Service は分担関係に関するユースケースをまとめます。
type Service struct {
	links Repository
	dir   directory.Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は分担関係ユースケースの公開インターフェースです。
type UseCase interface {
	CreateLink(ctx context.Context, in CreateLinkInput) (*Link, error)
	SetDefault(ctx context.Context, in SetDefaultInput) (*Link, error)
	DeleteLink(ctx context.Context, id string) error
	GetLink(ctx context.Context, id string) (*Link, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]*Link, error)
}

// NewService は Service を生成します。
func NewService(links Repository, dir directory.Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{links: links, dir: dir, clock: clock, tx: tx}
}

// CreateLinkInput は分担作成時の入力です。
type CreateLinkInput struct {
	VicePresidentID string
	DepartmentID    string
	IsDefault       bool
}

// SetDefaultInput はデフォルト分担切り替え時の入力です。
type SetDefaultInput struct {
	ID        string
	IsDefault bool
}

// CreateLink は分担関係を新規作成します。
// デフォルト指定時は同部署の既存デフォルトを先に解除します。
func (s *Service) CreateLink(ctx context.Context, in CreateLinkInput) (*Link, error) {
	vpID := strings.TrimSpace(in.VicePresidentID)
	deptID := strings.TrimSpace(in.DepartmentID)
	if vpID == "" || deptID == "" {
		return nil, ErrInvalidID
	}

	var created *Link
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		vp, err := s.dir.FindUserByID(txCtx, vpID)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return ErrInvalidVicePresident
			}
			return err
		}
		if vp.Role != directory.RoleVicePresident {
			return ErrInvalidVicePresident
		}

		if _, err := s.dir.FindDepartmentByID(txCtx, deptID); err != nil {
			if errors.Is(err, directory.ErrDepartmentNotFound) {
				return ErrDepartmentNotFound
			}
			return err
		}

		existing, err := s.links.FindByVPAndDepartment(txCtx, vpID, deptID)
		if err != nil && !errors.Is(err, ErrLinkNotFound) {
			return err
		}
		if existing != nil {
			return ErrLinkAlreadyExists
		}

		if in.IsDefault {
			if err := s.demoteDefault(txCtx, deptID, ""); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		link := &Link{
			ID:              uuid.NewString(),
			VicePresidentID: vpID,
			DepartmentID:    deptID,
			IsDefault:       in.IsDefault,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		result, err := s.links.Create(txCtx, link)
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// SetDefault は分担のデフォルトフラグを切り替えます。
func (s *Service) SetDefault(ctx context.Context, in SetDefaultInput) (*Link, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var updated *Link
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		link, err := s.links.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if in.IsDefault {
			if err := s.demoteDefault(txCtx, link.DepartmentID, link.ID); err != nil {
				return err
			}
		}

		link.IsDefault = in.IsDefault
		link.UpdatedAt = s.clock.Now()

		result, err := s.links.Update(txCtx, link)
		if err != nil {
			return err
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteLink は分担関係を削除します。
func (s *Service) DeleteLink(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.links.Delete(txCtx, id)
	})
}

// GetLink は分担関係を取得します。
func (s *Service) GetLink(ctx context.Context, id string) (*Link, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Link
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.links.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListByDepartment は部署の分担関係一覧を取得します。
func (s *Service) ListByDepartment(ctx context.Context, departmentID string) ([]*Link, error) {
	if strings.TrimSpace(departmentID) == "" {
		return nil, fmt.Errorf("department id: %w", ErrInvalidID)
	}

	var result []*Link
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		links, err := s.links.ListByDepartment(txCtx, departmentID)
		if err != nil {
			return err
		}
		result = links
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// demoteDefault は部署内の既存デフォルト分担を解除します。exceptID は対象外にします。
func (s *Service) demoteDefault(ctx context.Context, departmentID, exceptID string) error {
	links, err := s.links.ListByDepartment(ctx, departmentID)
	if err != nil {
		return err
	}

	for _, link := range links {
		if !link.IsDefault || link.ID == exceptID {
			continue
		}
		link.IsDefault = false
		link.UpdatedAt = s.clock.Now()
		if _, err := s.links.Update(ctx, link); err != nil {
			return err
		}
	}

	return nil
}
