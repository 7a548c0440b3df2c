package overtime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	"github.com/ogurasousui/attendance-approval/internal/core/supervision"
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

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// Service は残業申請に関するユースケースをまとめます。
type Service struct {
	repo       Repository
	dir        directory.Repository
	assigner   *Assigner
	authorizer *Authorizer
	clock      Clock
	tx         TransactionManager
}

// UseCase は残業申請ユースケースの公開インターフェースです。
type UseCase interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error)
	Approve(ctx context.Context, in ApproveInput) (*Request, error)
	UpdateRequest(ctx context.Context, in UpdateRequestInput) (*Request, error)
	Cancel(ctx context.Context, in CancelInput) (*Request, error)
	GetRequest(ctx context.Context, id string) (*Request, error)
	ListByRequester(ctx context.Context, in ListRequestsInput) (*ListRequestsResult, error)
	ListPendingForApprover(ctx context.Context, in PendingInput) ([]*Request, error)
	DeleteRequest(ctx context.Context, id string) error
}

// NewService は Service を生成します。
func NewService(repo Repository, dir directory.Repository, sup supervision.Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{
		repo:       repo,
		dir:        dir,
		assigner:   NewAssigner(dir, sup),
		authorizer: NewAuthorizer(dir),
		clock:      clock,
		tx:         tx,
	}
}

// CreateRequestInput は残業申請作成時の入力です。
type CreateRequestInput struct {
	RequesterID        string
	StartTime          time.Time
	EndTime            time.Time
	Hours              float64
	Days               float64
	Reason             string
	AssignedApproverID *string
}

// ApproveInput は承認操作の入力です。
type ApproveInput struct {
	RequestID string
	ActorID   string
	Decision  Decision
	Comment   *string
}

// UpdateRequestInput は残業申請更新時の入力です。未指定の項目は変更しません。
type UpdateRequestInput struct {
	RequestID string
	ActorID   string
	StartTime *time.Time
	EndTime   *time.Time
	Hours     *float64
	Days      *float64
	Reason    *string
}

// CancelInput は取消操作の入力です。
type CancelInput struct {
	RequestID string
	ActorID   string
}

// ListRequestsInput は申請一覧取得時の入力です。
type ListRequestsInput struct {
	RequesterID string
	Status      *Status
	PageSize    int
	PageToken   string
}

// ListRequestsResult は申請一覧取得の結果です。
type ListRequestsResult struct {
	Requests      []*Request
	NextPageToken string
}

// PendingInput は承認待ち一覧取得時の入力です。
type PendingInput struct {
	ApproverID string
	PageSize   int
	PageToken  string
}

// CreateRequest は残業申請を作成します。
// 申請者の役職に応じて承認者を初期割当します。
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	if strings.TrimSpace(in.RequesterID) == "" {
		return nil, fmt.Errorf("requester id: %w", ErrInvalidID)
	}
	if in.EndTime.Before(in.StartTime) {
		return nil, ErrInvalidTimeRange
	}
	if in.Hours <= 0 {
		return nil, ErrInvalidHours
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrInvalidReason
	}

	var created *Request
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		requester, err := s.dir.FindUserByID(txCtx, in.RequesterID)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return ErrRequesterNotFound
			}
			return err
		}

		now := s.clock.Now()
		req := &Request{
			ID:          uuid.NewString(),
			RequesterID: requester.ID,
			StartTime:   in.StartTime,
			EndTime:     in.EndTime,
			Hours:       in.Hours,
			Days:        in.Days,
			Reason:      reason,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if in.AssignedApproverID != nil && strings.TrimSpace(*in.AssignedApproverID) != "" {
			id := strings.TrimSpace(*in.AssignedApproverID)
			req.AssignedApproverID = &id
		}

		if err := s.applyInitialAssignment(txCtx, req, requester); err != nil {
			return err
		}

		result, err := s.repo.Create(txCtx, req)
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

// applyInitialAssignment は申請者の役職に応じた承認者の初期割当を行います。
func (s *Service) applyInitialAssignment(ctx context.Context, req *Request, requester *directory.User) error {
	switch requester.Role {
	case directory.RoleEmployee, directory.RoleDepartmentHead:
		// 自部署の部門長を既定の承認者とし、いなければ優先順位に従って解決します。
		if req.AssignedApproverID == nil && requester.DepartmentID != nil {
			headID, err := s.assigner.resolveDepartmentHead(ctx, *requester.DepartmentID)
			if err != nil {
				return err
			}
			if headID != "" {
				req.AssignedApproverID = &headID
			}
		}
		if req.AssignedApproverID == nil {
			approverID, err := s.assigner.ResolveApprover(ctx, req, requester)
			if err != nil {
				return err
			}
			if approverID != "" {
				req.AssignedApproverID = &approverID
			}
		}

	case directory.RoleVicePresident:
		// 副社長の申請は本人が既定の承認者。他の副社長を指定した場合は検証します。
		if req.AssignedApproverID == nil {
			id := requester.ID
			req.AssignedApproverID = &id
		} else if *req.AssignedApproverID != requester.ID {
			vp, err := s.dir.FindUserByID(ctx, *req.AssignedApproverID)
			if err != nil {
				if errors.Is(err, directory.ErrUserNotFound) {
					return ErrInvalidAssignee
				}
				return err
			}
			if vp.Role != directory.RoleVicePresident || !vp.Active {
				return ErrInvalidAssignee
			}
		}

	case directory.RoleGeneralManager:
		if req.AssignedApproverID == nil {
			id := requester.ID
			req.AssignedApproverID = &id
		}
	}

	return nil
}

// EnsureAssigned は未解決の承認者を遅延解決して申請へ永続化します。冪等です。
func (s *Service) EnsureAssigned(ctx context.Context, req *Request) (*Request, error) {
	if req.Status != StatusPending || req.AssignedApproverID != nil {
		return req, nil
	}

	requester, err := s.dir.FindUserByID(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrRequesterNotFound
		}
		return nil, err
	}

	approverID, err := s.assigner.ResolveApprover(ctx, req, requester)
	if err != nil {
		return nil, err
	}
	if approverID == "" {
		return req, nil
	}

	assigned, err := s.repo.AssignApprover(ctx, req.ID, approverID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	req.AssignedApproverID = &assigned
	return req, nil
}

// Approve は承認操作を実行します。単段階のため判断がそのまま終端状態になります。
func (s *Service) Approve(ctx context.Context, in ApproveInput) (*Request, error) {
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, fmt.Errorf("request id: %w", ErrInvalidID)
	}
	if !in.Decision.IsValid() {
		return nil, ErrInvalidDecision
	}

	var updated *Request
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		req, err := s.repo.FindByID(txCtx, in.RequestID)
		if err != nil {
			return err
		}

		actor, err := s.dir.FindUserByID(txCtx, in.ActorID)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return ErrApproverNotFound
			}
			return err
		}

		req, err = s.EnsureAssigned(txCtx, req)
		if err != nil {
			return err
		}

		allowed, reason, err := s.authorizer.Authorize(txCtx, req, actor)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrNotAllowed, reason)
		}

		next := StatusApproved
		if in.Decision == DecisionReject {
			next = StatusRejected
		}

		result, err := s.repo.ApplyDecision(txCtx, req.ID, DecisionWrite{
			Next:       next,
			ApproverID: actor.ID,
			ActedAt:    s.clock.Now(),
			Comment:    in.Comment,
		})
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

// UpdateRequest は残業申請を更新します。
// 申請者本人は pending の間のみ、管理者は状態によらず更新できます。
func (s *Service) UpdateRequest(ctx context.Context, in UpdateRequestInput) (*Request, error) {
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, fmt.Errorf("request id: %w", ErrInvalidID)
	}

	var updated *Request
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		req, err := s.repo.FindByID(txCtx, in.RequestID)
		if err != nil {
			return err
		}

		actor, err := s.dir.FindUserByID(txCtx, in.ActorID)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return ErrApproverNotFound
			}
			return err
		}

		isAdmin := actor.Role == directory.RoleAdmin
		if req.RequesterID != actor.ID && !isAdmin {
			return fmt.Errorf("%w: you can only update your own request", ErrNotAllowed)
		}
		if req.Status != StatusPending && !isAdmin {
			return fmt.Errorf("%w: only pending requests can be updated", ErrStatusConflict)
		}

		if in.StartTime != nil {
			req.StartTime = *in.StartTime
		}
		if in.EndTime != nil {
			req.EndTime = *in.EndTime
		}
		if in.Hours != nil {
			if *in.Hours <= 0 {
				return ErrInvalidHours
			}
			req.Hours = *in.Hours
		}
		if in.Days != nil {
			if math.Mod(*in.Days, 0.5) != 0 {
				return ErrInvalidDayCount
			}
			req.Days = *in.Days
		}
		if in.Reason != nil {
			reason := strings.TrimSpace(*in.Reason)
			if reason == "" {
				return ErrInvalidReason
			}
			req.Reason = reason
		}

		if req.EndTime.Before(req.StartTime) {
			return ErrInvalidTimeRange
		}

		req.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, req)
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

// Cancel は申請者本人による取消を実行します。
func (s *Service) Cancel(ctx context.Context, in CancelInput) (*Request, error) {
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, fmt.Errorf("request id: %w", ErrInvalidID)
	}

	var cancelled *Request
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		req, err := s.repo.FindByID(txCtx, in.RequestID)
		if err != nil {
			return err
		}
		if req.RequesterID != in.ActorID {
			return fmt.Errorf("%w: you can only cancel your own request", ErrNotAllowed)
		}

		result, err := s.repo.Cancel(txCtx, req.ID, s.clock.Now())
		if err != nil {
			return err
		}

		cancelled = result
		return nil
	}); err != nil {
		return nil, err
	}

	return cancelled, nil
}

// GetRequest は残業申請を取得します。
func (s *Service) GetRequest(ctx context.Context, id string) (*Request, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Request
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
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

// ListByRequester は申請者本人の申請一覧を取得します。
func (s *Service) ListByRequester(ctx context.Context, in ListRequestsInput) (*ListRequestsResult, error) {
	if strings.TrimSpace(in.RequesterID) == "" {
		return nil, fmt.Errorf("requester id: %w", ErrInvalidID)
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var statusPtr *Status
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		statusPtr = &status
	}

	var (
		requests  []*Request
		nextToken string
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, token, err := s.repo.ListByRequester(txCtx, ListFilter{
			RequesterID: in.RequesterID,
			Status:      statusPtr,
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			return err
		}
		requests = result
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListRequestsResult{Requests: requests, NextPageToken: nextToken}, nil
}

// ListPendingForApprover は承認者の受信箱を取得します。
func (s *Service) ListPendingForApprover(ctx context.Context, in PendingInput) ([]*Request, error) {
	if strings.TrimSpace(in.ApproverID) == "" {
		return nil, fmt.Errorf("approver id: %w", ErrInvalidID)
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var requests []*Request
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		approver, err := s.dir.FindUserByID(txCtx, in.ApproverID)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return ErrApproverNotFound
			}
			return err
		}
		if !approver.Role.CanApprove() {
			return fmt.Errorf("%w: no approval inbox for this role", ErrNotAllowed)
		}

		result, err := s.repo.ListPendingForApprover(txCtx, PendingFilter{
			ApproverID:   approver.ID,
			Role:         approver.Role,
			DepartmentID: approver.DepartmentID,
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			return err
		}
		requests = result
		return nil
	}); err != nil {
		return nil, err
	}

	return requests, nil
}

// DeleteRequest は取消済みの申請のみ物理削除します。
func (s *Service) DeleteRequest(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, id)
	})
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
