package leave

import (
	"context"
	"errors"
	"fmt"
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

// Service は休暇申請に関するユースケースをまとめます。
type Service struct {
	repo       Repository
	dir        directory.Repository
	assigner   *Assigner
	authorizer *Authorizer
	clock      Clock
	tx         TransactionManager
}

// UseCase は休暇申請ユースケースの公開インターフェースです。
type UseCase interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error)
	Approve(ctx context.Context, in ApproveInput) (*Request, error)
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

// CreateRequestInput は休暇申請作成時の入力です。
// AssignedVPID / AssignedGMID は承認者の手動指定で、省略可能です。
type CreateRequestInput struct {
	RequesterID  string
	StartDate    time.Time
	EndDate      time.Time
	Days         float64
	Reason       string
	LeaveTypeID  string
	AssignedVPID *string
	AssignedGMID *string
}

// ApproveInput は承認操作の入力です。
type ApproveInput struct {
	RequestID string
	ActorID   string
	Decision  Decision
	Comment   *string
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

// CreateRequest は休暇申請を作成します。
// 申請者の役職に応じて承認者を初期割当します。未割当のまま残っても
// エラーにはせず、承認時の遅延解決か人手での差配に委ねます。
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	if strings.TrimSpace(in.RequesterID) == "" {
		return nil, fmt.Errorf("requester id: %w", ErrInvalidID)
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, ErrInvalidDateRange
	}
	if in.Days <= 0 {
		return nil, ErrInvalidDayCount
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrInvalidReason
	}
	if strings.TrimSpace(in.LeaveTypeID) == "" {
		return nil, fmt.Errorf("leave type id: %w", ErrInvalidID)
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

		exists, err := s.repo.ActiveLeaveTypeExists(txCtx, in.LeaveTypeID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrLeaveTypeNotFound
		}

		now := s.clock.Now()
		req := &Request{
			ID:          uuid.NewString(),
			RequesterID: requester.ID,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			Days:        in.Days,
			Reason:      reason,
			LeaveTypeID: in.LeaveTypeID,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.applyInitialAssignment(txCtx, req, requester, in); err != nil {
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
func (s *Service) applyInitialAssignment(ctx context.Context, req *Request, requester *directory.User, in CreateRequestInput) error {
	switch requester.Role {
	case directory.RoleEmployee, directory.RoleDepartmentHead:
		// 一般従業員と部門長の申請は手動指定を受け付けず、日数に応じて自動割当します。
		req.AssignedVPID = nil
		req.AssignedGMID = nil
		for _, stage := range RequiredStages(req.Days) {
			switch stage {
			case StageVicePresident:
				vpID, err := s.assigner.ResolveVP(ctx, req, requester)
				if err != nil {
					return err
				}
				if vpID != "" {
					req.AssignedVPID = &vpID
				}
			case StageGeneralManager:
				gmID, err := s.assigner.ResolveGM(ctx, req)
				if err != nil {
					return err
				}
				if gmID != "" {
					req.AssignedGMID = &gmID
				}
			}
		}

	case directory.RoleVicePresident:
		// 副社長の申請は本人が既定の承認者。他の副社長を指定した場合は検証します。
		if in.AssignedVPID == nil || strings.TrimSpace(*in.AssignedVPID) == "" {
			id := requester.ID
			req.AssignedVPID = &id
		} else {
			vp, err := s.dir.FindUserByID(ctx, *in.AssignedVPID)
			if err != nil {
				if errors.Is(err, directory.ErrUserNotFound) {
					return ErrInvalidAssignee
				}
				return err
			}
			if vp.Role != directory.RoleVicePresident || !vp.Active {
				return ErrInvalidAssignee
			}
			req.AssignedVPID = &vp.ID
		}
		if req.Days > vicePresidentMaxDays {
			gmID, err := s.assigner.ResolveGM(ctx, req)
			if err != nil {
				return err
			}
			if gmID != "" {
				req.AssignedGMID = &gmID
			}
		}

	case directory.RoleGeneralManager:
		// 総経理の申請は本人が承認者。承認者名の表示のため明示的に割り当てます。
		if req.AssignedGMID == nil {
			id := requester.ID
			req.AssignedGMID = &id
		}
	}

	return nil
}

// EnsureAssigned は未解決の承認者を遅延解決して申請へ永続化します。
// 解決済みの値には触れず、並行して解決された場合は勝者の値を採用するため冪等です。
func (s *Service) EnsureAssigned(ctx context.Context, req *Request) (*Request, error) {
	if req.Status != StatusDeptApproved || req.AssignedVPID != nil {
		return req, nil
	}

	requester, err := s.dir.FindUserByID(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrRequesterNotFound
		}
		return nil, err
	}

	vpID, err := s.assigner.ResolveVP(ctx, req, requester)
	if err != nil {
		return nil, err
	}
	if vpID == "" {
		return req, nil
	}

	assigned, err := s.repo.AssignVP(ctx, req.ID, vpID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	req.AssignedVPID = &assigned
	return req, nil
}

// Approve は承認操作を実行します。権限判定の後に状態を遷移させ、
// 該当段階の監査記録（承認者・時刻・意見）を同時に書き込みます。
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

		role, err := s.effectiveRole(actor, req.Status)
		if err != nil {
			return err
		}

		next, err := NextStatus(req.Status, role, in.Decision, req.Days)
		if err != nil {
			return err
		}

		stage, ok := StageForRole(role)
		if !ok {
			return ErrStatusConflict
		}

		result, err := s.repo.ApplyDecision(txCtx, req.ID, DecisionWrite{
			Expected:   req.Status,
			Next:       next,
			Stage:      stage,
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

// effectiveRole は承認操作で担当する役職を決めます。
// 管理者は現在状態が待っている段階の承認者として代行します。
func (s *Service) effectiveRole(actor *directory.User, current Status) (directory.Role, error) {
	if actor.Role != directory.RoleAdmin {
		return actor.Role, nil
	}
	stage, ok := stageForStatus(current)
	if !ok {
		return "", ErrStatusConflict
	}
	return roleForStage(stage), nil
}

// Cancel は申請者本人による取消を実行します。
// approved / rejected の申請は取り消せません。段階記録は書き込みません。
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

// GetRequest は休暇申請を取得します。
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
// 部門長は自部署の pending、副社長は自分に割り当てられた dept_approved、
// 総経理は割当が空か自分宛ての vp_approved を見ます。
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
