package leave

import (
	"github.com/ogurasousui/attendance-approval/internal/core/directory"
)

// 日数しきい値。必要な承認段階の数を決める固定の業務ルールです。
// 1日以内は部門長のみ、3日以内は部門長と副社長、それ以上は総経理まで。
const (
	departmentOnlyMaxDays = 1
	vicePresidentMaxDays  = 3
)

// RequiredStages は日数から必要な承認段階を返します。
func RequiredStages(days float64) []Stage {
	if days <= departmentOnlyMaxDays {
		return []Stage{StageDepartment}
	}
	if days <= vicePresidentMaxDays {
		return []Stage{StageDepartment, StageVicePresident}
	}
	return []Stage{StageDepartment, StageVicePresident, StageGeneralManager}
}

// StageForRole は役職が担当する承認段階を返します。
func StageForRole(role directory.Role) (Stage, bool) {
	switch role {
	case directory.RoleDepartmentHead:
		return StageDepartment, true
	case directory.RoleVicePresident:
		return StageVicePresident, true
	case directory.RoleGeneralManager:
		return StageGeneralManager, true
	default:
		return "", false
	}
}

// stageForStatus は現在状態が待っている承認段階を返します。
// 管理者が代行する際に段階を決めるために使います。
func stageForStatus(status Status) (Stage, bool) {
	switch status {
	case StatusPending:
		return StageDepartment, true
	case StatusDeptApproved:
		return StageVicePresident, true
	case StatusVPApproved:
		return StageGeneralManager, true
	default:
		return "", false
	}
}

// roleForStage は承認段階を担当する役職を返します。
func roleForStage(stage Stage) directory.Role {
	switch stage {
	case StageDepartment:
		return directory.RoleDepartmentHead
	case StageVicePresident:
		return directory.RoleVicePresident
	default:
		return directory.RoleGeneralManager
	}
}

// NextStatus は (現在状態, 役職, 判断, 日数) から次状態を返します。
// 副社長・総経理の本人承認では pending を自役職の段階とみなします。
// 対応する遷移が無い場合は ErrStatusConflict を返し、審査済みの行に
// 対する古い読み取りからの操作を閉じた側へ倒します。
func NextStatus(current Status, role directory.Role, decision Decision, days float64) (Status, error) {
	if !decision.IsValid() {
		return "", ErrInvalidDecision
	}

	switch role {
	case directory.RoleDepartmentHead:
		if current != StatusPending {
			return "", ErrStatusConflict
		}
		if decision == DecisionReject {
			return StatusRejected, nil
		}
		if days <= departmentOnlyMaxDays {
			return StatusApproved, nil
		}
		return StatusDeptApproved, nil

	case directory.RoleVicePresident:
		if current != StatusDeptApproved && current != StatusPending {
			return "", ErrStatusConflict
		}
		if decision == DecisionReject {
			return StatusRejected, nil
		}
		if days <= vicePresidentMaxDays {
			return StatusApproved, nil
		}
		return StatusVPApproved, nil

	case directory.RoleGeneralManager:
		if current != StatusVPApproved && current != StatusPending {
			return "", ErrStatusConflict
		}
		if decision == DecisionReject {
			return StatusRejected, nil
		}
		return StatusApproved, nil

	default:
		return "", ErrStatusConflict
	}
}
