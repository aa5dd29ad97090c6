package models

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// rank orders statuses along the only allowed direction of travel.
func (s ProgressStatus) rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

func (s ProgressStatus) Valid() bool {
	return s == StatusNotStarted || s == StatusInProgress || s == StatusCompleted
}

type CompletionMethod string

const (
	MethodNatural       CompletionMethod = "natural"
	MethodAdminOverride CompletionMethod = "admin_override"
)

func (m CompletionMethod) Valid() bool {
	return m == MethodNatural || m == MethodAdminOverride
}

type ActionType string

const (
	ActionRoleChange   ActionType = "role_change"
	ActionSoftDelete   ActionType = "soft_delete"
	ActionRestore      ActionType = "restore"
	ActionUnitOverride ActionType = "unit_override"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionRoleChange, ActionSoftDelete, ActionRestore, ActionUnitOverride:
		return true
	}
	return false
}
