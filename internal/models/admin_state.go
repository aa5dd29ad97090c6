package models

// AdminState holds a half-entered admin command while the bot waits for the
// reason text.
type AdminState struct {
	UserID         int64
	CurrentState   string
	TargetUserID   string
	TargetUnitID   string
	TargetCourseID string
	PendingRoles   []string
}
