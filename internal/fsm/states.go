package fsm

// Admin conversation states. An admin in one of these states has started a
// command and the next plain text message is taken as its reason.
const (
	StateAdminIdle = ""

	StateAdminOverrideReason   = "admin_override_reason"
	StateAdminRoleReason       = "admin_role_reason"
	StateAdminDeactivateReason = "admin_deactivate_reason"
	StateAdminRestoreReason    = "admin_restore_reason"
)

// AwaitsReason reports whether state expects a reason message next.
func AwaitsReason(state string) bool {
	switch state {
	case StateAdminOverrideReason, StateAdminRoleReason, StateAdminDeactivateReason, StateAdminRestoreReason:
		return true
	}
	return false
}
