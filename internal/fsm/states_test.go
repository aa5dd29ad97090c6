package fsm

import "testing"

func TestAwaitsReason(t *testing.T) {
	for _, s := range []string{StateAdminOverrideReason, StateAdminRoleReason, StateAdminDeactivateReason, StateAdminRestoreReason} {
		if !AwaitsReason(s) {
			t.Errorf("Expected %q to await a reason", s)
		}
	}
	for _, s := range []string{StateAdminIdle, "unknown"} {
		if AwaitsReason(s) {
			t.Errorf("Expected %q not to await a reason", s)
		}
	}
}
