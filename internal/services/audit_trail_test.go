package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

func TestAuditTrail_RejectsInvalidEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.trail.Append(ctx, &models.AuditEntry{
		TargetUserID: "U",
		ActionType:   models.ActionRestore,
		PerformedBy:  "admin",
		Reason:       "  ",
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	require.Contains(t, apperr.IssuesOf(err), "reason is required")

	_, err = env.trail.Append(ctx, &models.AuditEntry{
		TargetUserID: "U",
		ActionType:   "rename",
		PerformedBy:  "admin",
		Reason:       "because",
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	require.Equal(t, 0, env.countRows(t, "audit_entries"))
}

func TestAuditTrail_AppendFillsIdentity(t *testing.T) {
	env := newTestEnv(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	env.trail.now = func() time.Time { return fixed }

	entry := &models.AuditEntry{
		TargetUserID: "U",
		ActionType:   models.ActionRoleChange,
		PerformedBy:  "admin",
		Reason:       "  promoted  ",
	}
	id, err := env.trail.Append(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, id, 36)

	stored, err := env.audits.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "promoted", stored.Reason)
	require.True(t, stored.PerformedAt.Equal(fixed))
	require.Equal(t, "null", string(stored.OldData))
}

func TestAuditTrail_QueryLimits(t *testing.T) {
	env := newTestEnv(t)
	env.trail = NewAuditTrail(env.audits, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := env.trail.Append(ctx, &models.AuditEntry{
			TargetUserID: "U",
			ActionType:   models.ActionUnitOverride,
			PerformedBy:  "admin",
			Reason:       "batch",
		})
		require.NoError(t, err)
	}

	got, err := env.trail.Query(ctx, models.AuditQuery{TargetUserID: "U"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = env.trail.Query(ctx, models.AuditQuery{TargetUserID: "U", Limit: 100000})
	require.NoError(t, err)
	require.Len(t, got, 4)

	_, err = env.trail.Query(ctx, models.AuditQuery{ActionType: "bogus"})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestNewAuditTrail_ClampsDefault(t *testing.T) {
	require.Equal(t, DefaultAuditLimit, NewAuditTrail(nil, 0).defaultLimit)
	require.Equal(t, DefaultAuditLimit, NewAuditTrail(nil, MaxAuditLimit+1).defaultLimit)
	require.Equal(t, 10, NewAuditTrail(nil, 10).defaultLimit)
}

func TestAuditTrail_QueryOrdersByInstantAcrossZones(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plusTwo := time.FixedZone("UTC+2", 2*60*60)

	// 08:00Z written as 10:00+02:00 reads later than 09:00Z as wall-clock text.
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, plusTwo)
	later := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	earlierID, err := env.trail.Append(ctx, &models.AuditEntry{
		TargetUserID: "U", ActionType: models.ActionRestore,
		PerformedBy: "admin", Reason: "first", PerformedAt: earlier,
	})
	require.NoError(t, err)
	laterID, err := env.trail.Append(ctx, &models.AuditEntry{
		TargetUserID: "U", ActionType: models.ActionSoftDelete,
		PerformedBy: "admin", Reason: "second", PerformedAt: later,
	})
	require.NoError(t, err)

	entries, err := env.trail.Query(ctx, models.AuditQuery{TargetUserID: "U"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, laterID, entries[0].ID)
	require.Equal(t, earlierID, entries[1].ID)
	require.True(t, entries[1].PerformedAt.Equal(earlier))
	require.Equal(t, time.UTC, entries[1].PerformedAt.Location())
}
