package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"

	"github.com/ad/go-course-progress/internal/models"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []*bot.SendMessageParams
	failTo map[int64]bool
	nextID int
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chatID, ok := params.ChatID.(int64); ok && f.failTo[chatID] {
		return nil, errors.New("chat not found")
	}
	f.sent = append(f.sent, params)
	f.nextID++
	return &tgmodels.Message{ID: f.nextID}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestErrorManager_NotifyOverrideOncePerAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &fakeSender{}
	mgr := NewErrorManager(sender, []int64{100, 200}, env.adminMessages, nil)

	entry := &models.AuditEntry{ID: "audit-1", TargetUserID: "U", PerformedBy: "admin-1", Reason: "verified"}
	result := &OverrideResult{
		Success:  true,
		AuditID:  "audit-1",
		Warnings: []string{"already completed via natural"},
		Progress: &models.CourseProgress{CourseID: "C", ProgressPercentage: 60, Status: models.StatusInProgress},
	}

	mgr.NotifyOverride(ctx, entry, result)
	require.Equal(t, 2, sender.count())
	require.Contains(t, sender.sent[0].Text, "audit-1")
	require.Contains(t, sender.sent[0].Text, "60%")
	require.Contains(t, sender.sent[0].Text, "already completed via natural")

	mgr.NotifyOverride(ctx, entry, result)
	require.Equal(t, 2, sender.count(), "repeat notification must be skipped")

	msgs, err := env.adminMessages.List(ctx, "audit-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestErrorManager_FailedDeliveryIsRetriedLater(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &fakeSender{failTo: map[int64]bool{200: true}}
	mgr := NewErrorManager(sender, []int64{100, 200}, env.adminMessages, nil)

	entry := &models.AuditEntry{ID: "audit-2", TargetUserID: "U", PerformedBy: "admin-1", Reason: "verified"}
	result := &OverrideResult{Success: true, AuditID: "audit-2"}

	mgr.NotifyOverride(ctx, entry, result)
	require.Equal(t, 1, sender.count())

	sender.failTo = nil
	mgr.NotifyOverride(ctx, entry, result)
	require.Equal(t, 2, sender.count())
	require.Equal(t, int64(200), sender.sent[1].ChatID)
}

func TestErrorManager_NotifyAdminOnPanic(t *testing.T) {
	sender := &fakeSender{}
	mgr := NewErrorManager(sender, []int64{1, 2}, nil, nil)

	update := &tgmodels.Update{Message: &tgmodels.Message{From: &tgmodels.User{ID: 42, FirstName: "Ann", Username: "ann"}}}
	mgr.NotifyAdmin(context.Background(), "boom", update)

	require.Equal(t, 2, sender.count())
	text := sender.sent[0].Text
	require.True(t, strings.HasPrefix(text, "🚨 Panic in handler"))
	require.Contains(t, text, "Ann [42] @ann")
	require.Contains(t, text, "boom")
	require.LessOrEqual(t, len(text), telegramTextLimit+len("\n... (truncated)"))
}
