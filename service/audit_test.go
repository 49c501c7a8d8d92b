package service

import (
	"context"
	"errors"
	"testing"

	"nationbank/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogAdminAction(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	audit := NewAuditService(store)

	require.NoError(t, audit.LogAdminAction(ctx, "admin-1", "", "freeze_account", "Froze account A."))

	logs := store.adminLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "admin-1", logs[0].AdminID)
	assert.Equal(t, "admin-1", logs[0].AdminUsername)
	assert.Equal(t, "Froze account A.", logs[0].Details)

	assert.ErrorIs(t, audit.LogAdminAction(ctx, "", "x", "action", ""), ErrInvalidRequest)
	assert.ErrorIs(t, audit.LogAdminAction(ctx, "admin-1", "x", "", ""), ErrInvalidRequest)
}

func TestAuditService_StoreFailure(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockLogs := new(MockAdminLogRepository)
	mockUoW.SetRepositories(mockRepositories{AdminLogs: mockLogs})

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockLogs.On("Record", ctx, mock.MatchedBy(func(entry *models.AdminLog) bool {
		return entry.Action == "note"
	})).Return(errors.New("read-only transaction"))

	err := NewAuditService(mockFactory).LogAdminAction(ctx, "admin-1", "Admiral", "note", "")
	assert.ErrorIs(t, err, ErrStore)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestAdminFailureRollsBackApproval(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	deposits := NewDepositService(store)
	requestDeposit(t, deposits, "A", "10")

	store.failOn("RecordAdminLog", errors.New("admin_logs unavailable"))
	_, err := deposits.ApproveDeposit(ctx, DepositDecision{UserID: "A", Amount: amount("10")})
	assert.ErrorIs(t, err, ErrStore)

	assert.True(t, store.balance("A").IsZero())
	pending, err := deposits.GetPendingDeposits(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
