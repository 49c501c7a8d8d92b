package service

import (
	"context"
	"fmt"

	"nationbank/events"
	"nationbank/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// balanceChange describes the before and after state of one account touched by a transaction
type balanceChange struct {
	UserID     string
	Username   string
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
}

// recordBalanceChange writes the transaction row and queues one BalanceChangeEvent per
// touched account. Every balance mutation goes through here so nothing moves unaudited.
func recordBalanceChange(ctx context.Context, uow UnitOfWork, tx *models.Transaction, changes ...balanceChange) error {
	if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
		return storeError("record transaction", err)
	}

	for _, change := range changes {
		uow.EventBus().Publish(events.BalanceChangeEvent{
			UserID:          change.UserID,
			Username:        change.Username,
			OldBalance:      change.OldBalance,
			NewBalance:      change.NewBalance,
			TransactionType: tx.Type,
			TransactionID:   tx.ID.String(),
			ChangeAmount:    change.NewBalance.Sub(change.OldBalance),
		})
	}

	return nil
}

// recordTransaction writes a transaction row that does not move a balance
func recordTransaction(ctx context.Context, uow UnitOfWork, tx *models.Transaction) error {
	if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
		return storeError("record transaction", err)
	}
	return nil
}

// recordAdminAction appends an admin log row inside the caller's unit of work
func recordAdminAction(ctx context.Context, uow UnitOfWork, admin models.TransactionParty, action, details string) error {
	entry := &models.AdminLog{
		AdminID:       admin.UserID,
		AdminUsername: admin.Username,
		Action:        action,
		Details:       details,
	}
	if err := uow.AdminLogRepository().Record(ctx, entry); err != nil {
		return storeError("record admin action", err)
	}
	return nil
}

// adminParty falls back to the anonymous ADMIN actor when no identity is supplied
func adminParty(adminID, adminUsername string) models.TransactionParty {
	if adminID == "" {
		return models.AdminParty()
	}
	if adminUsername == "" {
		adminUsername = adminID
	}
	return models.TransactionParty{UserID: adminID, Username: adminUsername}
}

type auditService struct {
	uowFactory UnitOfWorkFactory
}

// NewAuditService creates a new audit service
func NewAuditService(uowFactory UnitOfWorkFactory) AuditService {
	return &auditService{uowFactory: uowFactory}
}

// LogAdminAction appends a standalone admin log entry
func (s *auditService) LogAdminAction(ctx context.Context, adminID, adminUsername, action, details string) error {
	if adminID == "" || action == "" {
		return fmt.Errorf("%w: admin id and action are required", ErrInvalidRequest)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("begin transaction", err)
	}
	defer uow.Rollback()

	if err := recordAdminAction(ctx, uow, adminParty(adminID, adminUsername), action, details); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return storeError("commit admin action", err)
	}

	log.WithFields(log.Fields{
		"adminID": adminID,
		"action":  action,
	}).Info("Admin action logged")

	return nil
}
