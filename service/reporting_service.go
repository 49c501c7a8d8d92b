package service

import (
	"context"
	"fmt"

	"nationbank/models"
)

type reportingService struct {
	uowFactory UnitOfWorkFactory
}

// NewReportingService creates a new read-only reporting service
func NewReportingService(uowFactory UnitOfWorkFactory) ReportingService {
	return &reportingService{
		uowFactory: uowFactory,
	}
}

// Listing calls return an empty slice alongside any error so display paths can ignore failures.

// GetTransactions returns the most recent transactions, newest first
func (s *reportingService) GetTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	return s.GetTransactionLogs(ctx, TransactionLogFilter{Limit: limit})
}

// GetTransactionLogs returns the most recent transactions, optionally of a single type
func (s *reportingService) GetTransactionLogs(ctx context.Context, filter TransactionLogFilter) ([]*models.Transaction, error) {
	limit, err := validateLimit(filter.Limit)
	if err != nil {
		return []*models.Transaction{}, err
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return []*models.Transaction{}, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidRequest, *filter.Type)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return []*models.Transaction{}, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	txs, err := uow.TransactionRepository().GetRecent(ctx, limit, filter.Type)
	if err != nil {
		return []*models.Transaction{}, storeError("get transactions", err)
	}
	return nonNil(txs), nil
}

// GetTransactionsByUser returns transactions where the user is either party, newest first
func (s *reportingService) GetTransactionsByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	limit, err := validateLimit(limit)
	if err != nil {
		return []*models.Transaction{}, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return []*models.Transaction{}, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	txs, err := uow.TransactionRepository().GetByUser(ctx, userID, limit)
	if err != nil {
		return []*models.Transaction{}, storeError("get user transactions", err)
	}
	return nonNil(txs), nil
}

// GetAdminLogs returns the most recent admin actions, newest first
func (s *reportingService) GetAdminLogs(ctx context.Context, limit int) ([]*models.AdminLog, error) {
	limit, err := validateLimit(limit)
	if err != nil {
		return []*models.AdminLog{}, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return []*models.AdminLog{}, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	entries, err := uow.AdminLogRepository().GetRecent(ctx, limit)
	if err != nil {
		return []*models.AdminLog{}, storeError("get admin logs", err)
	}
	if entries == nil {
		entries = []*models.AdminLog{}
	}
	return entries, nil
}

func nonNil(txs []*models.Transaction) []*models.Transaction {
	if txs == nil {
		return []*models.Transaction{}
	}
	return txs
}
