package service

import (
	"context"
	"fmt"
	"time"

	"nationbank/events"
	"nationbank/models"

	log "github.com/sirupsen/logrus"
)

type depositService struct {
	uowFactory UnitOfWorkFactory
}

// NewDepositService creates a new deposit workflow service
func NewDepositService(uowFactory UnitOfWorkFactory) DepositService {
	return &depositService{
		uowFactory: uowFactory,
	}
}

// RequestDeposit queues a pending deposit claim for admin review. Balances are untouched.
func (s *depositService) RequestDeposit(ctx context.Context, input DepositRequestInput) (*models.DepositRequest, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if input.NationUsername == "" {
		return nil, fmt.Errorf("%w: nation username is required", ErrInvalidRequest)
	}
	if input.ReceiptURL == "" {
		return nil, fmt.Errorf("%w: receipt url is required", ErrInvalidRequest)
	}
	if err := validatePositive(input.Amount); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	request := &models.DepositRequest{
		UserID:          input.UserID,
		DiscordUsername: input.DiscordUsername,
		NationUsername:  input.NationUsername,
		Amount:          input.Amount,
		ReceiptURL:      input.ReceiptURL,
		Status:          models.RequestStatusPending,
	}
	if err := uow.DepositRequestRepository().Create(ctx, request); err != nil {
		return nil, storeError("create deposit request", err)
	}

	uow.EventBus().Publish(events.DepositRequestedEvent{
		RequestID:      request.ID,
		UserID:         request.UserID,
		NationUsername: request.NationUsername,
		Amount:         request.Amount,
		ReceiptURL:     request.ReceiptURL,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit deposit request", err)
	}

	log.WithFields(log.Fields{
		"requestID": request.ID,
		"userID":    request.UserID,
		"amount":    request.Amount.String(),
	}).Info("Deposit request created")

	return request, nil
}

// ApproveDeposit credits the matched pending request and settles it as approved
func (s *depositService) ApproveDeposit(ctx context.Context, decision DepositDecision) (*models.DepositRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	request, err := s.resolvePending(ctx, uow, decision)
	if err != nil {
		return nil, err
	}

	admin := adminParty(decision.AdminID, decision.AdminUsername)
	username := decision.Username
	if username == "" {
		username = request.DiscordUsername
	}

	newBalance, err := uow.AccountRepository().Credit(ctx, request.UserID, username, request.Amount)
	if err != nil {
		return nil, storeError("credit deposit", err)
	}

	if err := uow.DepositRequestRepository().UpdateStatus(ctx, request.ID, models.RequestStatusApproved, admin.UserID); err != nil {
		return nil, storeError("approve deposit request", err)
	}

	tx := models.NewTransaction(models.TransactionTypeAdminApprove, admin,
		models.TransactionParty{UserID: request.UserID, Username: username}, request.Amount).
		WithRelated(request.ID)
	if err := recordBalanceChange(ctx, uow, tx, balanceChange{
		UserID:     request.UserID,
		Username:   username,
		OldBalance: newBalance.Sub(request.Amount),
		NewBalance: newBalance,
	}); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Approved deposit #%d of %s for user %s (%s).",
		request.ID, models.FormatAmount(request.Amount), request.UserID, username)
	if err := recordAdminAction(ctx, uow, admin, models.AdminActionApproveDeposit, details); err != nil {
		return nil, err
	}

	settle(request, models.RequestStatusApproved, admin.UserID)
	uow.EventBus().Publish(depositDecided(request, admin))

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit deposit approval", err)
	}

	log.WithFields(log.Fields{
		"requestID":  request.ID,
		"userID":     request.UserID,
		"amount":     request.Amount.String(),
		"adminID":    admin.UserID,
		"newBalance": newBalance.String(),
	}).Info("Deposit approved")

	return request, nil
}

// RejectDeposit settles the matched pending request as rejected without touching balances
func (s *depositService) RejectDeposit(ctx context.Context, decision DepositDecision) (*models.DepositRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	request, err := s.resolvePending(ctx, uow, decision)
	if err != nil {
		return nil, err
	}

	admin := adminParty(decision.AdminID, decision.AdminUsername)
	username := decision.Username
	if username == "" {
		username = request.DiscordUsername
	}

	if err := uow.DepositRequestRepository().UpdateStatus(ctx, request.ID, models.RequestStatusRejected, admin.UserID); err != nil {
		return nil, storeError("reject deposit request", err)
	}

	tx := models.NewTransaction(models.TransactionTypeAdminReject, admin,
		models.TransactionParty{UserID: request.UserID, Username: username}, request.Amount).
		WithRelated(request.ID)
	if err := recordTransaction(ctx, uow, tx); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Rejected deposit #%d of %s for user %s (%s).",
		request.ID, models.FormatAmount(request.Amount), request.UserID, username)
	if err := recordAdminAction(ctx, uow, admin, models.AdminActionRejectDeposit, details); err != nil {
		return nil, err
	}

	settle(request, models.RequestStatusRejected, admin.UserID)
	uow.EventBus().Publish(depositDecided(request, admin))

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit deposit rejection", err)
	}

	log.WithFields(log.Fields{
		"requestID": request.ID,
		"userID":    request.UserID,
		"adminID":   admin.UserID,
	}).Info("Deposit rejected")

	return request, nil
}

// GetPendingDeposits lists pending requests, newest first
func (s *depositService) GetPendingDeposits(ctx context.Context) ([]*models.DepositRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return []*models.DepositRequest{}, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	requests, err := uow.DepositRequestRepository().GetPending(ctx)
	if err != nil {
		return []*models.DepositRequest{}, storeError("get pending deposits", err)
	}
	if requests == nil {
		requests = []*models.DepositRequest{}
	}
	return requests, nil
}

// resolvePending locks the request a decision targets. An explicit id must name a
// pending request that agrees with any user and amount supplied; without an id the
// oldest pending request for the exact user and amount is used.
func (s *depositService) resolvePending(ctx context.Context, uow UnitOfWork, decision DepositDecision) (*models.DepositRequest, error) {
	repo := uow.DepositRequestRepository()

	if decision.RequestID > 0 {
		request, err := repo.GetByIDForUpdate(ctx, decision.RequestID)
		if err != nil {
			return nil, storeError("lock deposit request", err)
		}
		if request == nil || request.Status != models.RequestStatusPending {
			return nil, fmt.Errorf("%w: deposit request #%d is not pending", ErrNoMatchingRequest, decision.RequestID)
		}
		if decision.UserID != "" && decision.UserID != request.UserID {
			return nil, fmt.Errorf("%w: deposit request #%d belongs to another user", ErrNoMatchingRequest, decision.RequestID)
		}
		if !decision.Amount.IsZero() && !decision.Amount.Equal(request.Amount) {
			return nil, fmt.Errorf("%w: deposit request #%d is for a different amount", ErrNoMatchingRequest, decision.RequestID)
		}
		return request, nil
	}

	if decision.UserID == "" {
		return nil, fmt.Errorf("%w: request id or user id is required", ErrInvalidRequest)
	}
	if err := validatePositive(decision.Amount); err != nil {
		return nil, err
	}

	request, err := repo.FindPendingForUpdate(ctx, decision.UserID, decision.Amount)
	if err != nil {
		return nil, storeError("find pending deposit request", err)
	}
	if request == nil {
		return nil, fmt.Errorf("%w: no pending deposit of %s for user %s",
			ErrNoMatchingRequest, models.FormatAmount(decision.Amount), decision.UserID)
	}
	return request, nil
}

func settle(request *models.DepositRequest, status models.RequestStatus, decidedBy string) {
	now := time.Now().UTC()
	request.Status = status
	request.DecidedAt = &now
	request.DecidedBy = &decidedBy
}

func depositDecided(request *models.DepositRequest, admin models.TransactionParty) events.DepositDecidedEvent {
	return events.DepositDecidedEvent{
		RequestID: request.ID,
		UserID:    request.UserID,
		Amount:    request.Amount,
		Status:    request.Status,
		AdminID:   admin.UserID,
	}
}
