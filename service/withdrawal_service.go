package service

import (
	"context"
	"fmt"
	"time"

	"nationbank/events"
	"nationbank/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type withdrawalService struct {
	uowFactory          UnitOfWorkFactory
	autoReleaseOnReject bool
}

// NewWithdrawalService creates a new escrow and withdrawal service.
// When autoReleaseOnReject is set, rejecting a withdrawal returns the held
// funds to the balance in the same unit of work.
func NewWithdrawalService(uowFactory UnitOfWorkFactory, autoReleaseOnReject bool) WithdrawalService {
	return &withdrawalService{
		uowFactory:          uowFactory,
		autoReleaseOnReject: autoReleaseOnReject,
	}
}

// PlaceInEscrow moves funds out of the spendable balance into a new pending hold
func (s *withdrawalService) PlaceInEscrow(ctx context.Context, userID, username, nationName string, amount decimal.Decimal) (*models.Withdrawal, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if nationName == "" {
		return nil, fmt.Errorf("%w: nation name is required", ErrInvalidRequest)
	}
	if err := validatePositive(amount); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, storeError("lock account", err)
	}
	if err := requireFunds(userID, account, amount); err != nil {
		log.WithFields(log.Fields{
			"userID": userID,
			"amount": amount.String(),
		}).Warn("Escrow hold rejected")
		return nil, err
	}

	newBalance, err := uow.AccountRepository().Debit(ctx, userID, amount)
	if err != nil {
		return nil, storeError("debit balance", err)
	}

	if username == "" {
		username = account.Username
	}
	hold := &models.Withdrawal{
		UserID:     userID,
		Username:   username,
		Amount:     amount,
		NationName: nationName,
		Status:     models.RequestStatusPending,
	}
	if err := uow.EscrowRepository().Create(ctx, hold); err != nil {
		return nil, storeError("create escrow hold", err)
	}

	tx := models.NewTransaction(models.TransactionTypeEscrowHold,
		models.TransactionParty{UserID: userID, Username: username}, models.SystemParty(), amount).
		WithRelated(hold.ID)
	if err := recordBalanceChange(ctx, uow, tx, balanceChange{
		UserID:     userID,
		Username:   username,
		OldBalance: account.Balance,
		NewBalance: newBalance,
	}); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.WithdrawalRequestedEvent{
		WithdrawalID: hold.ID,
		UserID:       userID,
		NationName:   nationName,
		Amount:       amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit escrow hold", err)
	}

	log.WithFields(log.Fields{
		"withdrawalID": hold.ID,
		"userID":       userID,
		"amount":       amount.String(),
		"nationName":   nationName,
	}).Info("Funds placed in escrow")

	return hold, nil
}

// GetPendingWithdrawals lists holds awaiting a decision, newest first
func (s *withdrawalService) GetPendingWithdrawals(ctx context.Context) ([]*models.Withdrawal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return []*models.Withdrawal{}, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	holds, err := uow.EscrowRepository().GetPending(ctx)
	if err != nil {
		return []*models.Withdrawal{}, storeError("get pending withdrawals", err)
	}
	if holds == nil {
		holds = []*models.Withdrawal{}
	}
	return holds, nil
}

// GetEscrowBalance returns the total the user currently has held in escrow
func (s *withdrawalService) GetEscrowBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	held, err := uow.EscrowRepository().SumHeldByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, storeError("get escrow balance", err)
	}
	return held, nil
}

// ApproveWithdrawal records that the external payout happened. The held funds are
// considered disbursed and never return to the balance.
func (s *withdrawalService) ApproveWithdrawal(ctx context.Context, decision WithdrawalDecision) (*WithdrawalOutcome, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	hold, err := s.resolve(ctx, uow, decision, false)
	if err != nil {
		return nil, err
	}

	admin := adminParty(decision.AdminID, decision.AdminUsername)
	username := displayName(decision.Username, hold.Username)

	if err := uow.EscrowRepository().UpdateStatus(ctx, hold.ID, models.RequestStatusApproved, admin.UserID); err != nil {
		return nil, storeError("approve withdrawal", err)
	}

	tx := models.NewTransaction(models.TransactionTypeAdminWithdrawalApprove, admin,
		models.TransactionParty{UserID: hold.UserID, Username: username}, hold.Amount).
		WithRelated(hold.ID)
	if err := recordTransaction(ctx, uow, tx); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Approved withdrawal #%d of %s for user %s (%s) to nation %s.",
		hold.ID, models.FormatAmount(hold.Amount), hold.UserID, username, hold.NationName)
	if err := recordAdminAction(ctx, uow, admin, models.AdminActionApproveWithdrawal, details); err != nil {
		return nil, err
	}

	decide(hold, models.RequestStatusApproved, admin.UserID)
	uow.EventBus().Publish(withdrawalDecided(hold, admin, false))

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit withdrawal approval", err)
	}

	log.WithFields(log.Fields{
		"withdrawalID": hold.ID,
		"userID":       hold.UserID,
		"amount":       hold.Amount.String(),
		"adminID":      admin.UserID,
	}).Info("Withdrawal approved")

	return &WithdrawalOutcome{Withdrawal: hold}, nil
}

// RejectWithdrawal settles a pending hold as rejected and, when configured,
// releases the held funds in the same unit of work.
func (s *withdrawalService) RejectWithdrawal(ctx context.Context, decision WithdrawalDecision) (*WithdrawalOutcome, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	hold, err := s.resolve(ctx, uow, decision, false)
	if err != nil {
		return nil, err
	}

	admin := adminParty(decision.AdminID, decision.AdminUsername)
	username := displayName(decision.Username, hold.Username)

	if err := uow.EscrowRepository().UpdateStatus(ctx, hold.ID, models.RequestStatusRejected, admin.UserID); err != nil {
		return nil, storeError("reject withdrawal", err)
	}
	decide(hold, models.RequestStatusRejected, admin.UserID)

	tx := models.NewTransaction(models.TransactionTypeAdminWithdrawalReject, admin,
		models.TransactionParty{UserID: hold.UserID, Username: username}, hold.Amount).
		WithRelated(hold.ID)
	if err := recordTransaction(ctx, uow, tx); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Denied withdrawal #%d of %s for user %s (%s).",
		hold.ID, models.FormatAmount(hold.Amount), hold.UserID, username)
	if err := recordAdminAction(ctx, uow, admin, models.AdminActionDenyWithdrawal, details); err != nil {
		return nil, err
	}

	outcome := &WithdrawalOutcome{Withdrawal: hold}
	if s.autoReleaseOnReject {
		newBalance, err := s.release(ctx, uow, hold, username, admin)
		if err != nil {
			return nil, err
		}
		outcome.Released = true
		outcome.NewBalance = newBalance
	}

	uow.EventBus().Publish(withdrawalDecided(hold, admin, outcome.Released))

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit withdrawal rejection", err)
	}

	log.WithFields(log.Fields{
		"withdrawalID": hold.ID,
		"userID":       hold.UserID,
		"amount":       hold.Amount.String(),
		"adminID":      admin.UserID,
		"released":     outcome.Released,
	}).Info("Withdrawal rejected")

	return outcome, nil
}

// ReleaseEscrow returns a held amount to the user's balance. Only holds that are
// pending, or rejected and not yet released, can be released.
func (s *withdrawalService) ReleaseEscrow(ctx context.Context, ref WithdrawalRef) (*WithdrawalOutcome, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	hold, err := s.resolve(ctx, uow, ref, true)
	if err != nil {
		return nil, err
	}

	admin := adminParty(ref.AdminID, ref.AdminUsername)
	username := displayName(ref.Username, hold.Username)

	newBalance, err := s.release(ctx, uow, hold, username, admin)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Released escrow #%d of %s back to user %s (%s).",
		hold.ID, models.FormatAmount(hold.Amount), hold.UserID, username)
	if err := recordAdminAction(ctx, uow, admin, models.AdminActionReleaseEscrow, details); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit escrow release", err)
	}

	log.WithFields(log.Fields{
		"withdrawalID": hold.ID,
		"userID":       hold.UserID,
		"amount":       hold.Amount.String(),
		"newBalance":   newBalance.String(),
	}).Info("Escrow released")

	return &WithdrawalOutcome{Withdrawal: hold, Released: true, NewBalance: newBalance}, nil
}

// release credits the hold back to its owner and stamps it released
func (s *withdrawalService) release(ctx context.Context, uow UnitOfWork, hold *models.Withdrawal, username string, admin models.TransactionParty) (decimal.Decimal, error) {
	newBalance, err := uow.AccountRepository().Credit(ctx, hold.UserID, username, hold.Amount)
	if err != nil {
		return decimal.Zero, storeError("credit released escrow", err)
	}

	if err := uow.EscrowRepository().MarkReleased(ctx, hold.ID, admin.UserID); err != nil {
		return decimal.Zero, storeError("mark escrow released", err)
	}
	if hold.Status == models.RequestStatusPending {
		decide(hold, models.RequestStatusRejected, admin.UserID)

		reject := models.NewTransaction(models.TransactionTypeAdminWithdrawalReject, admin,
			models.TransactionParty{UserID: hold.UserID, Username: username}, hold.Amount).
			WithRelated(hold.ID)
		if err := recordTransaction(ctx, uow, reject); err != nil {
			return decimal.Zero, err
		}
	}
	now := time.Now().UTC()
	hold.ReleasedAt = &now

	tx := models.NewTransaction(models.TransactionTypeEscrowRelease, models.SystemParty(),
		models.TransactionParty{UserID: hold.UserID, Username: username}, hold.Amount).
		WithRelated(hold.ID)
	if err := recordBalanceChange(ctx, uow, tx, balanceChange{
		UserID:     hold.UserID,
		Username:   username,
		OldBalance: newBalance.Sub(hold.Amount),
		NewBalance: newBalance,
	}); err != nil {
		return decimal.Zero, err
	}

	uow.EventBus().Publish(events.EscrowReleasedEvent{
		WithdrawalID: hold.ID,
		UserID:       hold.UserID,
		Amount:       hold.Amount,
	})

	return newBalance, nil
}

// resolve locks the hold a decision targets, matched by id first and by
// user and amount otherwise. releasable widens the match to rejected holds
// whose funds are still held.
func (s *withdrawalService) resolve(ctx context.Context, uow UnitOfWork, decision WithdrawalDecision, releasable bool) (*models.Withdrawal, error) {
	repo := uow.EscrowRepository()

	if decision.WithdrawalID > 0 {
		hold, err := repo.GetByIDForUpdate(ctx, decision.WithdrawalID)
		if err != nil {
			return nil, storeError("lock escrow hold", err)
		}
		if hold == nil || !matchesState(hold, releasable) {
			return nil, fmt.Errorf("%w: withdrawal #%d is not in a state that allows this", ErrNoMatchingRequest, decision.WithdrawalID)
		}
		if decision.UserID != "" && decision.UserID != hold.UserID {
			return nil, fmt.Errorf("%w: withdrawal #%d belongs to another user", ErrNoMatchingRequest, decision.WithdrawalID)
		}
		if !decision.Amount.IsZero() && !decision.Amount.Equal(hold.Amount) {
			return nil, fmt.Errorf("%w: withdrawal #%d is for a different amount", ErrNoMatchingRequest, decision.WithdrawalID)
		}
		return hold, nil
	}

	if decision.UserID == "" {
		return nil, fmt.Errorf("%w: withdrawal id or user id is required", ErrInvalidRequest)
	}
	if err := validatePositive(decision.Amount); err != nil {
		return nil, err
	}

	var (
		hold *models.Withdrawal
		err  error
	)
	if releasable {
		hold, err = repo.FindReleasableForUpdate(ctx, decision.UserID, decision.Amount)
	} else {
		hold, err = repo.FindPendingForUpdate(ctx, decision.UserID, decision.Amount)
	}
	if err != nil {
		return nil, storeError("find escrow hold", err)
	}
	if hold == nil {
		return nil, fmt.Errorf("%w: no matching escrow of %s for user %s",
			ErrNoMatchingRequest, models.FormatAmount(decision.Amount), decision.UserID)
	}
	return hold, nil
}

func matchesState(hold *models.Withdrawal, releasable bool) bool {
	if releasable {
		return hold.IsHeld()
	}
	return hold.Status == models.RequestStatusPending
}

func decide(hold *models.Withdrawal, status models.RequestStatus, decidedBy string) {
	now := time.Now().UTC()
	hold.Status = status
	hold.DecidedAt = &now
	hold.DecidedBy = &decidedBy
}

func displayName(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func withdrawalDecided(hold *models.Withdrawal, admin models.TransactionParty, released bool) events.WithdrawalDecidedEvent {
	return events.WithdrawalDecidedEvent{
		WithdrawalID: hold.ID,
		UserID:       hold.UserID,
		Amount:       hold.Amount,
		Status:       hold.Status,
		AdminID:      admin.UserID,
		Released:     released,
	}
}
