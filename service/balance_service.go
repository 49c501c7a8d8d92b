package service

import (
	"context"
	"fmt"

	"nationbank/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type balanceService struct {
	uowFactory UnitOfWorkFactory
}

// NewBalanceService creates a new balance service
func NewBalanceService(uowFactory UnitOfWorkFactory) BalanceService {
	return &balanceService{
		uowFactory: uowFactory,
	}
}

// GetBalance returns the user's balance, zero when the user has no account.
// Store failures are returned, never defaulted to zero.
func (s *balanceService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, storeError("get balance", err)
	}
	if account == nil {
		return decimal.Zero, nil
	}

	return account.Balance, nil
}

// SetBalance overwrites a balance as an administrative correction
func (s *balanceService) SetBalance(ctx context.Context, userID, username string, amount decimal.Decimal) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: balance cannot be negative", ErrInvalidAmount)
	}
	if err := validateStorable(amount); err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("begin transaction", err)
	}
	defer uow.Rollback()

	oldBalance := decimal.Zero
	account, err := uow.AccountRepository().GetForUpdate(ctx, userID)
	if err != nil {
		return storeError("lock account", err)
	}
	if account != nil {
		oldBalance = account.Balance
	}

	if err := uow.AccountRepository().SetBalance(ctx, userID, username, amount); err != nil {
		return storeError("set balance", err)
	}

	tx := models.NewTransaction(models.TransactionTypeAdminSetBalance, models.SystemParty(),
		models.TransactionParty{UserID: userID, Username: username}, amount)
	if err := recordBalanceChange(ctx, uow, tx, balanceChange{
		UserID:     userID,
		Username:   username,
		OldBalance: oldBalance,
		NewBalance: amount,
	}); err != nil {
		return err
	}

	details := fmt.Sprintf("Set balance of user %s (%s) from %s to %s.",
		userID, username, models.FormatAmount(oldBalance), models.FormatAmount(amount))
	if err := recordAdminAction(ctx, uow, models.SystemParty(), models.AdminActionSetBalance, details); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return storeError("commit balance override", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"oldBalance": oldBalance.String(),
		"newBalance": amount.String(),
	}).Info("Balance overridden")

	return nil
}

// AddBalance credits funds with an upsert-increment and returns the new balance
func (s *balanceService) AddBalance(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if err := validatePositive(amount); err != nil {
		return decimal.Zero, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	newBalance, err := uow.AccountRepository().Credit(ctx, userID, username, amount)
	if err != nil {
		return decimal.Zero, storeError("credit balance", err)
	}

	tx := models.NewTransaction(models.TransactionTypeDeposit, models.SystemParty(),
		models.TransactionParty{UserID: userID, Username: username}, amount)
	if err := recordBalanceChange(ctx, uow, tx, balanceChange{
		UserID:     userID,
		Username:   username,
		OldBalance: newBalance.Sub(amount),
		NewBalance: newBalance,
	}); err != nil {
		return decimal.Zero, err
	}

	if err := uow.Commit(); err != nil {
		return decimal.Zero, storeError("commit credit", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"amount":     amount.String(),
		"newBalance": newBalance.String(),
	}).Debug("Balance credited")

	return newBalance, nil
}

// SubtractBalance debits funds only when the locked balance covers the amount
func (s *balanceService) SubtractBalance(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if err := validatePositive(amount); err != nil {
		return decimal.Zero, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetForUpdate(ctx, userID)
	if err != nil {
		return decimal.Zero, storeError("lock account", err)
	}
	if err := requireFunds(userID, account, amount); err != nil {
		log.WithFields(log.Fields{
			"userID": userID,
			"amount": amount.String(),
		}).Warn("Debit rejected")
		return decimal.Zero, err
	}

	newBalance, err := uow.AccountRepository().Debit(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, storeError("debit balance", err)
	}

	tx := models.NewTransaction(models.TransactionTypeWithdrawal,
		models.TransactionParty{UserID: userID, Username: username}, models.SystemParty(), amount)
	if err := recordBalanceChange(ctx, uow, tx, balanceChange{
		UserID:     userID,
		Username:   username,
		OldBalance: account.Balance,
		NewBalance: newBalance,
	}); err != nil {
		return decimal.Zero, err
	}

	if err := uow.Commit(); err != nil {
		return decimal.Zero, storeError("commit debit", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"amount":     amount.String(),
		"newBalance": newBalance.String(),
	}).Debug("Balance debited")

	return newBalance, nil
}

// TransferFunds moves funds between two accounts in one unit of work.
// Both rows are locked in user id order so opposite transfers cannot deadlock.
func (s *balanceService) TransferFunds(ctx context.Context, req TransferRequest) (*models.TransferResult, error) {
	if req.FromUserID == "" || req.ToUserID == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrInvalidTransfer)
	}
	if req.FromUserID == req.ToUserID {
		return nil, fmt.Errorf("%w: cannot transfer to yourself", ErrInvalidTransfer)
	}
	if err := validatePositive(req.Amount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	accounts := uow.AccountRepository()
	if err := accounts.EnsureAccount(ctx, req.ToUserID, req.ToUsername); err != nil {
		return nil, storeError("ensure recipient account", err)
	}

	locked, err := accounts.LockAccounts(ctx, []string{req.FromUserID, req.ToUserID})
	if err != nil {
		return nil, storeError("lock transfer accounts", err)
	}

	var sender, recipient *models.Account
	for _, account := range locked {
		switch account.UserID {
		case req.FromUserID:
			sender = account
		case req.ToUserID:
			recipient = account
		}
	}
	if recipient == nil {
		return nil, storeError("lock transfer accounts", fmt.Errorf("recipient %s missing after ensure", req.ToUserID))
	}
	if err := requireFunds(req.FromUserID, sender, req.Amount); err != nil {
		log.WithFields(log.Fields{
			"fromUserID": req.FromUserID,
			"toUserID":   req.ToUserID,
			"amount":     req.Amount.String(),
		}).Warn("Transfer rejected")
		return nil, err
	}

	senderBalance, err := accounts.Debit(ctx, req.FromUserID, req.Amount)
	if err != nil {
		return nil, storeError("debit sender", err)
	}
	recipientBalance, err := accounts.Credit(ctx, req.ToUserID, req.ToUsername, req.Amount)
	if err != nil {
		return nil, storeError("credit recipient", err)
	}

	recipientName := req.ToUsername
	if recipientName == "" {
		recipientName = recipient.Username
	}

	tx := models.NewTransaction(models.TransactionTypeTransfer,
		models.TransactionParty{UserID: req.FromUserID, Username: req.FromUsername},
		models.TransactionParty{UserID: req.ToUserID, Username: recipientName},
		req.Amount)
	if err := recordBalanceChange(ctx, uow, tx,
		balanceChange{UserID: req.FromUserID, Username: req.FromUsername, OldBalance: sender.Balance, NewBalance: senderBalance},
		balanceChange{UserID: req.ToUserID, Username: recipientName, OldBalance: recipient.Balance, NewBalance: recipientBalance},
	); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit transfer", err)
	}

	log.WithFields(log.Fields{
		"fromUserID":    req.FromUserID,
		"toUserID":      req.ToUserID,
		"amount":        req.Amount.String(),
		"transactionID": tx.ID.String(),
	}).Debug("Transfer completed")

	return &models.TransferResult{
		TransactionID:    tx.ID.String(),
		Amount:           req.Amount,
		SenderBalance:    senderBalance,
		RecipientBalance: recipientBalance,
		RecipientName:    recipientName,
	}, nil
}

// requireFunds treats a missing account as a zero balance
func requireFunds(userID string, account *models.Account, amount decimal.Decimal) error {
	balance := decimal.Zero
	if account != nil {
		balance = account.Balance
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: user %s has %s, needs %s", ErrInsufficientFunds, userID,
			models.FormatAmount(balance), models.FormatAmount(amount))
	}
	return nil
}
