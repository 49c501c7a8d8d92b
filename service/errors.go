package service

import (
	"errors"
	"fmt"

	"nationbank/models"

	"github.com/shopspring/decimal"
)

// Errors returned at the ledger boundary. Match them with errors.Is.
var (
	ErrInvalidAmount     = models.ErrInvalidAmount
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransfer   = errors.New("invalid transfer")
	ErrNoMatchingRequest = errors.New("no matching request")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrStore             = errors.New("store error")
	ErrLedgerMismatch    = errors.New("ledger mismatch")
)

// MaxQueryLimit caps every listing query
const MaxQueryLimit = 100

// StoreError wraps a persistence failure with the operation that hit it
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}

// storeError wraps err unless it is already a ledger error
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isLedgerError(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func isLedgerError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInsufficientFunds, ErrInvalidTransfer, ErrNoMatchingRequest,
		ErrInvalidLimit, ErrInvalidRequest, ErrStore, ErrLedgerMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// LedgerMismatchError carries the report of a failed reconciliation
type LedgerMismatchError struct {
	Report *models.LedgerReport
}

func (e *LedgerMismatchError) Error() string {
	return fmt.Sprintf("ledger mismatch: master balance %s, balances %s, held escrow %s, difference %s",
		models.FormatAmount(e.Report.MasterBalance),
		models.FormatAmount(e.Report.TotalBalances),
		models.FormatAmount(e.Report.HeldEscrow),
		models.FormatAmount(e.Report.Difference))
}

func (e *LedgerMismatchError) Is(target error) bool {
	return target == ErrLedgerMismatch
}

// validatePositive checks an amount is above zero and fits the stored precision
func validatePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount.String())
	}
	return validateStorable(amount)
}

// validateStorable checks an amount fits a NUMERIC(20,2) column
func validateStorable(amount decimal.Decimal) error {
	if !models.HasValidScale(amount) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount.String(), models.AmountScale)
	}
	if !models.InRange(amount) {
		return fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, amount.String(), models.FormatAmount(models.MaxAmount))
	}
	return nil
}

// validateLimit rejects non-positive limits and caps the rest
func validateLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit, nil
	}
	return limit, nil
}
