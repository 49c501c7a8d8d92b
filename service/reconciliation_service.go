package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"nationbank/events"
	"nationbank/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type reconciliationService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(uowFactory UnitOfWorkFactory) ReconciliationService {
	return &reconciliationService{
		uowFactory: uowFactory,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// VerifyLedger checks that balances plus held escrow equal approved deposits
// minus approved withdrawals. A mismatch is returned as *LedgerMismatchError
// together with the report and is never corrected here.
func (s *reconciliationService) VerifyLedger(ctx context.Context) (*models.LedgerReport, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	totals, err := uow.ReconciliationRepository().Snapshot(ctx)
	if err != nil {
		return nil, storeError("read ledger totals", err)
	}

	report := models.NewLedgerReport(*totals, s.now())
	if report.Matches {
		log.WithFields(log.Fields{
			"masterBalance": report.MasterBalance.String(),
			"totalBalances": report.TotalBalances.String(),
			"heldEscrow":    report.HeldEscrow.String(),
		}).Debug("Ledger reconciled")
		return report, nil
	}

	log.WithFields(log.Fields{
		"approvedDeposits":    report.ApprovedDeposits.String(),
		"approvedWithdrawals": report.ApprovedWithdrawals.String(),
		"heldEscrow":          report.HeldEscrow.String(),
		"totalBalances":       report.TotalBalances.String(),
		"difference":          report.Difference.String(),
	}).Error("Ledger mismatch detected")

	uow.EventBus().Publish(events.LedgerMismatchEvent{
		ApprovedDeposits:    report.ApprovedDeposits,
		ApprovedWithdrawals: report.ApprovedWithdrawals,
		HeldEscrow:          report.HeldEscrow,
		TotalBalances:       report.TotalBalances,
		Difference:          report.Difference,
		CheckedAt:           report.CheckedAt,
	})
	if err := uow.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit reconciliation read, mismatch event dropped")
	}

	return report, &LedgerMismatchError{Report: report}
}

// GetMasterAccountBalance returns approved deposits minus approved withdrawals
func (s *reconciliationService) GetMasterAccountBalance(ctx context.Context) (decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	totals, err := uow.ReconciliationRepository().Snapshot(ctx)
	if err != nil {
		return decimal.Zero, storeError("read ledger totals", err)
	}

	return totals.ApprovedDeposits.Sub(totals.ApprovedWithdrawals), nil
}

// StartReconciliationWorker runs VerifyLedger immediately and then on every tick.
// Returns a cleanup function to stop the worker gracefully.
func (s *reconciliationService) StartReconciliationWorker(ctx context.Context, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})
	done := make(chan struct{})

	verify := func() {
		_, err := s.VerifyLedger(ctx)
		if err != nil && !errors.Is(err, ErrLedgerMismatch) {
			log.WithError(err).Error("Reconciliation run failed")
		}
	}

	go func() {
		defer close(done)
		log.WithField("interval", interval.String()).Info("Reconciliation worker started")

		verify()

		for {
			select {
			case <-ctx.Done():
				log.Info("Reconciliation worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Reconciliation worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				verify()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stopChan)
			<-done
		})
	}
}
