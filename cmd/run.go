package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nationbank/config"
	"nationbank/database"
	"nationbank/events"
	"nationbank/infrastructure"
	"nationbank/infrastructure/observability"
	"nationbank/models"
	"nationbank/repository"
	"nationbank/service"

	log "github.com/sirupsen/logrus"
)

// Services groups the ledger engine operations exposed to the presentation layer
type Services struct {
	Balances       service.BalanceService
	Deposits       service.DepositService
	Withdrawals    service.WithdrawalService
	Reconciliation service.ReconciliationService
	Reporting      service.ReportingService
	Profiles       service.ProfileService
	Audit          service.AuditService
}

// NewServices builds every ledger service on one unit of work factory
func NewServices(uowFactory service.UnitOfWorkFactory, cfg *config.Config) *Services {
	return &Services{
		Balances:       service.NewBalanceService(uowFactory),
		Deposits:       service.NewDepositService(uowFactory),
		Withdrawals:    service.NewWithdrawalService(uowFactory, cfg.AutoReleaseOnReject),
		Reconciliation: service.NewReconciliationService(uowFactory),
		Reporting:      service.NewReportingService(uowFactory),
		Profiles:       service.NewProfileService(uowFactory),
		Audit:          service.NewAuditService(uowFactory),
	}
}

// Run initializes the ledger engine and serves until ctx is cancelled
func Run(ctx context.Context) error {
	log.Info("Starting nationbank ledger...")

	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), cfg.PoolOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	eventBus := events.NewBus()

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.Attach(eventBus)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics provider")
		}
	}()

	if cfg.NATSServers != "" {
		natsClient, err := connectNATS(ctx, cfg, eventBus)
		if err != nil {
			return err
		}
		defer natsClient.Close()
	} else {
		log.Info("NATS_SERVERS not set, event forwarding disabled")
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	services := NewServices(uowFactory, cfg)
	logStartupState(ctx, services)

	if cfg.ReconciliationInterval > 0 {
		stopReconciliation := services.Reconciliation.StartReconciliationWorker(ctx, cfg.ReconciliationInterval)
		defer stopReconciliation()
	}

	log.WithField("environment", cfg.Environment).Info("Ledger is running")
	<-ctx.Done()

	log.Info("Shutting down ledger...")
	return nil
}

// connectNATS connects to NATS and forwards every committed event to JetStream
func connectNATS(ctx context.Context, cfg *config.Config, bus *events.Bus) (*infrastructure.NATSClient, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := natsClient.Connect(connectCtx); err != nil {
		return nil, err
	}

	forwarder := infrastructure.NewEventForwarder(natsClient, cfg.NATSSubjectPrefix)
	if err := natsClient.EnsureStream(infrastructure.EventStreamName, forwarder.Subjects()); err != nil {
		natsClient.Close()
		return nil, err
	}
	forwarder.Attach(bus)
	return natsClient, nil
}

func logStartupState(ctx context.Context, services *Services) {
	master, err := services.Reconciliation.GetMasterAccountBalance(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read master account balance")
		return
	}
	pending, err := services.Deposits.GetPendingDeposits(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read pending deposits")
	}
	log.WithFields(log.Fields{
		"masterBalance":   models.FormatAmount(master),
		"pendingDeposits": len(pending),
	}).Info("Ledger state loaded")
}

// VerifyLedger runs a single reconciliation check. A mismatch is reported through the
// returned error, which wraps service.ErrLedgerMismatch.
func VerifyLedger(ctx context.Context) (*models.LedgerReport, error) {
	cfg := config.Get()

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), cfg.PoolOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	report, err := service.NewReconciliationService(repository.NewUnitOfWorkFactory(db, events.NewBus())).VerifyLedger(ctx)
	if err != nil && !errors.Is(err, service.ErrLedgerMismatch) {
		return nil, err
	}

	log.WithFields(log.Fields{
		"approvedDeposits":    models.FormatAmount(report.ApprovedDeposits),
		"approvedWithdrawals": models.FormatAmount(report.ApprovedWithdrawals),
		"heldEscrow":          models.FormatAmount(report.HeldEscrow),
		"totalBalances":       models.FormatAmount(report.TotalBalances),
		"masterBalance":       models.FormatAmount(report.MasterBalance),
		"difference":          models.FormatAmount(report.Difference),
		"matches":             report.Matches,
	}).Info("Ledger verification finished")

	return report, err
}
