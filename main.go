package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nationbank/cmd"
	"nationbank/config"
	"nationbank/database"
	"nationbank/service"

	log "github.com/sirupsen/logrus"
)

func main() {
	configureLogging()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.WithError(err).Fatal("Migration error")
			}
			return
		case "verify-ledger":
			os.Exit(handleVerifyLedger())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		log.WithError(err).Fatal("Application error")
	}
}

// configureLogging reads the environment directly so it runs before config validation
func configureLogging() {
	switch os.Getenv("ENVIRONMENT") {
	case "", "development", "test":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: nationbank migrate [up|down|status] [args...]")
	}

	databaseURL := config.Get().GetDatabaseURL()

	switch command := os.Args[2]; command {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		status, err := database.MigrateStatus(databaseURL)
		if err != nil {
			return err
		}
		if !status.Applied {
			fmt.Println("No migrations applied")
			return nil
		}
		fmt.Printf("Version: %d, dirty: %t\n", status.Version, status.Dirty)
		return nil
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// handleVerifyLedger returns the process exit code: 1 on mismatch, 2 when the check could not run
func handleVerifyLedger() int {
	report, err := cmd.VerifyLedger(context.Background())
	switch {
	case errors.Is(err, service.ErrLedgerMismatch):
		log.WithError(err).Error("Ledger does not reconcile")
		return 1
	case err != nil:
		log.WithError(err).Error("Ledger verification failed")
		return 2
	}
	fmt.Printf("Ledger reconciles: master balance %s\n", report.MasterBalance.StringFixed(2))
	return 0
}
