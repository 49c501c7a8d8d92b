package testutil

import (
	"nationbank/models"

	"github.com/shopspring/decimal"
)

// Amount parses a fixed literal amount and panics on malformed input
func Amount(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

// CreateTestDepositRequest builds a pending deposit request
func CreateTestDepositRequest(userID, amount string) *models.DepositRequest {
	return &models.DepositRequest{
		UserID:          userID,
		DiscordUsername: userID + "-discord",
		NationUsername:  userID + "-nation",
		Amount:          Amount(amount),
		ReceiptURL:      "https://receipts.example/" + userID,
		Status:          models.RequestStatusPending,
	}
}

// CreateTestWithdrawal builds a pending escrow hold
func CreateTestWithdrawal(userID, amount string) *models.Withdrawal {
	return &models.Withdrawal{
		UserID:     userID,
		Username:   userID + "-discord",
		Amount:     Amount(amount),
		NationName: "Nation1",
		Status:     models.RequestStatusPending,
	}
}

// CreateTestTransaction builds a transfer between two users
func CreateTestTransaction(fromUserID, toUserID, amount string) *models.Transaction {
	return models.NewTransaction(models.TransactionTypeTransfer,
		models.TransactionParty{UserID: fromUserID, Username: fromUserID},
		models.TransactionParty{UserID: toUserID, Username: toUserID},
		Amount(amount))
}
