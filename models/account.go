package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the materialized balance of one account holder
type Account struct {
	UserID    string          `db:"user_id"`
	Username  string          `db:"username"`
	Balance   decimal.Decimal `db:"balance"`
	Profile   UserProfile     `db:"-"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// UserProfile holds the optional identity fields kept on an account.
// A nil field means the holder never provided it.
type UserProfile struct {
	PirateName  *string `db:"pirate_name"`
	RealName    *string `db:"real_name"`
	ShipName    *string `db:"ship_name"`
	Email       *string `db:"email"`
	PhoneNumber *string `db:"phone_number"`
}

// NotSet is shown in place of profile fields that were never provided
const NotSet = "Not set"

// UserInfo is the administrative lookup view of an account
type UserInfo struct {
	UserID         string
	Username       string
	Balance        decimal.Decimal
	PirateName     string
	RealName       string
	ShipName       string
	Email          string
	PhoneNumber    string
	NationUsername string // from the most recent approved deposit
}

// NewUserInfo builds the lookup view, substituting NotSet for absent fields
func NewUserInfo(account *Account, nationUsername *string) *UserInfo {
	return &UserInfo{
		UserID:         account.UserID,
		Username:       account.Username,
		Balance:        account.Balance,
		PirateName:     valueOrNotSet(account.Profile.PirateName),
		RealName:       valueOrNotSet(account.Profile.RealName),
		ShipName:       valueOrNotSet(account.Profile.ShipName),
		Email:          valueOrNotSet(account.Profile.Email),
		PhoneNumber:    valueOrNotSet(account.Profile.PhoneNumber),
		NationUsername: valueOrNotSet(nationUsername),
	}
}

func valueOrNotSet(v *string) string {
	if v == nil || *v == "" {
		return NotSet
	}
	return *v
}
