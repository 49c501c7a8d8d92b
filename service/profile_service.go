package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"nationbank/models"

	log "github.com/sirupsen/logrus"
)

type profileService struct {
	uowFactory UnitOfWorkFactory
}

// NewProfileService creates a new profile service
func NewProfileService(uowFactory UnitOfWorkFactory) ProfileService {
	return &profileService{
		uowFactory: uowFactory,
	}
}

// UpdateUserInfo stores the non-nil profile fields, creating a zero balance
// account when the user has none. Balances are never touched.
func (s *profileService) UpdateUserInfo(ctx context.Context, userID string, profile models.UserProfile) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	profile = trimProfile(profile)
	if profile.Email != nil {
		if _, err := mail.ParseAddress(*profile.Email); err != nil {
			return fmt.Errorf("%w: malformed email address", ErrInvalidRequest)
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("begin transaction", err)
	}
	defer uow.Rollback()

	if err := uow.AccountRepository().UpdateProfile(ctx, userID, profile); err != nil {
		return storeError("update profile", err)
	}

	if err := uow.Commit(); err != nil {
		return storeError("commit profile update", err)
	}

	log.WithField("userID", userID).Debug("Profile updated")
	return nil
}

// LookupUserInfo returns the admin view of an account, or nil when the user has no account
func (s *profileService) LookupUserInfo(ctx context.Context, userID string) (*models.UserInfo, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError("get account", err)
	}
	if account == nil {
		return nil, nil
	}

	var nationUsername *string
	latest, err := uow.DepositRequestRepository().GetLatestApproved(ctx, userID)
	if err != nil {
		return nil, storeError("get latest approved deposit", err)
	}
	if latest != nil {
		nationUsername = &latest.NationUsername
	}

	return models.NewUserInfo(account, nationUsername), nil
}

// trimProfile drops surrounding whitespace and turns blank fields into nil
func trimProfile(profile models.UserProfile) models.UserProfile {
	for _, field := range []**string{
		&profile.PirateName, &profile.RealName, &profile.ShipName, &profile.Email, &profile.PhoneNumber,
	} {
		if *field == nil {
			continue
		}
		trimmed := strings.TrimSpace(**field)
		if trimmed == "" {
			*field = nil
			continue
		}
		*field = &trimmed
	}
	return profile
}
