package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"authgate/internal/auth"
	"authgate/internal/domain"
)

// createPasswordIdentity registers a new unverified account with a pending
// verification token.
func (s *authService) createPasswordIdentity(ctx context.Context, email, password string) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	verification, err := auth.RandomToken(32)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      hash,
		Role:              domain.RoleUser,
		Verified:          false,
		VerificationToken: verification,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// findOrCreateMagicLinkIdentity returns the account for email, creating a
// verified passwordless one when none exists.
func (s *authService) findOrCreateMagicLinkIdentity(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err = s.newPasswordlessUser(email)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			// a concurrent request created it first
			return s.users.GetByEmail(ctx, email)
		}
		return nil, err
	}
	s.logger.WithField("user_id", user.ID).Info("magic link created account")
	return user, nil
}

// findOrCreateWalletIdentity returns the wallet's owner, or a placeholder
// account holding the wallet when nobody owns it yet.
func (s *authService) findOrCreateWalletIdentity(ctx context.Context, address string) (*domain.User, error) {
	user, err := s.users.GetByWalletAddress(ctx, address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err = s.newPasswordlessUser(s.placeholderEmail(address))
	if err != nil {
		return nil, err
	}
	user.WalletAddress = address

	err = s.users.Create(ctx, user)
	switch {
	case err == nil:
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"wallet":  address,
		}).Info("wallet login created placeholder account")
		return user, nil
	case errors.Is(err, domain.ErrWalletAlreadyLinked):
		return s.users.GetByWalletAddress(ctx, address)
	case errors.Is(err, domain.ErrUserAlreadyExists):
		// the shell exists without its wallet; reattach it while the wallet is free
		shell, err := s.users.GetByEmail(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		if !s.isPlaceholderAccount(shell) || shell.WalletAddress != "" {
			s.logger.WithFields(logrus.Fields{
				"user_id": shell.ID,
				"wallet":  address,
			}).Warn("wallet login refused: placeholder email held by another account")
			return nil, domain.ErrUserAlreadyExists
		}
		shell, err = s.users.AttachWallet(ctx, shell.ID, address, nil, s.now())
		if errors.Is(err, domain.ErrWalletAlreadyLinked) {
			return s.users.GetByWalletAddress(ctx, address)
		}
		return shell, err
	default:
		return nil, err
	}
}

// attachWallet links address to caller. A wallet held by a placeholder
// account moves to caller; one held by a real account is refused.
func (s *authService) attachWallet(ctx context.Context, caller *domain.User, address string) (*domain.User, error) {
	var transferredFrom string
	user, err := s.users.AttachWallet(ctx, caller.ID, address, func(current *domain.User) bool {
		if s.isPlaceholderAccount(current) {
			transferredFrom = current.ID
			return true
		}
		return false
	}, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	entry := s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"wallet":  address,
	})
	if transferredFrom != "" {
		entry.WithField("from_user_id", transferredFrom).Info("wallet transferred from placeholder account")
	} else {
		entry.Info("wallet connected")
	}
	return user, nil
}

// isPlaceholderAccount reports whether u is a wallet-only account: placeholder
// email, verified, and no usable password.
func (s *authService) isPlaceholderAccount(u *domain.User) bool {
	return u.IsPlaceholder(s.cfg.PlaceholderDomain) &&
		u.Verified &&
		u.VerificationToken == "" &&
		auth.IsUnusablePassword(u.PasswordHash)
}

func (s *authService) newPasswordlessUser(email string) (*domain.User, error) {
	placeholder, err := auth.PlaceholderPassword()
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: placeholder,
		Role:         domain.RoleUser,
		Verified:     true,
	}, nil
}

func (s *authService) placeholderEmail(address string) string {
	return strings.ToLower(address) + "@" + s.cfg.PlaceholderDomain
}
