package repository

import (
	"context"
	"time"

	"authgate/internal/domain"
)

// WalletTransferPolicy decides whether a wallet held by current may be moved
// to another identity.
type WalletTransferPolicy func(current *domain.User) bool

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByWalletAddress(ctx context.Context, address string) (*domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	// AttachWallet links address to userID in a single transaction. When
	// another identity holds the address it is cleared first if transferable
	// allows it, otherwise domain.ErrWalletAlreadyLinked is returned.
	AttachWallet(ctx context.Context, userID, address string, transferable WalletTransferPolicy, at time.Time) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// MagicLinkRepository tracks issued magic links for single-use enforcement.
type MagicLinkRepository interface {
	Put(ctx context.Context, link domain.MagicLink) error
	// Consume marks the link used. It returns domain.ErrMagicLinkUsed when it
	// was already consumed and domain.ErrNotFound when it was never issued.
	Consume(ctx context.Context, tokenID string, at time.Time) error
}
