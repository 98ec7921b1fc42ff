package domain

import "errors"

var (
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrUserAlreadyExists is returned when the email is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrWalletAlreadyLinked is returned when a wallet belongs to another real account.
	ErrWalletAlreadyLinked = errors.New("wallet already linked to another account")
	// ErrMagicLinkUsed is returned when a magic link has already been consumed.
	ErrMagicLinkUsed = errors.New("magic link already used")
)
