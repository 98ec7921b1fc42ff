package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"authgate/internal/auth"
	"authgate/internal/domain"
	"authgate/internal/repository"
)

const (
	walletInstructions = "Please sign this message with your wallet to prove ownership"
	minPasswordLength  = 8
)

// Notifier delivers the emails the auth flows depend on.
type Notifier interface {
	SendMagicLink(ctx context.Context, to, token string, ttl time.Duration) error
	SendVerification(ctx context.Context, to, token string) error
}

// Config tunes token lifetimes and wallet handling.
type Config struct {
	MagicLinkTTL        time.Duration
	SessionTTL          time.Duration
	ChallengeTTL        time.Duration
	SingleUseMagicLinks bool
	PlaceholderDomain   string
	AppName             string
}

// Session is the response contract of every login path.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.PublicUser
}

// WalletChallenge is a server-generated message for a wallet to sign.
type WalletChallenge struct {
	Message       string
	WalletAddress string
	Timestamp     int64
	Instructions  string
}

// AuthService describes every authentication entry point plus the session
// lookup used by the authorization gate.
type AuthService interface {
	Signup(ctx context.Context, email, password string) error
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*Session, error)
	RequestMagicLink(ctx context.Context, email string) error
	VerifyMagicLink(ctx context.Context, token string) (*Session, error)
	WalletMessage(ctx context.Context, caller *domain.User, address string) (*WalletChallenge, error)
	ConnectWallet(ctx context.Context, caller *domain.User, address, signature, message string) (*domain.PublicUser, error)
	WalletLoginMessage(ctx context.Context, address string) (*WalletChallenge, error)
	WalletLogin(ctx context.Context, address, signature, message string) (*Session, error)
	Authenticate(ctx context.Context, sessionToken string) (*domain.User, error)
	RequireRole(user *domain.User, role domain.Role) error
}

type authService struct {
	users      repository.UserRepository
	links      repository.MagicLinkRepository
	tokens     *auth.TokenService
	notifier   Notifier
	challenges auth.Challenges
	cfg        Config
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	links repository.MagicLinkRepository,
	tokens *auth.TokenService,
	notifier Notifier,
	cfg Config,
	logger logrus.FieldLogger,
) AuthService {
	return newAuthService(users, links, tokens, notifier, cfg, logger, time.Now)
}

func newAuthService(
	users repository.UserRepository,
	links repository.MagicLinkRepository,
	tokens *auth.TokenService,
	notifier Notifier,
	cfg Config,
	logger logrus.FieldLogger,
	now func() time.Time,
) *authService {
	if cfg.AppName == "" {
		cfg.AppName = "authgate"
	}
	if cfg.PlaceholderDomain == "" {
		cfg.PlaceholderDomain = "wallet.local"
	}
	return &authService{
		users:    users,
		links:    links,
		tokens:   tokens,
		notifier: notifier,
		challenges: auth.Challenges{
			AppName: cfg.AppName,
			TTL:     cfg.ChallengeTTL,
			Skew:    time.Minute,
			Now:     now,
		},
		cfg:    cfg,
		logger: logger,
		now:    now,
	}
}

func (s *authService) Signup(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return invalid("Email and password are required")
	}
	email, err := s.accountEmail(email)
	if err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	user, err := s.createPasswordIdentity(ctx, email, password)
	if err != nil {
		return err
	}
	s.logger.WithField("user_id", user.ID).Info("signup created unverified account")

	return s.notifier.SendVerification(ctx, user.Email, user.VerificationToken)
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("Verification token is required")
	}

	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return err
	}

	user.Verified = true
	user.VerificationToken = ""
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.logger.WithField("user_id", user.ID).Info("email verified")
	return nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Verified {
		return nil, ErrEmailNotVerified
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

func (s *authService) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("Email is required")
	}
	email, err := s.accountEmail(email)
	if err != nil {
		return err
	}

	user, err := s.findOrCreateMagicLinkIdentity(ctx, email)
	if err != nil {
		return err
	}

	tok, err := s.tokens.Issue(user.ID, user.Role, auth.PurposeMagicLink, s.cfg.MagicLinkTTL)
	if err != nil {
		return err
	}
	if s.cfg.SingleUseMagicLinks {
		if err := s.links.Put(ctx, domain.MagicLink{
			TokenID:   tok.ID,
			UserID:    user.ID,
			CreatedAt: tok.IssuedAt,
			ExpiresAt: tok.ExpiresAt,
		}); err != nil {
			return err
		}
	}

	return s.notifier.SendMagicLink(ctx, user.Email, tok.Value, s.cfg.MagicLinkTTL)
}

func (s *authService) VerifyMagicLink(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalid("Token is required")
	}

	subject, err := s.tokens.Verify(token, auth.PurposeMagicLink)
	if err != nil {
		return nil, err
	}
	if s.cfg.SingleUseMagicLinks {
		if err := s.links.Consume(ctx, subject.TokenID, s.now()); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, auth.ErrInvalidToken
			}
			return nil, err
		}
	}

	user, err := s.users.GetByID(ctx, subject.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return s.startSession(ctx, user)
}

func (s *authService) WalletMessage(ctx context.Context, caller *domain.User, address string) (*WalletChallenge, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	address, err := walletAddress(address)
	if err != nil {
		return nil, err
	}
	return toWalletChallenge(s.challenges.Connect(address)), nil
}

func (s *authService) ConnectWallet(ctx context.Context, caller *domain.User, address, signature, message string) (*domain.PublicUser, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(address) == "" || strings.TrimSpace(signature) == "" || message == "" {
		return nil, invalid("Wallet address, signature, and message are required")
	}
	address, err := walletAddress(address)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.CheckConnect(address, message); err != nil {
		return nil, err
	}
	if !auth.VerifySignature(address, message, signature) {
		return nil, ErrInvalidSignature
	}

	user, err := s.attachWallet(ctx, caller, address)
	if err != nil {
		return nil, err
	}
	view := user.Public()
	return &view, nil
}

func (s *authService) WalletLoginMessage(ctx context.Context, address string) (*WalletChallenge, error) {
	address, err := walletAddress(address)
	if err != nil {
		return nil, err
	}
	return toWalletChallenge(s.challenges.Login(address)), nil
}

func (s *authService) WalletLogin(ctx context.Context, address, signature, message string) (*Session, error) {
	if strings.TrimSpace(address) == "" || strings.TrimSpace(signature) == "" || message == "" {
		return nil, invalid("Wallet address, signature, and message are required")
	}
	address, err := walletAddress(address)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.CheckLogin(address, message); err != nil {
		return nil, err
	}
	if !auth.VerifySignature(address, message, signature) {
		return nil, ErrInvalidSignature
	}

	user, err := s.findOrCreateWalletIdentity(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

func (s *authService) Authenticate(ctx context.Context, sessionToken string) (*domain.User, error) {
	subject, err := s.tokens.Verify(sessionToken, auth.PurposeSession)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, subject.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) RequireRole(user *domain.User, role domain.Role) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if user.Role != role {
		return ErrForbidden
	}
	return nil
}

// startSession records the login and mints the session token.
func (s *authService) startSession(ctx context.Context, user *domain.User) (*Session, error) {
	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	tok, err := s.tokens.Issue(user.ID, user.Role, auth.PurposeSession, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		User:      user.Public(),
	}, nil
}

// accountEmail normalizes email and rejects the domain reserved for
// wallet-only accounts.
func (s *authService) accountEmail(email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(email, "@"+strings.ToLower(s.cfg.PlaceholderDomain)) {
		return "", invalid("This email domain is reserved")
	}
	return email, nil
}

func normalizeEmail(email string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || parsed.Address != strings.TrimSpace(email) {
		return "", invalid("Invalid email address")
	}
	return strings.ToLower(parsed.Address), nil
}

func walletAddress(address string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", invalid("Wallet address is required")
	}
	normalized, err := auth.NormalizeAddress(address)
	if err != nil {
		return "", invalid("Invalid wallet address")
	}
	return normalized, nil
}

func toWalletChallenge(c auth.Challenge) *WalletChallenge {
	return &WalletChallenge{
		Message:       c.Message,
		WalletAddress: c.Address,
		Timestamp:     c.Timestamp,
		Instructions:  walletInstructions,
	}
}
