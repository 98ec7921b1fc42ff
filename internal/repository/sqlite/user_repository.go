package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"authgate/internal/domain"
	"authgate/internal/repository"
)

const selectUser = `
SELECT id, email, password_hash, role, verified, verification_token, wallet_address, last_login, created_at, updated_at
FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, role, verified, verification_token, wallet_address, last_login, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Verified,
		nullString(user.VerificationToken),
		nullString(user.WalletAddress),
		nullTime(user.LastLogin),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return classifyWriteError("insert user", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET email = ?, password_hash = ?, role = ?, verified = ?, verification_token = ?, wallet_address = ?, last_login = ?, updated_at = ?
WHERE id = ?`,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Verified,
		nullString(user.VerificationToken),
		nullString(user.WalletAddress),
		nullTime(user.LastLogin),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return classifyWriteError("update user", err)
	}
	return requireAffected(res, "update user")
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE email = ?`, email))
}

func (r *UserRepository) GetByWalletAddress(ctx context.Context, address string) (*domain.User, error) {
	if address == "" {
		return nil, domain.ErrNotFound
	}
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE wallet_address = ?`, address))
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE verification_token = ?`, token))
}

func (r *UserRepository) AttachWallet(ctx context.Context, userID, address string, transferable repository.WalletTransferPolicy, at time.Time) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attach wallet: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	owner, err := scanUser(tx.QueryRowContext(ctx, selectUser+` WHERE wallet_address = ?`, address))
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, err
	case owner.ID != userID:
		if transferable == nil || !transferable(owner) {
			return nil, domain.ErrWalletAlreadyLinked
		}
		// the previous holder is cleared before the new one is set
		if _, err := tx.ExecContext(ctx, `
UPDATE users SET wallet_address = NULL, updated_at = ?
WHERE id = ? AND wallet_address = ?`,
			now, owner.ID, address,
		); err != nil {
			return nil, fmt.Errorf("clear wallet from %s: %w", owner.ID, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
UPDATE users SET wallet_address = ?, last_login = ?, updated_at = ?
WHERE id = ?`,
		address, at.UTC(), now, userID,
	)
	if err != nil {
		return nil, classifyWriteError("set wallet", err)
	}
	if err := requireAffected(res, "set wallet"); err != nil {
		return nil, err
	}

	user, err := scanUser(tx.QueryRowContext(ctx, selectUser+` WHERE id = ?`, userID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classifyWriteError("commit attach wallet", err)
	}
	return user, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET last_login = ?, updated_at = ?
WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return requireAffected(res, "update last login")
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user              domain.User
		role              string
		verificationToken sql.NullString
		walletAddress     sql.NullString
		lastLogin         sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Verified,
		&verificationToken,
		&walletAddress,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.Role(role)
	user.VerificationToken = verificationToken.String
	user.WalletAddress = walletAddress.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return &user, nil
}

func classifyWriteError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") {
		switch {
		case strings.Contains(msg, "wallet_address"):
			return fmt.Errorf("%s: %w", op, domain.ErrWalletAlreadyLinked)
		case strings.Contains(msg, "email"):
			return fmt.Errorf("%s: %w", op, domain.ErrUserAlreadyExists)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
