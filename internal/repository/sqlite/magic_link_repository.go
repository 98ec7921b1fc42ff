package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"authgate/internal/domain"
	"authgate/internal/repository"
)

type MagicLinkRepository struct {
	db *sql.DB
}

func NewMagicLinkRepository(db *sql.DB) repository.MagicLinkRepository {
	return &MagicLinkRepository{db: db}
}

func (r *MagicLinkRepository) Put(ctx context.Context, link domain.MagicLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO magic_links (token_id, user_id, created_at, expires_at, used_at)
VALUES (?, ?, ?, ?, ?)`,
		link.TokenID,
		link.UserID,
		link.CreatedAt.UTC(),
		link.ExpiresAt.UTC(),
		nullTime(link.UsedAt),
	); err != nil {
		return fmt.Errorf("insert magic link: %w", err)
	}
	return nil
}

func (r *MagicLinkRepository) Consume(ctx context.Context, tokenID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE magic_links SET used_at = ?
WHERE token_id = ? AND used_at IS NULL`,
		at.UTC(), tokenID,
	)
	if err != nil {
		return fmt.Errorf("consume magic link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume magic link rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM magic_links WHERE token_id = ?`, tokenID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("lookup magic link: %w", err)
	}
	return domain.ErrMagicLinkUsed
}
