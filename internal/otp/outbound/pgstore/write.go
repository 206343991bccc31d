package pgstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/tsxr1ck/otpify/internal/otp/entity"
)

const (
	queryUpsertUser = `
INSERT INTO users (id, email)
VALUES ($1, $2)
ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
RETURNING id`

	queryRetireActiveTokens = `
UPDATE verification_tokens
SET used = TRUE
WHERE user_id = $1 AND used = FALSE`

	queryInsertToken = `
INSERT INTO verification_tokens (id, user_id, code_hash, issued_at, expires_at, used)
VALUES ($1, $2, $3, $4, $5, FALSE)`

	queryDiscardActiveTokens = `
UPDATE verification_tokens t
SET used = TRUE
FROM users u
WHERE u.id = t.user_id AND u.email = $1 AND t.used = FALSE`
)

// Put creates the user row when the identity is new, retires any token still
// active for it, and inserts the fresh one. All in a single transaction so an
// identity never ends up with two live tokens.
func (s *Store) Put(ctx context.Context, rec entity.Record) (err error) {
	ctx, span := s.startSpan(ctx, "Put")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	var userID int64
	if err := tx.QueryRow(ctx, queryUpsertUser, rec.ID, rec.Identity).Scan(&userID); err != nil {
		return s.mapError(err)
	}

	if _, err := tx.Exec(ctx, queryRetireActiveTokens, userID); err != nil {
		return s.mapError(err)
	}

	if _, err := tx.Exec(ctx, queryInsertToken,
		rec.ID, userID, rec.CodeHash, rec.IssuedAt, rec.ExpiresAt,
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

// Discard retires any active token for the identity, keeping the row for
// audit. Unknown identities are a no-op.
func (s *Store) Discard(ctx context.Context, identity string) (err error) {
	ctx, span := s.startSpan(ctx, "Discard")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, queryDiscardActiveTokens, identity)
	return s.mapError(err)
}
