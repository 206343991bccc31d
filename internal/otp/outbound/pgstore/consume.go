package pgstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

const (
	queryConsumeToken = `
UPDATE verification_tokens t
SET used = TRUE
FROM users u
WHERE u.id = t.user_id AND u.email = $1 AND t.code_hash = $2 AND t.used = FALSE`

	queryMarkUserVerified = `
UPDATE users
SET is_verified = TRUE
WHERE email = $1`
)

// Consume marks the matching token used and flips the user to verified in one
// transaction. When the token was already consumed (or superseded) the update
// touches no rows and Consume reports false.
func (s *Store) Consume(ctx context.Context, identity, codeHash string) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "Consume")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	tag, err := tx.Exec(ctx, queryConsumeToken, identity, codeHash)
	if err != nil {
		return false, s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, queryMarkUserVerified, identity); err != nil {
		return false, s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, s.mapError(err)
	}

	return true, nil
}
