package pgstore

import (
	"context"

	"github.com/tsxr1ck/otpify/internal/otp/entity"
)

const queryGetActiveRecord = `
SELECT t.id, u.email, t.code_hash, t.issued_at, t.expires_at, t.used
FROM verification_tokens t
JOIN users u ON u.id = t.user_id
WHERE u.email = $1 AND t.used = FALSE
ORDER BY t.expires_at DESC
LIMIT 1`

// Get returns the newest unused token for the identity. Consumed tokens are
// invisible here, so a replayed code surfaces as not found.
func (s *Store) Get(ctx context.Context, identity string) (rec *entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "Get")
	defer func() { s.endSpan(span, err) }()

	var out entity.Record
	err = s.conn.QueryRow(ctx, queryGetActiveRecord, identity).Scan(
		&out.ID,
		&out.Identity,
		&out.CodeHash,
		&out.IssuedAt,
		&out.ExpiresAt,
		&out.Used,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &out, nil
}
