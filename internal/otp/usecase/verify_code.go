package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
)

type VerifyCodeInput struct {
	Token string
	Email string `validate:"omitempty,email"`
	Code  string `validate:"omitempty,otpcode"`
}

type VerifyCodeOutput struct {
	Valid  bool
	Reason entity.Reason
	Email  string
}

// VerifyCode checks a code against the active record for an identity and
// consumes it on success.
//
// The identity comes from the token when one is supplied; the email field is
// only consulted otherwise. Expected failures (bad token, unknown identity,
// expired or mismatched code) are reported in the output, not as errors;
// only store and hashing failures surface as errors.
func (s *Usecase) VerifyCode(ctx context.Context, in VerifyCodeInput) (*VerifyCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyCode")
	defer span.End()

	identity := strings.ToLower(strings.TrimSpace(in.Email))
	if in.Token != "" {
		claims, err := s.jwt.Verify(in.Token)
		if err != nil {
			slog.WarnContext(ctx, "identity token rejected", "error", err)
			return &VerifyCodeOutput{Reason: entity.ReasonBadToken}, nil
		}
		identity = strings.ToLower(strings.TrimSpace(claims.Email))
	}

	if identity == "" || in.Code == "" {
		return &VerifyCodeOutput{Reason: entity.ReasonMissingInput, Email: identity}, nil
	}
	if err := s.validator.Validate(in); err != nil {
		return &VerifyCodeOutput{Reason: entity.ReasonMissingInput, Email: identity}, nil
	}

	rec, err := s.store.Get(ctx, identity)
	if errors.Is(err, goerror.ErrNotFound) {
		return &VerifyCodeOutput{Reason: entity.ReasonNotFound, Email: identity}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load code record", "identity", identity, "error", err)
		return nil, goerror.NewServer(err)
	}

	if rec.IsExpired(s.clock.Now()) {
		if err := s.store.Discard(ctx, identity); err != nil {
			slog.WarnContext(ctx, "failed to discard expired record", "identity", identity, "error", err)
		}
		return &VerifyCodeOutput{Reason: entity.ReasonExpired, Email: identity}, nil
	}

	if !s.hmac.Verify(rec.CodeHash, in.Code) {
		return &VerifyCodeOutput{Reason: entity.ReasonMismatch, Email: identity}, nil
	}

	ok, err := s.store.Consume(ctx, identity, rec.CodeHash)
	if err != nil {
		slog.ErrorContext(ctx, "failed to consume code record", "identity", identity, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !ok {
		// another attempt consumed the record first
		return &VerifyCodeOutput{Reason: entity.ReasonNotFound, Email: identity}, nil
	}

	return &VerifyCodeOutput{Valid: true, Email: identity}, nil
}
