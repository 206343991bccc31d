package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
	"github.com/tsxr1ck/otpify/internal/pkg/idempotency"
)

type RequestCodeInput struct {
	Email          string `validate:"required,email"`
	IdempotencyKey string `validate:"omitempty,max=128"`
}

type RequestCodeOutput struct {
	Code      string
	ExpiresAt time.Time
}

// RequestCode issues a fresh code for the email, superseding any code still
// active for it.
func (s *Usecase) RequestCode(ctx context.Context, in RequestCodeInput) (*RequestCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "RequestCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	identity := strings.ToLower(strings.TrimSpace(in.Email))

	var out *RequestCodeOutput
	issue := func(ctx context.Context) error {
		code, err := s.codegen.Generate()
		if err != nil {
			slog.ErrorContext(ctx, "failed to generate code", "error", err)
			return goerror.NewServer(err)
		}

		codeHash, err := s.hmac.Hash(code)
		if err != nil {
			slog.ErrorContext(ctx, "failed to hash code", "error", err)
			return goerror.NewServer(err)
		}

		now := s.clock.Now()
		rec := entity.Record{
			ID:        s.uid.Generate(),
			Identity:  identity,
			CodeHash:  string(codeHash),
			IssuedAt:  now,
			ExpiresAt: now.Add(s.codeTTL()),
		}

		if err := s.store.Put(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "failed to store code record", "identity", identity, "error", err)
			return goerror.NewServer(err)
		}

		out = &RequestCodeOutput{Code: code, ExpiresAt: rec.ExpiresAt}
		return nil
	}

	if in.IdempotencyKey == "" || s.idemp == nil {
		if err := issue(ctx); err != nil {
			return nil, err
		}
		return out, nil
	}

	err := s.idemp.Exec(ctx, "otp:request:"+in.IdempotencyKey, issue,
		idempotency.WithStateTTL(s.codeTTL()),
	)
	if errors.Is(err, idempotency.ErrAlreadyInProgress) ||
		errors.Is(err, idempotency.ErrAlreadyCompleted) ||
		errors.Is(err, idempotency.ErrAlreadyFailed) {
		return nil, goerror.NewBusiness("duplicate request", goerror.CodeConflict)
	}
	if err != nil {
		var gerr *goerror.Error
		if errors.As(err, &gerr) {
			return nil, err
		}
		slog.ErrorContext(ctx, "failed to track idempotency state", "error", err)
		return nil, goerror.NewServer(err)
	}

	return out, nil
}
