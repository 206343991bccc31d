package inbound

import (
	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/otp/usecase"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
	"github.com/tsxr1ck/otpify/internal/pkg/router"
)

// HeaderIdempotencyKey lets clients make code issuance retry-safe.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// HTTPEndpoint exposes HTTP handlers for the OTP lifecycle.
type HTTPEndpoint struct {
	uc uc
}

// GetOTP issues a fresh code for the email in the request body. Any code
// still active for that email stops verifying.
func (h *HTTPEndpoint) GetOTP(r *router.Request) (any, error) {
	var req GetOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RequestCode(r.Context(), usecase.RequestCodeInput{
		Email:          req.Email,
		IdempotencyKey: r.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		return nil, err
	}

	return GetOTPResponse{
		OTP:       resp.Code,
		ExpiresAt: resp.ExpiresAt.UTC(),
	}, nil
}

// VerifyOTP checks a code against the identity given by the token claim or,
// absent a token, the email field. Expected failures come back as
// {valid:false, reason}; missing input is a validation error.
func (h *HTTPEndpoint) VerifyOTP(r *router.Request) (any, error) {
	var req VerifyOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyCode(r.Context(), usecase.VerifyCodeInput{
		Token: req.Token,
		Email: req.Email,
		Code:  req.OTP,
	})
	if err != nil {
		return nil, err
	}

	if resp.Reason == entity.ReasonMissingInput {
		return nil, goerror.NewInvalidInput(nil, "otp", "an identity and a 6-digit code are required")
	}

	out := VerifyOTPResponse{Valid: resp.Valid}
	if !resp.Valid {
		out.Reason = resp.Reason.String()
	}

	return out, nil
}
