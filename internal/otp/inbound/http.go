package inbound

import (
	"context"

	"github.com/tsxr1ck/otpify/internal/otp/usecase"
	"github.com/tsxr1ck/otpify/internal/pkg/router"
)

type uc interface {
	RequestCode(ctx context.Context, in usecase.RequestCodeInput) (*usecase.RequestCodeOutput, error)
	VerifyCode(ctx context.Context, in usecase.VerifyCodeInput) (*usecase.VerifyCodeOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/get-otp", end.GetOTP)
	r.POST("/verify-otp", end.VerifyOTP)
}
