package inbound

import "time"

type GetOTPRequest struct {
	Email string `json:"email"`
}

type GetOTPResponse struct {
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (GetOTPResponse) Message() string {
	return "OTP has been issued"
}

type VerifyOTPRequest struct {
	Token string `json:"token,omitempty"`
	Email string `json:"email,omitempty"`
	OTP   string `json:"otp"`
}

type VerifyOTPResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (r VerifyOTPResponse) Message() string {
	if r.Valid {
		return "OTP verified"
	}
	return "OTP rejected"
}
