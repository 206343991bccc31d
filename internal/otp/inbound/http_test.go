package inbound

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tsxr1ck/otpify/internal/otp/outbound/memstore"
	"github.com/tsxr1ck/otpify/internal/otp/usecase"
	"github.com/tsxr1ck/otpify/internal/pkg/clock"
	"github.com/tsxr1ck/otpify/internal/pkg/hash"
	"github.com/tsxr1ck/otpify/internal/pkg/instrument"
	"github.com/tsxr1ck/otpify/internal/pkg/jwt"
	"github.com/tsxr1ck/otpify/internal/pkg/otp"
	"github.com/tsxr1ck/otpify/internal/pkg/router"
	"github.com/tsxr1ck/otpify/internal/pkg/uid"
	"github.com/tsxr1ck/otpify/internal/pkg/validator"
)

type testConfig struct{}

func (testConfig) Close() error                   { return nil }
func (testConfig) GetString(string) string        { return "" }
func (testConfig) GetArray(string) []string       { return nil }
func (testConfig) GetBool(string) bool            { return false }
func (testConfig) GetInt(string) int              { return 0 }
func (testConfig) GetInt32(string) int32          { return 0 }
func (testConfig) GetInt64(string) int64          { return 0 }
func (testConfig) GetUint(string) uint            { return 0 }
func (testConfig) GetFloat64(string) float64      { return 0 }
func (testConfig) GetSecond(string) time.Duration { return 0 }
func (testConfig) GetMinute(string) time.Duration { return 5 * time.Minute }
func (testConfig) GetHour(string) time.Duration   { return 0 }

type testNumberID struct{ n int64 }

func (t *testNumberID) Generate() int64 {
	t.n++
	return t.n
}

type envelope struct {
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   map[string]string `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	signer, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("s", 64)),
		Issuer:    "otpify",
		Audiences: []string{"otpify-clients"},
		TTL:       time.Hour,
		Clock:     clock.New(),
		UUID:      uid.NewUUID(),
	})
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}

	uc := usecase.New(usecase.Dependency{
		Store:      memstore.New(),
		Codegen:    otp.NewNumericGenerator(),
		HMAC:       hash.NewHMACSHA256("test-secret"),
		JWT:        signer,
		Validator:  v,
		Config:     testConfig{},
		UID:        &testNumberID{},
		Clock:      clock.New(),
		Instrument: instrument.NewNoop(),
	})

	ro := router.NewRouter(router.Config{
		Config:     testConfig{},
		UUID:       uid.NewUUID(),
		Instrument: instrument.NewNoop(),
	})
	RegisterHTTPEndpoint(ro, uc)

	srv := httptest.NewServer(ro)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, envelope) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func TestIssueVerifyReplayFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, env := postJSON(t, srv.URL+"/get-otp", GetOTPRequest{Email: "a@x.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get-otp status %d", resp.StatusCode)
	}

	var issued GetOTPResponse
	if err := json.Unmarshal(env.Data, &issued); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(issued.OTP) != 6 {
		t.Fatalf("expected 6-digit otp, got %q", issued.OTP)
	}

	resp, env = postJSON(t, srv.URL+"/verify-otp", VerifyOTPRequest{Email: "a@x.com", OTP: issued.OTP})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-otp status %d", resp.StatusCode)
	}
	var verified VerifyOTPResponse
	if err := json.Unmarshal(env.Data, &verified); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !verified.Valid {
		t.Fatalf("expected valid, got reason %q", verified.Reason)
	}

	resp, env = postJSON(t, srv.URL+"/verify-otp", VerifyOTPRequest{Email: "a@x.com", OTP: issued.OTP})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(env.Data, &verified); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if verified.Valid || verified.Reason != "not_found" {
		t.Fatalf("expected replay rejection, got valid=%v reason=%q", verified.Valid, verified.Reason)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	srv := newTestServer(t)

	_, env := postJSON(t, srv.URL+"/get-otp", GetOTPRequest{Email: "a@x.com"})
	var issued GetOTPResponse
	if err := json.Unmarshal(env.Data, &issued); err != nil {
		t.Fatalf("decode data: %v", err)
	}

	wrong := "111111"
	if issued.OTP == wrong {
		wrong = "222222"
	}

	resp, env := postJSON(t, srv.URL+"/verify-otp", VerifyOTPRequest{Email: "a@x.com", OTP: wrong})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-otp status %d", resp.StatusCode)
	}
	var verified VerifyOTPResponse
	if err := json.Unmarshal(env.Data, &verified); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if verified.Valid || verified.Reason != "mismatch" {
		t.Fatalf("expected mismatch, got valid=%v reason=%q", verified.Valid, verified.Reason)
	}
}

func TestVerifyBadToken(t *testing.T) {
	srv := newTestServer(t)

	resp, env := postJSON(t, srv.URL+"/verify-otp", VerifyOTPRequest{Token: "not.a.jwt", OTP: "123456"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-otp status %d", resp.StatusCode)
	}
	var verified VerifyOTPResponse
	if err := json.Unmarshal(env.Data, &verified); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if verified.Valid || verified.Reason != "bad_token" {
		t.Fatalf("expected bad_token, got valid=%v reason=%q", verified.Valid, verified.Reason)
	}
}

func TestGetOTPValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/get-otp", GetOTPRequest{Email: ""})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty email, got %d", resp.StatusCode)
	}
}

func TestVerifyOTPMissingInput(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/verify-otp", VerifyOTPRequest{OTP: "123456"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing identity, got %d", resp.StatusCode)
	}
}
