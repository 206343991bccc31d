package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/otp/outbound/memstore"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
	"github.com/tsxr1ck/otpify/internal/pkg/hash"
	"github.com/tsxr1ck/otpify/internal/pkg/idempotency"
	"github.com/tsxr1ck/otpify/internal/pkg/instrument"
	"github.com/tsxr1ck/otpify/internal/pkg/jwt"
	"github.com/tsxr1ck/otpify/internal/pkg/otp"
	"github.com/tsxr1ck/otpify/internal/pkg/validator"
)

var reSixDigits = regexp.MustCompile(`^[0-9]{6}$`)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeNumberID struct{ n atomic.Int64 }

func (f *fakeNumberID) Generate() int64 { return f.n.Add(1) }

type fakeStringID struct{}

func (fakeStringID) Generate() string { return "test-id" }

type fakeConfig struct{ ttl time.Duration }

func (fakeConfig) Close() error                     { return nil }
func (fakeConfig) GetString(string) string          { return "" }
func (fakeConfig) GetArray(string) []string         { return nil }
func (fakeConfig) GetBool(string) bool              { return false }
func (fakeConfig) GetInt(string) int                { return 0 }
func (fakeConfig) GetInt32(string) int32            { return 0 }
func (fakeConfig) GetInt64(string) int64            { return 0 }
func (fakeConfig) GetUint(string) uint              { return 0 }
func (fakeConfig) GetFloat64(string) float64        { return 0 }
func (fakeConfig) GetSecond(string) time.Duration   { return 0 }
func (f fakeConfig) GetMinute(string) time.Duration { return f.ttl }
func (fakeConfig) GetHour(string) time.Duration     { return 0 }

// countingStore wraps a store and counts reads, so tests can assert that a
// rejected token never reaches the store.
type countingStore struct {
	inner    *memstore.Store
	getCalls atomic.Int64
}

func (c *countingStore) Put(ctx context.Context, rec entity.Record) error {
	return c.inner.Put(ctx, rec)
}

func (c *countingStore) Get(ctx context.Context, identity string) (*entity.Record, error) {
	c.getCalls.Add(1)
	return c.inner.Get(ctx, identity)
}

func (c *countingStore) Consume(ctx context.Context, identity, codeHash string) (bool, error) {
	return c.inner.Consume(ctx, identity, codeHash)
}

func (c *countingStore) Discard(ctx context.Context, identity string) error {
	return c.inner.Discard(ctx, identity)
}

type failingStore struct{}

func (failingStore) Put(context.Context, entity.Record) error { return errors.New("store down") }
func (failingStore) Get(context.Context, string) (*entity.Record, error) {
	return nil, errors.New("store down")
}
func (failingStore) Consume(context.Context, string, string) (bool, error) {
	return false, errors.New("store down")
}
func (failingStore) Discard(context.Context, string) error { return errors.New("store down") }

type fakeIdempotency struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: make(map[string]struct{})}
}

func (f *fakeIdempotency) Acquire(_ context.Context, key string, _ time.Duration) (idempotency.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[key]; ok {
		return idempotency.StateCompleted, nil
	}
	f.seen[key] = struct{}{}
	return idempotency.StateNone, nil
}

func (f *fakeIdempotency) MarkCompleted(context.Context, string, time.Duration) error { return nil }
func (f *fakeIdempotency) MarkFailed(context.Context, string, time.Duration) error    { return nil }

func (f *fakeIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	state, err := f.Acquire(ctx, key, 0)
	if err != nil {
		return err
	}
	if state == idempotency.StateCompleted {
		return idempotency.ErrAlreadyCompleted
	}
	return fn(ctx)
}

type env struct {
	uc    *Usecase
	store repoStore
	clk   *fakeClock
	jwt   jwt.JWT
}

func newTestEnv(t *testing.T, store repoStore, idemp idempotency.Idempotency) *env {
	t.Helper()

	clk := &fakeClock{now: time.Now()}

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	signer, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("s", 64)),
		Issuer:    "otpify",
		Audiences: []string{"otpify-clients"},
		TTL:       time.Hour,
		Clock:     clk,
		UUID:      fakeStringID{},
	})
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}

	if store == nil {
		store = memstore.New()
	}

	uc := New(Dependency{
		Store:       store,
		Codegen:     otp.NewNumericGenerator(),
		HMAC:        hash.NewHMACSHA256("test-secret"),
		JWT:         signer,
		Idempotency: idemp,
		Validator:   v,
		Config:      fakeConfig{ttl: 5 * time.Minute},
		UID:         &fakeNumberID{},
		Clock:       clk,
		Instrument:  instrument.NewNoop(),
	})

	return &env{uc: uc, store: store, clk: clk, jwt: signer}
}

func otherCode(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}

func TestRequestCodeIssuesSixDigitCode(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	out, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "A@X.com"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !reSixDigits.MatchString(out.Code) {
		t.Fatalf("expected 6-digit code, got %q", out.Code)
	}
	if want := e.clk.Now().Add(5 * time.Minute); !out.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, out.ExpiresAt)
	}

	// identity is normalized to lower case
	rec, err := e.store.Get(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CodeHash == out.Code {
		t.Fatal("code must not be stored in the clear")
	}
}

func TestRequestCodeInvalidEmail(t *testing.T) {
	e := newTestEnv(t, nil, nil)

	_, err := e.uc.RequestCode(context.Background(), RequestCodeInput{Email: "not-an-email"})

	var gerr *goerror.Error
	if !errors.As(err, &gerr) || gerr.Code() != goerror.CodeInvalidInput {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestRequestCodeIdempotencyDuplicate(t *testing.T) {
	e := newTestEnv(t, nil, newFakeIdempotency())
	ctx := context.Background()

	if _, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com", IdempotencyKey: "k1"}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	_, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com", IdempotencyKey: "k1"})
	var gerr *goerror.Error
	if !errors.As(err, &gerr) || gerr.Code() != goerror.CodeConflict {
		t.Fatalf("expected conflict on duplicate key, got %v", err)
	}
}

func TestVerifyCodeSuccessAndReplay(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	out, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	res, err := e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: out.Code})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid, got reason %s", res.Reason)
	}

	res, err = e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: out.Code})
	if err != nil {
		t.Fatalf("replay verify: %v", err)
	}
	if res.Valid || res.Reason != entity.ReasonNotFound {
		t.Fatalf("expected replay to be not_found, got valid=%v reason=%s", res.Valid, res.Reason)
	}
}

func TestVerifyCodeMismatch(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	out, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	res, err := e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: otherCode(out.Code)})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid || res.Reason != entity.ReasonMismatch {
		t.Fatalf("expected mismatch, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	// a wrong guess does not burn the code
	res, err = e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: out.Code})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected correct code to still verify, got reason %s", res.Reason)
	}
}

func TestVerifyCodeSupersededCode(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	first, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if first.Code == second.Code {
		t.Skip("generator produced identical codes")
	}

	res, err := e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: first.Code})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid || res.Reason != entity.ReasonMismatch {
		t.Fatalf("expected superseded code to mismatch, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	res, err = e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: second.Code})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected latest code to verify, got reason %s", res.Reason)
	}
}

func TestVerifyCodeExpired(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	out, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	e.clk.Advance(5*time.Minute + time.Second)

	res, err := e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: out.Code})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid || res.Reason != entity.ReasonExpired {
		t.Fatalf("expected expired, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	// the expired record is discarded, later attempts see not_found
	res, err = e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: out.Code})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Reason != entity.ReasonNotFound {
		t.Fatalf("expected not_found after discard, got %s", res.Reason)
	}
}

func TestVerifyCodeMissingInput(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		in   VerifyCodeInput
	}{
		{"no identity", VerifyCodeInput{Code: "123456"}},
		{"no code", VerifyCodeInput{Email: "a@x.com"}},
		{"malformed code", VerifyCodeInput{Email: "a@x.com", Code: "12ab56"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.uc.VerifyCode(ctx, tc.in)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if res.Valid || res.Reason != entity.ReasonMissingInput {
				t.Fatalf("expected missing_input, got valid=%v reason=%s", res.Valid, res.Reason)
			}
		})
	}
}

func TestVerifyCodeBadTokenSkipsStore(t *testing.T) {
	cs := &countingStore{inner: memstore.New()}
	e := newTestEnv(t, cs, nil)

	res, err := e.uc.VerifyCode(context.Background(), VerifyCodeInput{Token: "not.a.jwt", Code: "123456"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid || res.Reason != entity.ReasonBadToken {
		t.Fatalf("expected bad_token, got valid=%v reason=%s", res.Valid, res.Reason)
	}
	if got := cs.getCalls.Load(); got != 0 {
		t.Fatalf("store must not be touched for a bad token, got %d reads", got)
	}
}

func TestVerifyCodeTokenTakesPrecedence(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	out, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	token, err := e.jwt.Generate("a@x.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	res, err := e.uc.VerifyCode(ctx, VerifyCodeInput{
		Token: token,
		Email: "other@x.com",
		Code:  out.Code,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid || res.Email != "a@x.com" {
		t.Fatalf("expected token identity to win, got valid=%v email=%q reason=%s", res.Valid, res.Email, res.Reason)
	}
}

func TestVerifyCodeConcurrentSingleWinner(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	ctx := context.Background()

	out, err := e.uc.RequestCode(ctx, RequestCodeInput{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	var wins atomic.Int64
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.uc.VerifyCode(ctx, VerifyCodeInput{Email: "a@x.com", Code: out.Code})
			if err == nil && res.Valid {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", got)
	}
}

func TestVerifyCodeStorageFailure(t *testing.T) {
	e := newTestEnv(t, failingStore{}, nil)

	_, err := e.uc.VerifyCode(context.Background(), VerifyCodeInput{Email: "a@x.com", Code: "123456"})

	var gerr *goerror.Error
	if !errors.As(err, &gerr) || gerr.StatusCode() != 500 {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestRequestCodeStorageFailure(t *testing.T) {
	e := newTestEnv(t, failingStore{}, nil)

	_, err := e.uc.RequestCode(context.Background(), RequestCodeInput{Email: "a@x.com"})

	var gerr *goerror.Error
	if !errors.As(err, &gerr) || gerr.Type() != goerror.TypeServer {
		t.Fatalf("expected server error, got %v", err)
	}
}
