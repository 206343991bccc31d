package usecase

import (
	"context"
	"time"

	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/pkg/clock"
	"github.com/tsxr1ck/otpify/internal/pkg/config"
	"github.com/tsxr1ck/otpify/internal/pkg/hash"
	"github.com/tsxr1ck/otpify/internal/pkg/idempotency"
	"github.com/tsxr1ck/otpify/internal/pkg/instrument"
	"github.com/tsxr1ck/otpify/internal/pkg/jwt"
	"github.com/tsxr1ck/otpify/internal/pkg/otp"
	"github.com/tsxr1ck/otpify/internal/pkg/uid"
	"github.com/tsxr1ck/otpify/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

const defaultCodeTTL = 5 * time.Minute

// repoStore is the credential store contract as seen by the verification
// engine. Get only returns unused records; Consume atomically matches the
// hash and marks the record used so concurrent attempts cannot both win.
type repoStore interface {
	Put(ctx context.Context, rec entity.Record) error
	Get(ctx context.Context, identity string) (*entity.Record, error)
	Consume(ctx context.Context, identity, codeHash string) (bool, error)
	Discard(ctx context.Context, identity string) error
}

type Usecase struct {
	store     repoStore
	codegen   otp.Generator
	hmac      hash.Hash
	jwt       jwt.JWT
	idemp     idempotency.Idempotency
	validator validator.Validator
	cfg       config.Config
	uid       uid.NumberID
	clock     clock.Clocker
	ins       instrument.Instrumentation
}

type Dependency struct {
	Store       repoStore
	Codegen     otp.Generator
	HMAC        hash.Hash
	JWT         jwt.JWT
	Idempotency idempotency.Idempotency
	Validator   validator.Validator
	Config      config.Config
	UID         uid.NumberID
	Clock       clock.Clocker
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		store:     dep.Store,
		codegen:   dep.Codegen,
		hmac:      dep.HMAC,
		jwt:       dep.JWT,
		idemp:     dep.Idempotency,
		validator: dep.Validator,
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

func (s *Usecase) codeTTL() time.Duration {
	ttl := s.cfg.GetMinute("otp.code_ttl_minutes")
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return ttl
}
