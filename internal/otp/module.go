// Package otp wires the OTP domain module: store strategy selection, the
// verification usecase, and its HTTP endpoints.
package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/otp/inbound"
	"github.com/tsxr1ck/otpify/internal/otp/outbound/memstore"
	"github.com/tsxr1ck/otpify/internal/otp/outbound/pgstore"
	"github.com/tsxr1ck/otpify/internal/otp/outbound/redistore"
	"github.com/tsxr1ck/otpify/internal/otp/usecase"
	"github.com/tsxr1ck/otpify/internal/pkg/clock"
	"github.com/tsxr1ck/otpify/internal/pkg/config"
	"github.com/tsxr1ck/otpify/internal/pkg/goroutine"
	"github.com/tsxr1ck/otpify/internal/pkg/hash"
	"github.com/tsxr1ck/otpify/internal/pkg/idempotency"
	"github.com/tsxr1ck/otpify/internal/pkg/instrument"
	"github.com/tsxr1ck/otpify/internal/pkg/jwt"
	codegen "github.com/tsxr1ck/otpify/internal/pkg/otp"
	"github.com/tsxr1ck/otpify/internal/pkg/router"
	"github.com/tsxr1ck/otpify/internal/pkg/uid"
	"github.com/tsxr1ck/otpify/internal/pkg/validator"
)

// Store drivers selectable via otp.store.driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

const sweepInterval = time.Minute

type Dependency struct {
	Ctx         context.Context
	DBConn      *pgxpool.Pool // required for the postgres driver
	CacheConn   *redis.Client // required for the redis driver
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	HMAC        hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Codegen     codegen.Generator          `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	JWT         jwt.JWT                    `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	var store interface {
		Put(ctx context.Context, rec entity.Record) error
		Get(ctx context.Context, identity string) (*entity.Record, error)
		Consume(ctx context.Context, identity, codeHash string) (bool, error)
		Discard(ctx context.Context, identity string) error
	}

	driver := dep.Config.GetString("otp.store.driver")
	switch driver {
	case DriverPostgres:
		if dep.DBConn == nil {
			return fmt.Errorf("otp: store driver %q needs a database connection", driver)
		}
		store = pgstore.New(dep.DBConn, dep.Instrument)

	case DriverRedis:
		if dep.CacheConn == nil {
			return fmt.Errorf("otp: store driver %q needs a redis connection", driver)
		}
		store = redistore.New(dep.CacheConn, dep.Instrument)

	case DriverMemory, "":
		ms := memstore.New()
		store = ms
		runJanitor(dep, ms)

	default:
		return fmt.Errorf("otp: unknown store driver %q", driver)
	}

	uc := usecase.New(usecase.Dependency{
		Store:       store,
		Codegen:     dep.Codegen,
		HMAC:        dep.HMAC,
		JWT:         dep.JWT,
		Idempotency: dep.Idempotency,
		Validator:   dep.Validator,
		Config:      dep.Config,
		UID:         dep.UID,
		Clock:       dep.Clock,
		Instrument:  dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

// runJanitor periodically sweeps consumed and expired records out of the
// in-memory store so it does not grow without bound.
func runJanitor(dep Dependency, ms *memstore.Store) {
	ctx := dep.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	dep.Goroutine.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := ms.Sweep(dep.Clock.Now()); n > 0 {
					slog.InfoContext(ctx, "swept stale otp records", "count", n)
				}
			}
		}
	})
}
