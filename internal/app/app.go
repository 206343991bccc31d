// Package app wires dependencies and manages the service lifecycle.
package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tsxr1ck/otpify/internal/pkg/clock"
	"github.com/tsxr1ck/otpify/internal/pkg/config"
	"github.com/tsxr1ck/otpify/internal/pkg/goroutine"
	"github.com/tsxr1ck/otpify/internal/pkg/hash"
	"github.com/tsxr1ck/otpify/internal/pkg/idempotency"
	"github.com/tsxr1ck/otpify/internal/pkg/instrument"
	"github.com/tsxr1ck/otpify/internal/pkg/jwt"
	"github.com/tsxr1ck/otpify/internal/pkg/otp"
	"github.com/tsxr1ck/otpify/internal/pkg/router"
	"github.com/tsxr1ck/otpify/internal/pkg/uid"
	"github.com/tsxr1ck/otpify/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID
	codegen   otp.Generator
	jwt       jwt.JWT

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
