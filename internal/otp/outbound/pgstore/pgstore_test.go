package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
	"github.com/tsxr1ck/otpify/internal/pkg/instrument"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return New(pool, instrument.NewNoop())
}

func testRecord(identity, codeHash string) entity.Record {
	now := time.Now().UTC()
	return entity.Record{
		ID:        now.UnixNano(),
		Identity:  identity,
		CodeHash:  codeHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func uniqueEmail(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("t%d@pgstore.test", time.Now().UnixNano())
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	email := uniqueEmail(t)

	if err := s.Put(ctx, testRecord(email, "h1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec, err := s.Get(ctx, email)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CodeHash != "h1" || rec.Identity != email {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGetUnknownIdentity(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get(context.Background(), uniqueEmail(t)); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutSupersedesActiveToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	email := uniqueEmail(t)

	if err := s.Put(ctx, testRecord(email, "old")); err != nil {
		t.Fatalf("put old: %v", err)
	}
	if err := s.Put(ctx, testRecord(email, "new")); err != nil {
		t.Fatalf("put new: %v", err)
	}

	rec, err := s.Get(ctx, email)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CodeHash != "new" {
		t.Fatalf("expected new token to be active, got %q", rec.CodeHash)
	}

	if ok, err := s.Consume(ctx, email, "old"); err != nil || ok {
		t.Fatalf("expected superseded token to fail, got ok=%v err=%v", ok, err)
	}
}

func TestConsumeOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	email := uniqueEmail(t)

	if err := s.Put(ctx, testRecord(email, "h1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	if ok, err := s.Consume(ctx, email, "h1"); err != nil || !ok {
		t.Fatalf("first consume should succeed, got ok=%v err=%v", ok, err)
	}
	if ok, err := s.Consume(ctx, email, "h1"); err != nil || ok {
		t.Fatalf("second consume should fail, got ok=%v err=%v", ok, err)
	}
	if _, err := s.Get(ctx, email); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected consumed token hidden from Get, got %v", err)
	}
}

func TestDiscardRetiresActiveToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	email := uniqueEmail(t)

	if err := s.Put(ctx, testRecord(email, "h1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Discard(ctx, email); err != nil {
		t.Fatalf("discard: %v", err)
	}

	if _, err := s.Get(ctx, email); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected discarded token hidden from Get, got %v", err)
	}

	// discarding an unknown identity is a no-op
	if err := s.Discard(ctx, uniqueEmail(t)); err != nil {
		t.Fatalf("discard unknown: %v", err)
	}
}
