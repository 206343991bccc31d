package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
)

func record(identity, codeHash string, exp time.Time) entity.Record {
	return entity.Record{
		ID:        1,
		Identity:  identity,
		CodeHash:  codeHash,
		IssuedAt:  exp.Add(-5 * time.Minute),
		ExpiresAt: exp,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	exp := time.Now().Add(5 * time.Minute)
	if err := s.Put(ctx, record("a@x.com", "h1", exp)); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec, err := s.Get(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CodeHash != "h1" {
		t.Fatalf("expected hash h1, got %q", rec.CodeHash)
	}
}

func TestGetUnknownIdentity(t *testing.T) {
	s := New()

	if _, err := s.Get(context.Background(), "missing@x.com"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutSupersedesActiveRecord(t *testing.T) {
	s := New()
	ctx := context.Background()
	exp := time.Now().Add(5 * time.Minute)

	if err := s.Put(ctx, record("a@x.com", "old", exp)); err != nil {
		t.Fatalf("put old: %v", err)
	}
	if err := s.Put(ctx, record("a@x.com", "new", exp)); err != nil {
		t.Fatalf("put new: %v", err)
	}

	if ok, err := s.Consume(ctx, "a@x.com", "old"); err != nil || ok {
		t.Fatalf("expected superseded hash to fail, got ok=%v err=%v", ok, err)
	}
	if ok, err := s.Consume(ctx, "a@x.com", "new"); err != nil || !ok {
		t.Fatalf("expected active hash to consume, got ok=%v err=%v", ok, err)
	}
}

func TestConsumeOnlyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	exp := time.Now().Add(5 * time.Minute)

	if err := s.Put(ctx, record("a@x.com", "h1", exp)); err != nil {
		t.Fatalf("put: %v", err)
	}

	if ok, _ := s.Consume(ctx, "a@x.com", "h1"); !ok {
		t.Fatal("first consume should succeed")
	}
	if ok, _ := s.Consume(ctx, "a@x.com", "h1"); ok {
		t.Fatal("second consume should fail")
	}
	if _, err := s.Get(ctx, "a@x.com"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected consumed record hidden from Get, got %v", err)
	}
}

func TestConsumeConcurrentSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	exp := time.Now().Add(5 * time.Minute)

	if err := s.Put(ctx, record("a@x.com", "h1", exp)); err != nil {
		t.Fatalf("put: %v", err)
	}

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Consume(ctx, "a@x.com", "h1"); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	if got := len(wins); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestSweepRemovesExpiredAndUsed(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	if err := s.Put(ctx, record("expired@x.com", "h1", now.Add(-time.Minute))); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, record("live@x.com", "h2", now.Add(5*time.Minute))); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, record("used@x.com", "h3", now.Add(5*time.Minute))); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, _ := s.Consume(ctx, "used@x.com", "h3"); !ok {
		t.Fatal("consume should succeed")
	}

	if got := s.Sweep(now); got != 2 {
		t.Fatalf("expected sweep to drop 2 records, got %d", got)
	}
	if _, err := s.Get(ctx, "live@x.com"); err != nil {
		t.Fatalf("live record should survive sweep: %v", err)
	}
}
