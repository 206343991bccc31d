// Package redistore implements the credential store on Redis.
//
// Records live under one key per identity and are kept for twice their code
// TTL, so a verification attempt shortly after expiry can still be answered
// with the record's own expiry instead of a plain miss.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
	"github.com/tsxr1ck/otpify/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "otp:code:"

// consumeScript deletes the record only when its hash still matches, so two
// concurrent attempts cannot both consume the same code.
var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 0
end
local rec = cjson.decode(raw)
if rec['code_hash'] ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
return 1`)

type storedRecord struct {
	ID        int64     `json:"id"`
	Identity  string    `json:"identity"`
	CodeHash  string    `json:"code_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Store struct {
	client *redis.Client
	ins    instrument.Instrumentation
}

func New(client *redis.Client, ins instrument.Instrumentation) *Store {
	return &Store{
		client: client,
		ins:    ins,
	}
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.redistore").Start(ctx, name)
}

func (s *Store) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Put stores the record, replacing any active one for the identity. The key
// outlives the code itself so expiry can be reported explicitly.
func (s *Store) Put(ctx context.Context, rec entity.Record) (err error) {
	ctx, span := s.startSpan(ctx, "Put")
	defer func() { s.endSpan(span, err) }()

	raw, err := json.Marshal(storedRecord{
		ID:        rec.ID,
		Identity:  rec.Identity,
		CodeHash:  rec.CodeHash,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		return err
	}

	retention := 2 * rec.ExpiresAt.Sub(rec.IssuedAt)
	if retention <= 0 {
		retention = time.Minute
	}

	err = s.client.Set(ctx, keyPrefix+rec.Identity, raw, retention).Err()
	return err
}

// Get returns the record for the identity, goerror.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, identity string) (rec *entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "Get")
	defer func() { s.endSpan(span, err) }()

	raw, err := s.client.Get(ctx, keyPrefix+identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, goerror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var stored storedRecord
	if err = json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}

	return &entity.Record{
		ID:        stored.ID,
		Identity:  stored.Identity,
		CodeHash:  stored.CodeHash,
		IssuedAt:  stored.IssuedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// Consume removes the record when its hash matches, atomically on the server.
func (s *Store) Consume(ctx context.Context, identity, codeHash string) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "Consume")
	defer func() { s.endSpan(span, err) }()

	res, err := consumeScript.Run(ctx, s.client, []string{keyPrefix + identity}, codeHash).Int()
	if err != nil {
		return false, err
	}

	return res == 1, nil
}

// Discard removes any record for the identity.
func (s *Store) Discard(ctx context.Context, identity string) (err error) {
	ctx, span := s.startSpan(ctx, "Discard")
	defer func() { s.endSpan(span, err) }()

	err = s.client.Del(ctx, keyPrefix+identity).Err()
	return err
}
