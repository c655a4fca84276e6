package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// replayedHeaders are restored on a replay; everything else is dropped.
var replayedHeaders = []string{"Content-Type", GuestTokenHeader}

// IdempotencyPolicy decides how long a response is kept and whether callers
// must send a key.
type IdempotencyPolicy struct {
	TTL      time.Duration
	Required bool
}

// OptionalKey records responses only when the caller sends a key.
func OptionalKey(ttl time.Duration) IdempotencyPolicy {
	return IdempotencyPolicy{TTL: ttl}
}

// RequiredKey rejects requests without a key.
func RequiredKey(ttl time.Duration) IdempotencyPolicy {
	return IdempotencyPolicy{TTL: ttl, Required: true}
}

type storedResponse struct {
	Status  int               `json:"status"`
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
	Digest  string            `json:"request_hash"`
}

// Idempotency replays the first non-5xx response recorded under
// (actor, method, path, key). Reusing a key with a different body is a 409.
func Idempotency(store pkgredis.IdempotencyStore, policy IdempotencyPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if store == nil || (clientKey == "" && !policy.Required) {
				next.ServeHTTP(w, r)
				return
			}
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			digest := digestOf(body)
			key := store.IdempotencyKey(replayScope(r), clientKey)

			prior, err := lookup(r, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lookup"))
				return
			}
			if prior != nil {
				if prior.Digest != digest {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.replay(w)
				return
			}

			tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tee, r)
			if tee.status >= http.StatusInternalServerError {
				return
			}

			rec := storedResponse{Status: tee.status, Body: tee.buf.Bytes(), Digest: digest, Headers: map[string]string{}}
			for _, h := range replayedHeaders {
				if v := tee.Header().Get(h); v != "" {
					rec.Headers[h] = v
				}
			}
			raw, err := json.Marshal(rec)
			if err == nil {
				_, err = store.SetNX(ctx, key, string(raw), policy.TTL)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "idempotency record not saved", err)
			}
		})
	}
}

func lookup(r *http.Request, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(r.Context(), key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &rec, nil
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	for name, value := range s.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// replayScope isolates records per actor so two shoppers reusing a key never
// see each other's responses. Guest tokens are hashed before they reach Redis.
func replayScope(r *http.Request) string {
	actor := "guest:" + digestOf([]byte(GuestTokenFromContext(r.Context())))
	if id := UserIDFromContext(r.Context()); id > 0 {
		actor = fmt.Sprintf("user:%d", id)
	}
	return actor + "|" + r.Method + "|" + r.URL.Path
}

func digestOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// teeWriter forwards the response while keeping a copy for the record.
type teeWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (t *teeWriter) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	t.buf.Write(b)
	return t.ResponseWriter.Write(b)
}
