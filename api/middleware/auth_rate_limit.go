package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthThrottle caps attempts on one auth endpoint within a fixed window.
// A zero limit turns that dimension off.
type AuthThrottle struct {
	Name        string
	Window      time.Duration
	PerIP       int
	PerIdentity int
}

func (t AuthThrottle) active() bool {
	return t.Window > 0 && (t.PerIP > 0 || t.PerIdentity > 0)
}

func (t AuthThrottle) label() string {
	if name := strings.ToLower(strings.TrimSpace(t.Name)); name != "" {
		return name
	}
	return "auth"
}

// counter is one dimension being checked for a request.
type counter struct {
	dimension string
	value     string
	limit     int
}

// AuthRateLimit throttles by client IP and by the identity in the body
// ("identifier" on login, "email" on registration). Identities are hashed
// before they are used as keys or logged.
func AuthRateLimit(throttle AuthThrottle, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !throttle.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var checks []counter
			if throttle.PerIP > 0 {
				if ip := clientIP(r); ip != "" {
					checks = append(checks, counter{dimension: "ip", value: ip, limit: throttle.PerIP})
				}
			}
			if throttle.PerIdentity > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if id := identityFrom(body); id != "" {
					checks = append(checks, counter{dimension: "identifier", value: sha256Hex(id), limit: throttle.PerIdentity})
				}
			}

			for _, c := range checks {
				scope := c.dimension + ":" + throttle.label() + ":" + c.value
				ok, seen, err := store.FixedWindowAllow(ctx, scope, int64(c.limit), throttle.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check"))
					return
				}
				if !ok {
					rejectThrottled(ctx, logg, w, throttle, c, seen)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectThrottled(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, throttle AuthThrottle, c counter, seen int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         throttle.label(),
			"dimension":      c.dimension,
			"key":            c.value,
			"attempts":       seen,
			"limit":          c.limit,
			"window_seconds": int(throttle.Window.Seconds()),
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(max(int(throttle.Window.Seconds()), 1)))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func identityFrom(payload []byte) string {
	var body struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	id := body.Identifier
	if id == "" {
		id = body.Email
	}
	return strings.ToLower(strings.TrimSpace(id))
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
