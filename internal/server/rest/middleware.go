package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/netx"
	"github.com/dmitrijs2005/saltkeeper/internal/server/auth"
	"github.com/dmitrijs2005/saltkeeper/internal/server/ratelimit"
)

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type clientIDKey struct{}

// ClientIDFromContext returns the authenticated client, if any.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(clientIDKey{}).(string)
	return v, ok
}

// requireAuth rejects requests without a valid bearer token. The response
// never says what was wrong with the credential.
func requireAuth(secret []byte, logger logging.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := auth.Authenticate(r.Header.Get("Authorization"), secret)
			if err != nil {
				logger.Warn(r.Context(), "rejected credential", "remote", clientIP(r), "path", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			ctx := context.WithValue(r.Context(), clientIDKey{}, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rateLimit applies l keyed by client IP.
func rateLimit(l *ratelimit.Limiter) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, retryAfter := l.Allow(clientIP(r)); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)+1))
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitBody caps the request body on writes.
func limitBody(n int64) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.ContentLength > n {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "too_large"})
				return
			}
			if n > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// logRequests writes one line per request. Paths carry salt ids, never salts.
func logRequests(logger logging.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"remote", clientIP(r),
			)
		})
	}
}

// recoverPanics turns a handler panic into a 500.
func recoverPanics(logger logging.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error(r.Context(), "panic in handler", "panic", p, "path", r.URL.Path)
					writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the TCP peer. The custodian only listens on the private
// link, so forwarding headers are not trusted.
func clientIP(r *http.Request) string {
	return netx.HostOnly(r.RemoteAddr)
}
