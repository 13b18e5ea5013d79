package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/safeher/safeher/colors"
	"github.com/safeher/safeher/server/auth"
	"golang.org/x/time/rate"
)

type RequestContextKey string

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func (env *AppEnv) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			responseStatus := colors.Green(responseWriter.Status)
			if responseWriter.Status >= 400 {
				responseStatus = colors.Red(responseWriter.Status)
			}

			env.logg.Infof("%v %v %v %v",
				r.Method,
				r.RequestURI,
				responseStatus,
				colors.Yellow(fmt.Sprintf("[%v]", time.Since(start))))
		}()

		w.Header().Add("Content-Type", "application/json")
		next.ServeHTTP(responseWriter, r)
	})
}

// authMiddleware resolves the bearer token to a user & injects it into
// the request context. Each verification failure reason maps to its
// own response.
func (env *AppEnv) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := env.guard.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeResponse(w, ResponsePayload{Errors: []string{authErrorMessage(err)}}, authErrorStatus(err))
			return
		}

		ctx := context.WithValue(r.Context(), RequestContextKey("currentUser"), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authErrorStatus(err error) int {
	if errors.Is(err, ErrUserNotFound) {
		return http.StatusNotFound
	}

	return http.StatusUnauthorized
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "authorization token is missing"
	case errors.Is(err, auth.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, ErrUserNotFound):
		return "user not found"
	default:
		return "invalid token provided"
	}
}

// clientRateLimiter keeps one token bucket per client address. It is
// built once at startup & injected, never shared via package state.
type clientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newClientRateLimiter(requestsPerMin int) *clientRateLimiter {
	if requestsPerMin <= 0 {
		requestsPerMin = 100
	}

	return &clientRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(requestsPerMin) / 60),
		burst:    requestsPerMin,
	}
}

func (rl *clientRateLimiter) limiterFor(clientAddr string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[clientAddr]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[clientAddr] = limiter
	}

	return limiter
}

func (rl *clientRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientAddr, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			clientAddr = r.RemoteAddr
		}

		if !rl.limiterFor(clientAddr).Allow() {
			writeResponse(w, ResponsePayload{Errors: []string{"rate limit exceeded"}}, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
