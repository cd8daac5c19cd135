package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/axialab/authcore"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by [Guard] for the
// current request.
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return id, ok
}

// Guard returns middleware that admits only requests whose access token
// authorizes the required role. For [authcore.RoleOrgAdmin] the
// organization's verification status is re-checked live on every request;
// on success the resulting identity (including the fetched status) is
// attached to the request context for downstream handlers.
func Guard(svc *authcore.Service, required authcore.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := TokenFromRequest(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := svc.Authorize(r.Context(), token, required)
			if err != nil {
				writeDenial(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireEndUser guards end-user routes.
func RequireEndUser(svc *authcore.Service) func(http.Handler) http.Handler {
	return Guard(svc, authcore.RoleEndUser)
}

// RequireOrgAdmin guards organization-admin routes, including the live
// verification-status check.
func RequireOrgAdmin(svc *authcore.Service) func(http.Handler) http.Handler {
	return Guard(svc, authcore.RoleOrgAdmin)
}

// RequireSystemAdmin guards system-admin routes.
func RequireSystemAdmin(svc *authcore.Service) func(http.Handler) http.Handler {
	return Guard(svc, authcore.RoleSystemAdmin)
}

// writeDenial serializes a Service error onto the response. Authorization
// denials carry their reason (the caller is already authenticated);
// authentication failures stay generic.
func writeDenial(w http.ResponseWriter, err error) {
	var rl *authcore.RateLimitError
	switch {
	case errors.As(err, &rl):
		seconds := int(rl.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	case errors.Is(err, authcore.ErrAuthorization):
		http.Error(w, denialReason(err), http.StatusForbidden)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func denialReason(err error) string {
	// Strip the taxonomy prefix, keep the reason.
	msg := strings.TrimPrefix(err.Error(), authcore.ErrAuthorization.Error()+": ")
	if msg == "" {
		return "forbidden"
	}
	return msg
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
