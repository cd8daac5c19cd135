package middleware

import (
	"net/http"

	"github.com/axialab/authcore"
)

// Cookie names for the cookie transport. Both are issued httpOnly; the
// refresh cookie is additionally path-scoped so browsers only attach it to
// the refresh endpoint.
const (
	AccessCookieName  = "ac_access"
	RefreshCookieName = "ac_refresh"
)

// CookieOptions defines how token cookies are issued.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
	// RefreshPath scopes the refresh cookie, typically "/auth/refresh".
	// Empty means "/".
	RefreshPath string
}

func (o CookieOptions) normalize() CookieOptions {
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteStrictMode
	}
	if o.RefreshPath == "" {
		o.RefreshPath = "/"
	}
	return o
}

// TokenFromRequest extracts the access token from the Authorization header
// or, failing that, the access cookie. Supporting both keeps the core
// uncoupled from the transport choice.
func TokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}

	cookie, err := r.Cookie(AccessCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// RefreshTokenFromRequest extracts the refresh token from the refresh
// cookie. Header/body clients pass the token to the handler directly and
// do not need this helper.
func RefreshTokenFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// SetTokenCookies issues the pair as scoped httpOnly cookies.
func SetTokenCookies(w http.ResponseWriter, pair authcore.TokenPair, opts CookieOptions) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   opts.Domain,
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     opts.RefreshPath,
		Domain:   opts.Domain,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearTokenCookies removes both token cookies from the client.
func ClearTokenCookies(w http.ResponseWriter, opts CookieOptions) {
	opts = opts.normalize()

	for _, c := range []struct {
		name string
		path string
	}{
		{AccessCookieName, "/"},
		{RefreshCookieName, opts.RefreshPath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   opts.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   opts.Secure,
			SameSite: opts.SameSite,
		})
	}
}
