// Package middleware provides net/http guards over an authcore Service.
//
// Guards accept the access token from either an Authorization: Bearer
// header or an httpOnly cookie, so the core stays uncoupled from the
// transport choice. Denials map onto the error taxonomy: authentication
// failures return 401 with a deliberately generic body, authorization
// denials return 403 with the specific reason, and rate limiting returns
// 429 with a Retry-After header.
package middleware
