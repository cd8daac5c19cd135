// Package token signs and verifies the two credential kinds the core
// issues: stateless short-lived access tokens and server-tracked long-lived
// refresh tokens.
//
// The two kinds use distinct HMAC secrets and distinct claim schemas, and
// each token carries a use claim naming its kind, so verifying a refresh
// token against the access secret (or the other way around) fails closed
// even if the secrets are ever misconfigured to the same value.
// Construction itself rejects equal secrets.
package token
