// Package otp manages time-boxed numeric one-time codes bound to a
// (subject, purpose) pair.
//
// Per pair the lifecycle is NONE → ISSUED → CONSUMED or EXPIRED. Issuing
// replaces any prior unconsumed code, so at most one code is ever active
// per pair. Only the sha256 digest of a code is stored; the plaintext is
// returned once, to the issuing caller, for hand-off to the delivery
// collaborator. Consume runs as a single Redis Lua script so concurrent
// verify attempts cannot double-spend a code.
package otp
