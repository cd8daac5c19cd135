// Package credential provides the two one-way hashing primitives the core
// needs: a slow, salted argon2id hash for passwords and a fast sha256
// digest for values that are already high entropy and short lived (one-time
// codes, refresh tokens).
//
// There is exactly one password work-factor parameter set per [Hasher] and
// one documented default, [DefaultParams]. Constructing every call site from
// the same Hasher is what keeps stored hashes uniform; there is no per-call
// cost knob.
package credential
