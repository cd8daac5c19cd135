// Package rate implements an in-process sliding-window rate limiter.
//
// Each key holds the timestamps of its admitted attempts inside the rolling
// window. The guarantee is exact: a key is allowed precisely limit attempts
// per window, the limit+1th is rejected, and once the window has fully
// elapsed from the first attempt a new attempt is admitted again. Rejected
// attempts are not recorded, so being throttled never extends the window.
//
// The guarantee is single-process only. Horizontal scaling requires a
// shared counter store behind the same Allow signature.
package rate
