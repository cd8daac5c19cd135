// Package authcore is the session and identity-verification core for a
// three-role platform (system administrator, organization administrator,
// end user). It issues and verifies short-lived JWT access tokens, rotates
// long-lived refresh tokens safely under concurrent and retrying clients,
// verifies one-time codes for email ownership and password reset, gates
// requests by role and by an organization's verification status, and
// throttles sensitive entry points with an in-process sliding window.
//
// The package is designed for concurrent server workloads: Service methods
// are safe to call from multiple goroutines after construction through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Service], [Builder], [Config],
// the error taxonomy, and the collaborator interfaces ([Directory],
// [OrganizationDirectory], [CodeDeliverer]). Persistent user and organization
// records, outbound code delivery, HTTP routing, and log persistence are all
// external: the core consumes them through the collaborator interfaces and
// emits [AuditEvent] values through an injected [AuditSink] instead of
// writing logs itself.
//
// # What this package must NOT do
//
//   - Expose the Redis client, internal stores, or record encodings in its
//     public API.
//   - Echo one-time codes to any caller other than the delivery collaborator.
//   - Hold any internal lock across a collaborator call.
//
// # Limitations
//
// The rate limiter is a single-process sliding window; horizontal scaling
// requires swapping a shared counter store behind the same interface.
// Access tokens are not revocable before expiry: forced logout is expressed
// as refresh-state invalidation plus short access TTLs.
package authcore
