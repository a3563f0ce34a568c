// Package auth provides the authentication core for a multi-tenant health
// platform: JWT issuance and classification, in-memory token revocation,
// per-action rate limiting, and the account lifecycle commands around them.
//
// Tokens:
//   - TokenServiceImpl signs HS256 tokens carrying a kind claim (access or
//     refresh) so a single decode recovers the token type. Decode separates
//     expiry from every other failure; callers treat both as invalid but may
//     log them differently.
//   - Blacklist revokes still-live tokens on logout. It is process local and
//     sized so entries outlive any token they shadow.
//
// Requests:
//   - middleware/jwtware gates requests: it attaches a Principal when the
//     presented access token verifies, and otherwise lets the request through
//     unauthenticated. RequireAuthenticated and RequirePermission enforce
//     access on the routes that need it.
//   - RateLimiter budgets login, registration, reset, and verification
//     attempts per client with continuously refilled token buckets.
//
// Lifecycle:
//   - Auther handles login, refresh, and logout. Registration, email
//     verification, password reset, and provider verification are command
//     handlers dispatched by the HTTP controller or directly by the host.
package auth
