// Package auth implements the authentication and account lifecycle core:
// token issuance and verification, signup/login/logout, password reset with
// time-boxed one-time codes, and the cascading cleanup that runs on account
// deletion.  Handlers translate the sentinel errors defined here into HTTP
// status codes.
package auth

import "errors"

// ErrConflict is returned when a signup collides with an existing identity
// (duplicate email or duplicate social id/type pair).  Handlers translate
// this into HTTP 409.
var ErrConflict = errors.New("identity already exists")

// ErrNotFound is returned when a referenced user or resource does not
// exist.  On the auth surface this maps to HTTP 400, matching the API
// contract rather than a generic 404.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned for a wrong password or a reset code
// mismatch.  Handlers translate this into HTTP 400 on the credential
// endpoints.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInvalidToken is returned when a token fails signature verification,
// carries the wrong type, or refers to a refresh session that has been
// superseded or revoked.  Callers should force a re-login.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when a token's lifetime has passed.  Callers
// holding a refresh token should re-login; callers holding an access token
// may retry via the refresh endpoint.
var ErrExpiredToken = errors.New("token expired")

// ErrDeliveryFailed is returned when an outbound mail could not be sent.
// No state is persisted in that case, so the caller may simply retry.
var ErrDeliveryFailed = errors.New("delivery failed")
