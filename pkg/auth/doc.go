// Package auth provides login sessions for the campus API.
//
// # Overview
//
// A successful login creates a session and hands the caller an opaque bearer
// token. Only the SHA-256 hash of the token is stored; the plaintext is
// returned exactly once.
//
// # Token Format
//
//	campus_<base64url(32 random bytes)>
//
// The first eight encoded characters are kept as a display prefix so a
// session can be identified in logs without revealing the secret.
//
// # Usage
//
//	sessions := auth.NewSessionStore(db)
//	token, session, err := sessions.Create(ctx, user.ID, 24*time.Hour)
//
//	// later, per request
//	session, err := sessions.Validate(ctx, token)
//	switch {
//	case errors.Is(err, auth.ErrTokenExpired):
//		// 104 Auth token expired
//	case errors.Is(err, auth.ErrInvalidToken):
//		// 102 User is not authenticated
//	}
//
// middleware.AuthMiddleware performs this lookup, loads the user and stores
// an *AuthContext on the request context.
//
// # Cleanup
//
// Expired and revoked sessions accumulate until CleanupExpired removes them.
// cmd/campus-janitor runs it on a schedule.
//
// # Related Packages
//
//   - pkg/users: Password verification at login
//   - pkg/middleware: Bearer token extraction
//   - pkg/contextkeys: AuthKey
package auth
