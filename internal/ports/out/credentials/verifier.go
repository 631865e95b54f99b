package credentials

import "context"

// Verifier checks a supervisor credential pair. The core is deliberately
// decoupled from where the secret lives; implementations may compare against
// environment-supplied values, a secrets manager, or a directory service.
type Verifier interface {
	// Verify reports whether the email/password pair is valid. An error means
	// the backing store could not be consulted, not a failed match.
	Verify(ctx context.Context, email, password string) (bool, error)
}
