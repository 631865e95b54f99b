package adminauth

import (
	"context"

	"github.com/fieldtrace/presence-api/internal/ports/out/credentials"
)

// Service authenticates the supervising party against an externally supplied
// credential verifier.
type Service struct {
	verifier credentials.Verifier
}

func NewService(verifier credentials.Verifier) *Service {
	return &Service{verifier: verifier}
}

// Login returns nil when the credential pair verifies, a typed 401 when it
// does not, and the verifier's error when the backing store is unreachable.
// There is no partial success.
func (s *Service) Login(ctx context.Context, email, password string) error {
	ok, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return err
	}
	if !ok {
		return &Error{
			Status:  401,
			Code:    "AUTH_FAILED",
			Message: "invalid credentials",
		}
	}
	return nil
}
