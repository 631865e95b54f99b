package staticcreds

import (
	"context"
	"crypto/subtle"

	"github.com/fieldtrace/presence-api/internal/domain"
)

// Verifier checks credentials against a single deployment-supplied pair. It
// implements credentials.Verifier for setups where the supervising party is
// one shared account.
type Verifier struct {
	email    string
	password string
}

func New(email, password string) *Verifier {
	return &Verifier{email: domain.NormalizeEmail(email), password: password}
}

// Verify compares both fields in constant time; the email is folded the same
// way registration folds it.
func (v *Verifier) Verify(_ context.Context, email, password string) (bool, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(domain.NormalizeEmail(email)), []byte(v.email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.password)) == 1
	return emailOK && passOK, nil
}
