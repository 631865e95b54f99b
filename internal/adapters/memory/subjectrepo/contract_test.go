package subjectrepo

import (
	"testing"

	"github.com/fieldtrace/presence-api/internal/adapters/contracttest"
	subjectrepoport "github.com/fieldtrace/presence-api/internal/ports/out/subjectrepo"
)

func TestContract_MemorySubjectRepo(t *testing.T) {
	t.Parallel()

	contracttest.RunSubjectRepo(t, func(t *testing.T) (subjectrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(), nil
	})
}
