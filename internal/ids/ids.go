package ids

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier for identities and
// audit events. ULIDs keep insertion order readable in the database without
// a sequence.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
