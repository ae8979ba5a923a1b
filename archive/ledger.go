package archive

import (
	"context"
	"errors"
)

// ErrLedgerConflict reports a lost race between two commits of the same
// guard name.
var ErrLedgerConflict = errors.New("archive: concurrent guard commit")

// Ledger records completed guard writes as monotonically numbered
// versions per guard name, so cooperating processes can agree on which
// snapshot of a name is current. Sinks give no such guarantee on their
// own: an object store replaces the manifest silently.
//
// Commit must be atomic. Two writers racing on one name get distinct
// versions, or one of them ErrLedgerConflict.
type Ledger interface {
	// Commit publishes manifest as the next version of name and
	// returns that version.
	Commit(ctx context.Context, name, manifest string) (uint64, error)
	// Latest returns the newest committed version of name and its
	// manifest object. The bool reports whether any commit exists.
	Latest(ctx context.Context, name string) (uint64, string, bool, error)
}
