package repository

import "errors"

// Conflict sentinels returned by the ledger's transactional operations
// when the per-ticket serialization detects that another writer won.
// Callers retry once against the now-current state or abort cleanly.
var (
	// ErrTicketStateConflict means the ticket left the required status
	// between the caller's read and the locked write.
	ErrTicketStateConflict = errors.New("ticket status changed concurrently")

	// ErrLedgerConflict means the current ledger row no longer belongs
	// to the assignee the caller computed the operation from.
	ErrLedgerConflict = errors.New("current assignment changed concurrently")
)
