package event

import "errors"

// Error kinds from §7's taxonomy that originate inside the event model
// itself (resource/scheduler/dispatch-level kinds live in their own
// packages).
var (
	ErrInvalidEvent        = errors.New("event: invalid event")
	ErrDeferralBeyondLimit = errors.New("event: deferral beyond limit")
	ErrReadOnly            = errors.New("event: mutation on archived/read-only event")
)
