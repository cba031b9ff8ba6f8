package diplomacy

import "errors"

// Error taxonomy for the diplomacy engine. Lookup failures from the
// attribute provider propagate unchanged (faction.ErrNotFound).
var (
	ErrSessionNotFound          = errors.New("negotiation session not found")
	ErrInsufficientParticipants = errors.New("not enough participants")
	ErrTooManyParticipants      = errors.New("too many participants")
	ErrNotAParticipant          = errors.New("faction is not a participant")
	ErrSessionClosed            = errors.New("negotiation session is closed")
	ErrValidation               = errors.New("invalid negotiation input")
)
