package domain

import "errors"

// ErrNotFound reports an absent submission or attachment. Callers match it
// with errors.Is; wrapping errors add the identifying context.
var ErrNotFound = errors.New("not found")

// ErrIncorrectState reports a status precondition violation, e.g. a
// conversion result for a submission that is not PROCESSING.
var ErrIncorrectState = errors.New("incorrect state")
