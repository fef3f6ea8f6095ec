package sessions

import errs "github.com/jrsteele09/go-token-broker/internal/errors"

type Outcome int

const (
	OutcomeAbsent Outcome = iota
	OutcomeFound
	OutcomeCorrupt
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeCorrupt:
		return "corrupt"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "absent"
	}
}

// Resolution is the tagged result of ResolveSession. Credentials is set only
// for OutcomeFound; Err carries the cause for OutcomeCorrupt and
// OutcomeUnavailable.
type Resolution struct {
	Outcome     Outcome
	Credentials *Credentials
	Err         error
}

// LoggedIn reports whether the session resolved to usable credentials. Every
// other outcome is the same "logged out" state for the caller.
func (r Resolution) LoggedIn() bool {
	return r.Outcome == OutcomeFound && r.Credentials != nil
}

// Result renders the resolution in the status envelope.
func (r Resolution) Result() Result {
	if !r.LoggedIn() {
		return Failed(nil)
	}
	return Success(*r.Credentials)
}

// Cause returns an error describing why the session is not usable, or nil
// when it is.
func (r Resolution) Cause() error {
	switch r.Outcome {
	case OutcomeFound:
		return nil
	case OutcomeAbsent:
		return errs.ErrSessionNotFound
	default:
		return r.Err
	}
}
