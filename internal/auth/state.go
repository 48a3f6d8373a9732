package auth

import (
	"time"

	"github.com/habat-tech/todrive/internal/model"
)

// State is the authorization status of the process-wide session.
type State int

const (
	StateNoRecord State = iota
	StateRecordLoadedValid
	StateRecordLoadedExpired
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateNoRecord:
		return "no_record"
	case StateRecordLoadedValid:
		return "record_valid"
	case StateRecordLoadedExpired:
		return "record_expired"
	case StateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Action is the I/O step that leaves a state.
type Action int

const (
	ActionNone Action = iota
	ActionReuse
	ActionRefresh
	ActionAuthorize
)

func (a Action) String() string {
	switch a {
	case ActionReuse:
		return "reuse"
	case ActionRefresh:
		return "refresh"
	case ActionAuthorize:
		return "authorize"
	default:
		return "none"
	}
}

// Outcome reports how an Action ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeRejected means the refresh token itself is no longer accepted.
	OutcomeRejected
	OutcomeFailed
)

// Classify derives the starting state from the loaded record.
func Classify(rec *model.CredentialRecord, now time.Time) State {
	switch {
	case rec == nil:
		return StateNoRecord
	case rec.Expired(now) || rec.AccessToken == "":
		if rec.RefreshToken == "" {
			return StateNoRecord
		}
		return StateRecordLoadedExpired
	default:
		return StateRecordLoadedValid
	}
}

// Plan returns the action that leaves s.
func Plan(s State) Action {
	switch s {
	case StateNoRecord:
		return ActionAuthorize
	case StateRecordLoadedExpired:
		return ActionRefresh
	case StateRecordLoadedValid:
		return ActionReuse
	default:
		return ActionNone
	}
}

// Next returns the state reached when the action planned for s ends with o.
// A failed action leaves the state unchanged; the caller stops there.
func Next(s State, o Outcome) State {
	switch o {
	case OutcomeOK:
		return StateAuthorized
	case OutcomeRejected:
		if s == StateRecordLoadedExpired {
			return StateNoRecord
		}
		return s
	default:
		return s
	}
}
