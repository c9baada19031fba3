package session

import (
	"time"

	"github.com/aluiziolira/go-barcode-lookup/models"
)

// State is the controller's position in the capture cycle.
type State int

const (
	Idle State = iota
	Capturing
	Resolving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Resolving:
		return "resolving"
	default:
		return "unknown"
	}
}

// Outcome is how a cycle ended.
type Outcome int

const (
	// Pending marks snapshots of a cycle still in progress.
	Pending Outcome = iota
	Match
	NoMatch
	Failed
	Unavailable
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Match:
		return "match"
	case NoMatch:
		return "no_match"
	case Failed:
		return "failed"
	case Unavailable:
		return "unavailable"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the controller published on every
// transition. Display is set only for Match; Err only for Failed and
// Unavailable.
type Snapshot struct {
	Session   string
	State     State
	Capturing bool
	Symbol    string
	Symbology models.Symbology
	Outcome   Outcome
	Display   *models.DisplayModel
	Err       error
	At        time.Time
}

// Terminal reports whether the snapshot ends its cycle.
func (s Snapshot) Terminal() bool {
	return s.Outcome != Pending
}
