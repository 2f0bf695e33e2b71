package sessions

import "time"

// Session is the isolated working area of one extraction request.
// Its WorkingDir is owned exclusively by the request that allocated it.
type Session struct {
	ID         string
	WorkingDir string
	SourcePath string
	CreatedAt  time.Time
}

// Record is the persisted lifecycle view of a session
type Record struct {
	ID         string
	WorkingDir string
	SourcePath string
	State      string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Terminal ledger states. The pipeline writes its own intermediate states.
const (
	StateDone   = "done"
	StateFailed = "failed"
	StateSwept  = "swept"
)

// IsTerminal reports whether a ledger state will never change again
func IsTerminal(state string) bool {
	return state == StateDone || state == StateFailed || state == StateSwept
}
