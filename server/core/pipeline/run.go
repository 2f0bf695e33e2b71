package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/framesight/server/core/ccc/logging"
	"github.com/yeti47/framesight/server/core/sessions"
)

// run tracks the state of a single pipeline invocation and mirrors it to the log, metrics and ledger
type run struct {
	id      string
	kind    string
	state   State
	started time.Time
	logger  logging.Logger
	ledger  sessions.Ledger
	// ledgerCtx outlives the request so terminal states are recorded after cancellation
	ledgerCtx context.Context
	metrics   *Metrics
	session   *sessions.Session
}

func (o *Orchestrator) newRun(ctx context.Context, kind string) *run {
	id := uuid.NewString()
	o.metrics.InFlight.Inc()

	return &run{
		id:        id,
		kind:      kind,
		state:     StateIdle,
		started:   time.Now(),
		logger:    logging.With(o.logger, "run_id", id, "kind", kind),
		ledger:    o.ledger,
		ledgerCtx: context.WithoutCancel(ctx),
		metrics:   o.metrics,
	}
}

// attach binds the run to its session; from here on every transition is written to the ledger
func (r *run) attach(session *sessions.Session) {
	r.session = session
	r.logger = logging.With(r.logger, "session_id", session.ID)

	if err := r.ledger.Add(r.ledgerCtx, session, string(r.state)); err != nil {
		r.logger.Warn("Failed to record session", "error", err)
	}
}

func (r *run) transition(next State) {
	r.move(next, "")
}

func (r *run) fail(err error) {
	r.move(StateFailed, err.Error())
}

func (r *run) move(next State, errMsg string) {
	if !r.state.CanTransition(next) {
		r.logger.Error("Invalid pipeline state transition", "from", string(r.state), "to", string(next))
		return
	}

	r.logger.Debug("Pipeline state changed", "from", string(r.state), "to", string(next))
	r.state = next

	if next.IsTerminal() {
		r.metrics.InFlight.Dec()
	}

	if r.session == nil {
		return
	}
	if err := r.ledger.UpdateState(r.ledgerCtx, r.session.ID, string(next), errMsg); err != nil {
		r.logger.Warn("Failed to update session state", "state", string(next), "error", err)
	}
}
