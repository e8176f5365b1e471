package session

import (
	"errors"
	"sync"
)

// ErrBusy is returned when an analyze or apply call is already running for
// the session. Duplicate concurrent calls are rejected rather than queued:
// both would mutate the same draft set.
var ErrBusy = errors.New("operation already in progress for this session")

// flightGuard tracks in-flight long operations per session id and operation
// name.
type flightGuard struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

func newFlightGuard() *flightGuard {
	return &flightGuard{inFlight: map[string]bool{}}
}

// begin claims the slot for one session/operation pair. The caller must
// invoke the returned release exactly once. ErrBusy means someone else holds
// the slot.
func (g *flightGuard) begin(sessionID, op string) (release func(), err error) {
	key := sessionID + ":" + op
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[key] {
		return nil, ErrBusy
	}
	g.inFlight[key] = true
	return func() {
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
	}, nil
}
