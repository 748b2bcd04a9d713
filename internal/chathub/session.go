package chathub

import "sync/atomic"

// SessionState tracks one connection instance from handshake to close.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateRejected
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var sessionTransitions = map[SessionState][]SessionState{
	StateConnecting:     {StateAuthenticating},
	StateAuthenticating: {StateAuthenticated, StateRejected},
	StateAuthenticated:  {StateDisconnected},
}

// Session is the per-connection state machine. Rejected and disconnected are
// terminal; a reconnect starts a new Session.
type Session struct {
	state atomic.Int32
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Transition moves the session to next if that is a legal step from the
// current state.
func (s *Session) Transition(next SessionState) bool {
	for {
		cur := s.State()
		allowed := false
		for _, st := range sessionTransitions[cur] {
			if st == next {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}
