// Package session runs the live interview state machine. One Session owns
// one realtime connection and drives it from a single run loop; audio in,
// server events, watchdog timers and stop requests all converge there.
package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle phase of a session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateEnding
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateEnding:
		return "ENDING"
	case StateEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("STATE(%d)", int32(s))
	}
}

// End triggers. Exactly one wins per session.
const (
	TriggerTimeLimit     = "time_limit"
	TriggerQuestionCount = "question_count"
	TriggerToolCall      = "tool_call"
	TriggerClient        = "client_stop"
	TriggerConnection    = "connection_lost"
)

var (
	// ErrAlreadyStarted is returned by Start on a non-idle session.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotActive is returned when audio is pushed outside the ACTIVE state.
	ErrNotActive = errors.New("session not active")
	// ErrEmptyTranscript means the session ended before anything was said,
	// so there is nothing to score.
	ErrEmptyTranscript = errors.New("no transcript to analyze")
)

// ConnectionError wraps a realtime transport failure.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("realtime connection lost: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
