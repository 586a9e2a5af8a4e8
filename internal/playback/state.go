package playback

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Stopped
	Playing
	Paused
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	// AnimationGrace is waited on top of every marker animation.
	AnimationGrace = 50 * time.Millisecond
	// StepDuration is the marker move length of steps and jumps.
	StepDuration = 100 * time.Millisecond
)

var (
	ErrInvalidState    = errors.New("invalid playback state")
	ErrIndexOutOfRange = errors.New("position index out of range")
	ErrInvalidSpeed    = errors.New("speed must be positive")
)
