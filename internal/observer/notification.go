package observer

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/trackplay/pkg/streaming"
)

// Kind tells which variant a Notification holds.
type Kind int

const (
	KindPosition Kind = iota + 1
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindPosition:
		return streaming.TypePosition
	case KindComplete:
		return streaming.TypeComplete
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Notification is a tagged union of the two observer callbacks.
type Notification struct {
	Kind       Kind
	Position   *PositionUpdate
	Completion *Completion
}

// MarshalJSON renders the notification in its wire form.
func (n Notification) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindPosition:
		if n.Position == nil {
			return nil, fmt.Errorf("position notification without payload")
		}
		return json.Marshal(PositionMessage(*n.Position))
	case KindComplete:
		if n.Completion == nil {
			return nil, fmt.Errorf("complete notification without payload")
		}
		return json.Marshal(streaming.CompleteMessage{
			Type:           streaming.TypeComplete,
			Complete:       true,
			TotalPositions: n.Completion.Total,
		})
	default:
		return nil, fmt.Errorf("unknown notification kind: %s", n.Kind)
	}
}

// PositionMessage converts an update to its wire form.
func PositionMessage(u PositionUpdate) streaming.PositionMessage {
	msg := streaming.PositionMessage{
		Type:           streaming.TypePosition,
		Position:       u.Sample,
		Coordinates:    u.Position,
		Index:          u.Index,
		TotalPositions: u.Total,
		Progress:       u.Progress,
		Animated:       u.Animated,
	}
	if u.Duration > 0 {
		ms := u.Duration.Milliseconds()
		msg.Duration = &ms
	}
	return msg
}
