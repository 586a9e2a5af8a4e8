package streaming

import (
	"encoding/json"

	"github.com/OCAP2/trackplay/pkg/core"
)

// Frame type constants of the websocket channel protocol.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeMessage     = "message"
	TypeAck         = "ack"
)

// Notification type constants of the playback observer stream.
const (
	TypePosition = "position"
	TypeComplete = "complete"
)

// Envelope wraps all frames exchanged over the websocket.
// Payload is only set on message frames.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement of a subscribe or unsubscribe.
type AckMessage struct {
	Type    string `json:"type"` // always "ack"
	For     string `json:"for"`  // the frame type being acknowledged
	Channel string `json:"channel"`
	Error   string `json:"error,omitempty"`
}

// PositionMessage reports a sample applied during playback.
type PositionMessage struct {
	Type           string      `json:"type"`
	Position       core.Sample `json:"position"`
	Coordinates    core.LatLng `json:"coordinates"`
	Index          int         `json:"index"`
	TotalPositions int         `json:"totalPositions"`
	Progress       float64     `json:"progress"`
	Duration       *int64      `json:"duration,omitempty"` // milliseconds
	Animated       bool        `json:"animated"`
}

// CompleteMessage reports that playback reached the last sample.
type CompleteMessage struct {
	Type           string `json:"type"`
	Complete       bool   `json:"complete"`
	TotalPositions int    `json:"totalPositions"`
}
