package observer

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/OCAP2/trackplay/internal/channel"
)

// DefaultChanSize is the buffer of a Chan created with size 0.
const DefaultChanSize = 256

// Chan is an Observer that turns callbacks into Notifications on a channel.
// Sends never block the playback loop; when the reader falls behind,
// notifications are dropped and counted.
type Chan struct {
	ch *channel.Lossy[Notification]
}

// NewChan creates a channel observer with the given buffer size.
func NewChan(size int) *Chan {
	if size <= 0 {
		size = DefaultChanSize
	}
	return &Chan{ch: channel.New[Notification](size)}
}

// OnPosition queues a position notification.
func (c *Chan) OnPosition(u PositionUpdate) {
	c.ch.Offer(Notification{Kind: KindPosition, Position: &u})
}

// OnComplete queues a completion notification.
func (c *Chan) OnComplete(done Completion) {
	c.ch.Offer(Notification{Kind: KindComplete, Completion: &done})
}

// Notifications returns the receive side.
func (c *Chan) Notifications() <-chan Notification {
	return c.ch.C()
}

// Dropped returns how many notifications the reader missed.
func (c *Chan) Dropped() int64 {
	return c.ch.Dropped()
}

// Close ends the notification stream.
func (c *Chan) Close() {
	c.ch.Close()
}

// JSONLines writes each notification as one JSON document per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJSONLines creates an observer writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// OnPosition writes a position line.
func (j *JSONLines) OnPosition(u PositionUpdate) {
	j.write(Notification{Kind: KindPosition, Position: &u})
}

// OnComplete writes a completion line.
func (j *JSONLines) OnComplete(c Completion) {
	j.write(Notification{Kind: KindComplete, Completion: &c})
}

// Err returns the first write error.
func (j *JSONLines) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *JSONLines) write(n Notification) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(n)
}
