package room

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yootgame/yootd/internal/game/move"
)

// Broadcaster fans events out to the occupants of a room. Deliveries go
// through each occupant's non-blocking Deliver, so one stalled recipient
// never delays the others; a failed delivery is logged and skipped.
type Broadcaster struct {
	logger *zap.Logger
}

// NewBroadcaster creates a Broadcaster.
//
// Precondition: logger must be non-nil.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// MoveUpdate sends a piece-move event to every occupant of the room,
// the originator included. The identical line reaches all recipients;
// per-recipient relative order is preserved by their outboxes.
func (b *Broadcaster) MoveUpdate(r *Room, player, piece string, newPosition int) {
	u := move.Update{Player: player, Piece: piece, NewPosition: newPosition}
	line := u.String()
	for _, o := range r.Occupants() {
		b.deliver(r, o, line)
	}
}

// Relay sends free-text chat from one occupant to every other occupant of
// the room. Content is opaque to this layer and is not validated.
func (b *Broadcaster) Relay(r *Room, from Occupant, text string) {
	line := fmt.Sprintf("%s: %s", from.Nickname(), text)
	b.toOthers(r, from, line)
}

// NoticeJoined tells the other occupants that someone joined.
func (b *Broadcaster) NoticeJoined(r *Room, who Occupant) {
	b.toOthers(r, who, fmt.Sprintf("%s joined the room.", who.Nickname()))
}

// NoticeLeft tells the remaining occupants that someone left.
func (b *Broadcaster) NoticeLeft(r *Room, who Occupant) {
	b.toOthers(r, who, fmt.Sprintf("%s left the room.", who.Nickname()))
}

func (b *Broadcaster) toOthers(r *Room, origin Occupant, line string) {
	for _, o := range r.Occupants() {
		if o.UID() == origin.UID() {
			continue
		}
		b.deliver(r, o, line)
	}
}

func (b *Broadcaster) deliver(r *Room, o Occupant, line string) {
	if err := o.Deliver(line); err != nil {
		b.logger.Warn("dropping broadcast for occupant",
			zap.String("room", r.Name()),
			zap.String("uid", o.UID()),
			zap.String("nickname", o.Nickname()),
			zap.Error(err),
		)
	}
}
