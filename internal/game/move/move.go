// Package move defines the MOVE_UPDATE wire format shared by the server
// relay and protocol consumers.
package move

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix is the first token of every move-update line.
const Prefix = "MOVE_UPDATE"

// ErrMalformed reports a line that does not match the move-update shape.
// Consumers are expected to report malformed lines, never to crash on them.
var ErrMalformed = errors.New("malformed move update")

// Update is one piece-move event. The server relays it without validating
// move legality; Player and Piece are opaque tokens to this layer.
type Update struct {
	Player      string
	Piece       string
	NewPosition int
}

// String renders the update in wire format:
// "MOVE_UPDATE <player> <piece> <newPosition>".
func (u Update) String() string {
	return fmt.Sprintf("%s %s %s %d", Prefix, u.Player, u.Piece, u.NewPosition)
}

// Parse decodes a move-update line. The line must consist of exactly four
// whitespace-separated tokens: the MOVE_UPDATE prefix, player, piece, and a
// base-10 integer position.
//
// Postcondition: Returns the decoded Update, or an error wrapping ErrMalformed.
func Parse(line string) (Update, error) {
	parts := strings.Fields(line)
	if len(parts) != 4 || parts[0] != Prefix {
		return Update{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	pos, err := strconv.Atoi(parts[3])
	if err != nil {
		return Update{}, fmt.Errorf("%w: position %q is not an integer", ErrMalformed, parts[3])
	}

	return Update{
		Player:      parts[1],
		Piece:       parts[2],
		NewPosition: pos,
	}, nil
}

// IsUpdate reports whether the line matches the move-update shape.
func IsUpdate(line string) bool {
	_, err := Parse(line)
	return err == nil
}
