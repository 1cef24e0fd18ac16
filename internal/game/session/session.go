package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yootgame/yootd/internal/config"
	"github.com/yootgame/yootd/internal/frontend/tcp"
	"github.com/yootgame/yootd/internal/game/move"
	"github.com/yootgame/yootd/internal/game/room"
)

// Session is the server-side state for one client connection. It owns the
// connection for its lifetime; rooms only ever hold it as a non-owning
// room.Occupant handle.
type Session struct {
	uid    string
	conn   *tcp.Conn
	outbox *Outbox
	logger *zap.Logger

	nickname string
	roomName string
	state    State

	closeOnce sync.Once
}

// UID implements room.Occupant.
func (s *Session) UID() string { return s.uid }

// Nickname implements room.Occupant.
func (s *Session) Nickname() string { return s.nickname }

// Deliver implements room.Occupant by enqueueing the line on the outbox.
// It never blocks; a full or closed outbox rejects the line.
func (s *Session) Deliver(line string) error {
	return s.outbox.Push(line)
}

// reply enqueues a response to this session's own client.
func (s *Session) reply(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if err := s.outbox.Push(line); err != nil {
		s.logger.Debug("dropping response", zap.Error(err))
	}
}

// Handler implements tcp.SessionHandler. It runs the protocol state
// machine for each connection against the shared registry and broadcaster.
type Handler struct {
	registry  *room.Registry
	broadcast *room.Broadcaster
	game      config.GameConfig
	logger    *zap.Logger
}

// NewHandler creates a session Handler.
//
// Precondition: registry, broadcast, and logger must be non-nil; game must
// have passed config validation.
func NewHandler(registry *room.Registry, broadcast *room.Broadcaster, game config.GameConfig, logger *zap.Logger) *Handler {
	return &Handler{
		registry:  registry,
		broadcast: broadcast,
		game:      game,
		logger:    logger,
	}
}

// HandleSession runs the command loop for one connection until the client
// quits, the connection fails, or the server shuts down.
//
// Postcondition: The session occupies no room and its outbox is closed,
// whichever way the loop ended.
func (h *Handler) HandleSession(ctx context.Context, conn *tcp.Conn) error {
	sess := &Session{
		uid:   uuid.NewString(),
		conn:  conn,
		state: StateUnnamed,
	}
	sess.outbox = NewOutbox(sess.uid, h.game.OutboxBuffer)
	sess.logger = h.logger.With(
		zap.String("sid", sess.uid),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)

	// Single writer drains the outbox, so broadcasts and responses reach
	// the client as one ordered stream.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for line := range sess.outbox.Lines() {
			if err := conn.WriteLine(line); err != nil {
				sess.logger.Debug("write failed, closing session", zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}()

	// Cleanup runs exactly once no matter how the loop ends: quit, read
	// error, or shutdown.
	defer func() {
		h.teardown(sess)
		<-writerDone
	}()

	sess.reply("The connection to the server was successful.")

	for {
		select {
		case <-ctx.Done():
			sess.reply("Server is shutting down.")
			sess.state = StateClosed
			return ctx.Err()
		default:
		}

		line, err := conn.ReadLine()
		if err != nil {
			sess.state = StateClosed
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		h.dispatch(sess, line)
		if sess.state == StateClosed {
			return nil
		}
	}
}

// dispatch routes one inbound line through the permission table.
func (h *Handler) dispatch(sess *Session, line string) {
	fields := strings.Fields(line)
	selector := fields[0]
	args := fields[1:]

	states, recognized := allowed[selector]
	if !recognized {
		if strings.HasPrefix(selector, "/") {
			sess.reply(usageLine)
			return
		}
		h.handlePayload(sess, line)
		return
	}
	if !states[sess.state] {
		sess.reply("%s", rejection(selector, sess.state))
		return
	}

	switch selector {
	case cmdNickname:
		h.handleNickname(sess, args)
	case cmdCreate:
		h.handleCreate(sess, args)
	case cmdJoin:
		h.handleJoin(sess, args)
	case cmdList:
		h.handleList(sess)
	case cmdLeave:
		h.handleLeave(sess)
	case cmdQuit:
		sess.reply("Terminate the connection to the server.")
		sess.state = StateClosed
	}
}

func (h *Handler) handleNickname(sess *Session, args []string) {
	if len(args) == 0 || args[0] == "" {
		sess.reply("Nickname must not be empty.")
		return
	}
	sess.nickname = args[0]
	sess.state = StateLobby
	sess.reply("Nickname set: %s", sess.nickname)
	sess.logger.Info("nickname set", zap.String("nickname", sess.nickname))
}

func (h *Handler) handleCreate(sess *Session, args []string) {
	if len(args) == 0 {
		sess.reply("Usage: /create <name> [turnTime] [maxPlayers]")
		return
	}
	name := args[0]

	turnTime := h.game.DefaultTurnTime
	maxPlayers := h.game.DefaultMaxPlayers
	var err error
	if len(args) > 1 {
		if turnTime, err = strconv.Atoi(args[1]); err != nil {
			sess.reply("Invalid number format. Usage: /create <name> [turnTime] [maxPlayers]")
			return
		}
	}
	if len(args) > 2 {
		if maxPlayers, err = strconv.Atoi(args[2]); err != nil {
			sess.reply("Invalid number format. Usage: /create <name> [turnTime] [maxPlayers]")
			return
		}
	}
	if turnTime < 1 || maxPlayers < 1 {
		sess.reply("Turn time and max players must be positive integers.")
		return
	}

	_, err = h.registry.Create(name, turnTime, maxPlayers)
	switch {
	case errors.Is(err, room.ErrDuplicateRoom):
		sess.reply("Room '%s' already exists.", name)
	case errors.Is(err, room.ErrRoomLimit):
		sess.reply("Room limit reached. Try again later.")
	case err != nil:
		sess.reply("Could not create room '%s'.", name)
	default:
		// The creator is not auto-joined; joining is a separate /join.
		sess.reply("Room '%s' created.", name)
		sess.logger.Info("room created",
			zap.String("room", name),
			zap.Int("turn_time", turnTime),
			zap.Int("max_players", maxPlayers),
		)
	}
}

func (h *Handler) handleJoin(sess *Session, args []string) {
	if len(args) == 0 {
		sess.reply("Usage: /join <name>")
		return
	}
	name := args[0]

	r, err := h.registry.Join(name, sess)
	if err != nil {
		sess.reply("Room does not exist or is full.")
		return
	}

	sess.roomName = name
	sess.state = StateInRoom
	sess.reply("Joined room '%s'.", name)
	h.broadcast.NoticeJoined(r, sess)
	sess.logger.Info("joined room",
		zap.String("room", name),
		zap.Int("occupancy", r.Len()),
	)
}

func (h *Handler) handleList(sess *Session) {
	snaps := h.registry.List()
	if len(snaps) == 0 {
		sess.reply("Currently no rooms created.")
		return
	}
	sess.reply("Currently created rooms:")
	for _, snap := range snaps {
		sess.reply("- %s (Turn Time: %ds, Number of pieces: %d)",
			snap.Name, snap.TurnTime, snap.PieceCount)
	}
}

func (h *Handler) handleLeave(sess *Session) {
	name := sess.roomName
	r, ok := h.registry.Get(name)
	deleted := h.registry.Leave(name, sess)
	if ok && !deleted {
		h.broadcast.NoticeLeft(r, sess)
	}

	sess.roomName = ""
	sess.state = StateLobby
	sess.reply("Left room '%s'.", name)
	sess.logger.Info("left room",
		zap.String("room", name),
		zap.Bool("room_deleted", deleted),
	)
}

// handlePayload relays a non-command line. Inside a room, a line matching
// the move-update shape fans out to every occupant; anything else is
// chat relayed to the other occupants. The content is never validated.
func (h *Handler) handlePayload(sess *Session, line string) {
	if sess.state != StateInRoom {
		sess.reply("%s", rejection(cmdLeave, sess.state))
		return
	}

	r, ok := h.registry.Get(sess.roomName)
	if !ok {
		sess.reply("You are not in any room.")
		return
	}

	if u, err := move.Parse(line); err == nil {
		h.broadcast.MoveUpdate(r, u.Player, u.Piece, u.NewPosition)
		sess.logger.Debug("relayed move update",
			zap.String("room", r.Name()),
			zap.String("player", u.Player),
			zap.String("piece", u.Piece),
			zap.Int("new_position", u.NewPosition),
		)
		return
	}

	h.broadcast.Relay(r, sess, line)
}

// teardown leaves the current room (deleting it if emptied), notifies the
// remaining occupants, and closes the outbox. Idempotent: it can be
// reached from the quit path, a read failure, and server shutdown.
func (h *Handler) teardown(sess *Session) {
	sess.closeOnce.Do(func() {
		if name := sess.roomName; name != "" {
			r, ok := h.registry.Get(name)
			deleted := h.registry.Leave(name, sess)
			if ok && !deleted {
				h.broadcast.NoticeLeft(r, sess)
			}
			sess.roomName = ""
			sess.logger.Info("session left room",
				zap.String("room", name),
				zap.Bool("room_deleted", deleted),
			)
		}
		sess.outbox.Close()
	})
}
