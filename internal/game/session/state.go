package session

// State is the protocol state of one session. Transitions:
// StateUnnamed → StateLobby (nickname set), StateLobby ↔ StateInRoom
// (join/leave), any → StateClosed (quit, error, shutdown).
type State int

const (
	// StateUnnamed is the initial state; only /nickname and /quit are legal.
	StateUnnamed State = iota
	// StateLobby is named but not in a room.
	StateLobby
	// StateInRoom is named and joined to a room.
	StateInRoom
	// StateClosed is terminal; the connection is being torn down.
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUnnamed:
		return "unnamed"
	case StateLobby:
		return "lobby"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Command selectors. Selectors are case-sensitive and must be the first
// whitespace-separated token on the line.
const (
	cmdNickname = "/nickname"
	cmdCreate   = "/create"
	cmdJoin     = "/join"
	cmdList     = "/list"
	cmdLeave    = "/leave"
	cmdQuit     = "/quit"
)

// usageLine is the fixed help response for unrecognized selectors.
const usageLine = "Unknown command. Usage: /nickname <name> | /create <name> [turnTime] [maxPlayers] | /join <name> | /list | /leave | /quit"

// allowed is the command permission table: which selectors are legal in
// which states. Selectors absent for a state are rejected uniformly by
// rejection() instead of ad hoc per-command checks.
var allowed = map[string]map[State]bool{
	cmdNickname: {StateUnnamed: true},
	cmdCreate:   {StateLobby: true},
	cmdJoin:     {StateLobby: true},
	cmdList:     {StateLobby: true, StateInRoom: true},
	cmdLeave:    {StateInRoom: true},
	cmdQuit:     {StateUnnamed: true, StateLobby: true, StateInRoom: true},
}

// rejection returns the response for a recognized selector used in a state
// where it is not legal.
func rejection(cmd string, s State) string {
	if s == StateUnnamed {
		return "Set a nickname first with /nickname <name>."
	}
	switch cmd {
	case cmdNickname:
		return "Nickname already set."
	case cmdCreate, cmdJoin:
		return "You are already in a room. Leave the current room first with /leave."
	case cmdLeave:
		return "You are not in any room."
	default:
		return usageLine
	}
}
