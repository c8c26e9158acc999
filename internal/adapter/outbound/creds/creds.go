// Package creds resolves a connected peer into the (client, user) strings
// a policy query needs (§4.12), pluggable by transport (UNIX peer
// credentials today; a bus-style resolver can be registered for a
// future transport without touching the call sites).
package creds

import (
	"fmt"

	"github.com/privd/privd/internal/apperr"
)

// ClientMethod selects how the client identity is derived from a peer.
type ClientMethod int

const (
	ClientMethodPID ClientMethod = iota
	ClientMethodSmackLabel
)

// UserMethod selects how the user identity is derived from a peer.
type UserMethod int

const (
	UserMethodUID UserMethod = iota
	UserMethodGID
)

func (m ClientMethod) String() string {
	switch m {
	case ClientMethodPID:
		return "pid"
	case ClientMethodSmackLabel:
		return "smack-label"
	default:
		return fmt.Sprintf("ClientMethod(%d)", int(m))
	}
}

func (m UserMethod) String() string {
	switch m {
	case UserMethodUID:
		return "uid"
	case UserMethodGID:
		return "gid"
	default:
		return fmt.Sprintf("UserMethod(%d)", int(m))
	}
}

// ParseClientMethod parses the textual form used by creds.conf and the
// admin CLI.
func ParseClientMethod(s string) (ClientMethod, error) {
	switch s {
	case "pid":
		return ClientMethodPID, nil
	case "smack-label":
		return ClientMethodSmackLabel, nil
	default:
		return 0, apperr.New(apperr.CodeInvalidParam, "unknown client method: "+s)
	}
}

// ParseUserMethod parses the textual form used by creds.conf and the
// admin CLI.
func ParseUserMethod(s string) (UserMethod, error) {
	switch s {
	case "uid":
		return UserMethodUID, nil
	case "gid":
		return UserMethodGID, nil
	default:
		return 0, apperr.New(apperr.CodeInvalidParam, "unknown user method: "+s)
	}
}

// Peer identifies one endpoint a resolver can query: a UNIX domain
// socket peer (resolved via SO_PEERCRED/SO_PEERSEC) or a bus-style peer
// (resolved via an out-of-band metadata call).
type Peer struct {
	// UnixFD is the connected socket's file descriptor, for UNIX peers.
	UnixFD int
	// BusUniqueName is the bus-assigned peer identifier, for bus peers.
	BusUniqueName string
}

// Resolver produces (client, user) identity strings for a Peer given the
// configured methods (§4.12).
type Resolver interface {
	Client(p Peer, method ClientMethod) (string, error)
	User(p Peer, method UserMethod) (string, error)
}

// Defaults are the system-wide default methods read once at startup from
// creds.conf (§4.12).
type Defaults struct {
	ClientDefault ClientMethod
	UserDefault   UserMethod
}
