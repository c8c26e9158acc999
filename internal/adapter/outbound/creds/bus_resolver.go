package creds

import (
	"strconv"

	"github.com/privd/privd/internal/apperr"
)

// BusPeerInfo is what a bus implementation's peer-metadata RPC returns for
// a unique name.
type BusPeerInfo struct {
	PID        uint32
	SmackLabel string
}

// BusLookup is supplied by a concrete bus transport (none is wired in this
// tree; the daemon only listens on UNIX sockets, §6) to resolve a unique
// name's metadata.
type BusLookup func(uniqueName string) (BusPeerInfo, error)

// BusResolver resolves bus-style peers via a pluggable metadata lookup,
// satisfying the Resolver interface for a transport that isn't UNIX
// sockets (§4.12: "DBus-like peer: method via the bus peer-metadata RPC").
type BusResolver struct {
	Lookup BusLookup
}

func (r BusResolver) Client(p Peer, method ClientMethod) (string, error) {
	info, err := r.Lookup(p.BusUniqueName)
	if err != nil {
		return "", err
	}
	switch method {
	case ClientMethodPID:
		return strconv.Itoa(int(info.PID)), nil
	case ClientMethodSmackLabel:
		return info.SmackLabel, nil
	default:
		return "", apperr.New(apperr.CodeMethodNotSupported, method.String())
	}
}

func (r BusResolver) User(p Peer, method UserMethod) (string, error) {
	// The bus peer-metadata RPC this daemon integrates with exposes PID and
	// SMACK label only; uid/gid resolution over a bus peer is not
	// supported (§4.12 lists uid/gid as UNIX-peer-only methods).
	return "", apperr.New(apperr.CodeMethodNotSupported, method.String())
}
