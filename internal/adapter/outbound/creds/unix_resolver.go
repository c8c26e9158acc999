package creds

import (
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/privd/privd/internal/apperr"
)

// UnixResolver resolves peers connected over a local UNIX stream socket
// using SO_PEERCRED (pid/uid/gid) and SO_PEERSEC (SMACK/SELinux label),
// mirroring cynara-creds-socket's use of getsockopt on the accepted fd.
type UnixResolver struct{}

func (UnixResolver) Client(p Peer, method ClientMethod) (string, error) {
	switch method {
	case ClientMethodPID:
		ucred, err := unix.GetsockoptUcred(p.UnixFD, unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			return "", apperr.Wrap(apperr.CodeUnexpectedError, "SO_PEERCRED", err)
		}
		return strconv.Itoa(int(ucred.Pid)), nil
	case ClientMethodSmackLabel:
		label, err := unix.GetsockoptString(p.UnixFD, unix.SOL_SOCKET, unix.SO_PEERSEC)
		if err != nil {
			return "", apperr.Wrap(apperr.CodeUnexpectedError, "SO_PEERSEC", err)
		}
		return label, nil
	default:
		return "", apperr.New(apperr.CodeMethodNotSupported, method.String())
	}
}

func (UnixResolver) User(p Peer, method UserMethod) (string, error) {
	ucred, err := unix.GetsockoptUcred(p.UnixFD, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUnexpectedError, "SO_PEERCRED", err)
	}
	switch method {
	case UserMethodUID:
		return strconv.Itoa(int(ucred.Uid)), nil
	case UserMethodGID:
		return strconv.Itoa(int(ucred.Gid)), nil
	default:
		return "", apperr.New(apperr.CodeMethodNotSupported, method.String())
	}
}
