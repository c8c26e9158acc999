package privdclient

import (
	"net"
	"syscall"
)

// connFD extracts the raw file descriptor behind conn for the status
// callback (§4.13: "a status callback fires with the new fd on (re)connect"),
// so a caller embedding the client in its own reactor can add it to their
// own poll set. It returns -1 if conn doesn't expose one.
func connFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	if err := raw.Control(func(fdv uintptr) { fd = int(fdv) }); err != nil {
		return -1
	}
	return fd
}
