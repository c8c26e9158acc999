package reactor

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/privd/privd/internal/apperr"
)

// listenBacklog bounds the kernel's pending-accept queue per listening
// socket; 64 comfortably covers a local policy daemon's client/admin/
// agent fan-in without tuning.
const listenBacklog = 64

// SocketConfig names one listening socket's filesystem path and mode (the
// reactor binds the client and agent sockets at 0666 and the admin socket
// at 0600).
type SocketConfig struct {
	Path string
	Mode os.FileMode
}

// resolveListener returns a non-blocking listening fd for cfg: an fd
// number passed by a supervising launcher via envVar ("environment-passed
// preopened fd", §4.8) if present, otherwise a freshly bound socket at
// cfg.Path.
func resolveListener(envVar string, cfg SocketConfig) (int, error) {
	if raw, ok := os.LookupEnv(envVar); ok {
		fd, err := strconv.Atoi(raw)
		if err != nil {
			return -1, apperr.Wrap(apperr.CodeInvalidCommandline, "parse "+envVar, err)
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			return -1, apperr.Wrap(apperr.CodeUnexpectedError, "set nonblocking on inherited fd "+envVar, err)
		}
		return fd, nil
	}
	return bindListener(cfg)
}

// bindListener creates, binds, chmods and listens on a fresh non-blocking
// UNIX stream socket at cfg.Path. A stale socket file from a prior,
// uncleanly terminated run is removed first so Bind doesn't fail with
// EADDRINUSE.
func bindListener(cfg SocketConfig) (int, error) {
	_ = os.Remove(cfg.Path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, apperr.Wrap(apperr.CodeUnexpectedError, "create socket for "+cfg.Path, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: cfg.Path}); err != nil {
		unix.Close(fd)
		return -1, apperr.Wrap(apperr.CodeUnexpectedError, "bind "+cfg.Path, err)
	}
	if err := os.Chmod(cfg.Path, cfg.Mode); err != nil {
		unix.Close(fd)
		return -1, apperr.Wrap(apperr.CodeUnexpectedError, "chmod "+cfg.Path, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, apperr.Wrap(apperr.CodeUnexpectedError, "listen "+cfg.Path, err)
	}
	return fd, nil
}
