package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/privd/privd/internal/apperr"
)

// newSignalFD blocks SIGTERM's default delivery on the calling thread and
// returns a signalfd that becomes readable once it arrives, turning
// SIGTERM into just another pollable descriptor in the reactor's loop
// (§4.8) rather than an asynchronous interrupt the loop would otherwise
// have to special-case.
func newSignalFD() (int, error) {
	var set unix.Sigset_t
	addSignal(&set, unix.SIGTERM)

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return -1, apperr.Wrap(apperr.CodeUnexpectedError, "block SIGTERM", err)
	}
	fd, err := unix.Signalfd(-1, &set, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return -1, apperr.Wrap(apperr.CodeUnexpectedError, "signalfd", err)
	}
	return fd, nil
}

// addSignal sets sig's bit in set's bitmap. golang.org/x/sys/unix exposes
// no sigaddset helper; Sigset_t.Val mirrors the kernel's raw sigset_t
// layout, one bit per signal number, indexed from zero.
func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	bit := uint(sig) - 1
	set.Val[bit/64] |= 1 << (bit % 64)
}
