package protocol

// SignalInfo mirrors a siginfo_t subset the reactor cares about: the
// signal number and the pid that sent it, when known. It never crosses a
// socket boundary (§4.7 "Signal channel... never crosses the socket
// boundary"); the reactor's signalfd-backed descriptor decodes the
// kernel's siginfo record directly into this struct and hands it to the
// router as a synthetic SignalReq.
type SignalInfo struct {
	Signal int32
	PID    int32
}

// SignalReq is the in-process message the reactor synthesizes from a
// readable signalfd (§4.8, §4.7 OpSignalReq). It is never encoded onto
// the wire; OpSignalReq exists only so the opcode space documents the
// signal channel as a first-class member of the protocol's channel
// partition (§4.7).
type SignalReq struct {
	Info SignalInfo
}
