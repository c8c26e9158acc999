// Package reactor implements the single-threaded cooperative I/O core of
// §4.8: non-blocking UNIX stream sockets for the client, admin, and agent
// channels, driven by one unix.Poll loop per process, with a signalfd
// turning SIGTERM into just another pollable descriptor. The monitor
// channel has no listener of its own — it multiplexes over the admin
// socket's opcode space (§4.7).
package reactor

import (
	"encoding/binary"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/privd/privd/internal/adapter/outbound/cache"
	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/metrics"
	"github.com/privd/privd/internal/protocol"
	"github.com/privd/privd/internal/service"
)

// Fixed socket permissions, normative per §6.
const (
	clientSocketMode = 0666
	adminSocketMode  = 0600
	agentSocketMode  = 0666
)

// readChunk bounds one unix.Read call; ExtractFrame handles reassembly
// across chunks, so this only needs to be "big enough to make progress".
const readChunk = 64 * 1024

func channelName(ch channel) string {
	switch ch {
	case channelClient:
		return "client"
	case channelAdmin:
		return "admin"
	case channelAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Config names the three listening socket paths (§6); permissions are
// fixed, not configurable (see the mode constants above).
type Config struct {
	ClientPath string
	AdminPath  string
	AgentPath  string

	// CacheCapacity sizes each client connection's DecisionCache (§4.10).
	CacheCapacity int

	// LauncherFDEnvVar names the environment variable a supervising
	// launcher uses to pass preopened listener fds (§4.8, §6).
	LauncherFDEnvVar string
}

// Reactor owns every listening socket, every open connection, and the
// signalfd, and drives them through one cooperative poll loop (§4.8).
type Reactor struct {
	router  *service.Router
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config

	listeners map[int]channel
	conns     map[int]*conn
	sigFD     int

	stopping bool
}

// New binds (or inherits) every listening socket and the signalfd, and
// returns a Reactor ready to Run.
func New(cfg Config, router *service.Router, logger *slog.Logger, m *metrics.Metrics) (*Reactor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reactor{
		router:    router,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
		listeners: make(map[int]channel),
		conns:     make(map[int]*conn),
	}

	specs := []struct {
		ch   channel
		path string
		mode os.FileMode
	}{
		{channelClient, cfg.ClientPath, clientSocketMode},
		{channelAdmin, cfg.AdminPath, adminSocketMode},
		{channelAgent, cfg.AgentPath, agentSocketMode},
	}
	for i, s := range specs {
		envVar := ""
		if cfg.LauncherFDEnvVar != "" {
			envVar = launcherEnvName(cfg.LauncherFDEnvVar, i)
		}
		fd, err := resolveListener(envVar, SocketConfig{Path: s.path, Mode: s.mode})
		if err != nil {
			r.closeAll()
			return nil, err
		}
		r.listeners[fd] = s.ch
	}

	sigFD, err := newSignalFD()
	if err != nil {
		r.closeAll()
		return nil, err
	}
	r.sigFD = sigFD

	return r, nil
}

func launcherEnvName(base string, index int) string {
	switch index {
	case 0:
		return base + "_CLIENT"
	case 1:
		return base + "_ADMIN"
	default:
		return base + "_AGENT"
	}
}

func (r *Reactor) closeAll() {
	for fd := range r.listeners {
		unix.Close(fd)
	}
	for fd := range r.conns {
		unix.Close(fd)
	}
	if r.sigFD != 0 {
		unix.Close(r.sigFD)
	}
}

// Run drives the poll loop until SIGTERM is observed or Stop is called.
// It never blocks longer than the poll primitive allows, matching §4.8's
// "the reactor never blocks longer than the select primitive allows".
func (r *Reactor) Run() error {
	defer r.closeAll()

	for !r.stopping {
		fds := r.buildPollSet()
		n, err := unix.Poll(fds, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return apperr.Wrap(apperr.CodeUnexpectedError, "poll", err)
		}
		if n == 0 {
			continue
		}
		for _, pfd := range fds {
			if pfd.Revents == 0 {
				continue
			}
			r.handleEvent(pfd)
		}
	}
	for _, c := range r.conns {
		r.drainWrites(c)
	}
	return nil
}

// Stop asks the loop to exit after the current iteration; Run then writes
// out queued frames on every connection until its socket would block, and
// closes every descriptor.
func (r *Reactor) Stop() { r.stopping = true }

func (r *Reactor) buildPollSet() []unix.PollFd {
	fds := make([]unix.PollFd, 0, len(r.listeners)+len(r.conns)+1)
	for fd := range r.listeners {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	fds = append(fds, unix.PollFd{Fd: int32(r.sigFD), Events: unix.POLLIN})
	for fd, c := range r.conns {
		events := int16(unix.POLLIN)
		if c.hasPendingWrites() {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
	}
	return fds
}

func (r *Reactor) handleEvent(pfd unix.PollFd) {
	fd := int(pfd.Fd)

	if fd == r.sigFD {
		r.handleSignal()
		return
	}
	if ch, ok := r.listeners[fd]; ok {
		r.acceptOn(fd, ch)
		return
	}
	c, ok := r.conns[fd]
	if !ok {
		return
	}
	if pfd.Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
		r.dropConn(c)
		return
	}
	if pfd.Revents&unix.POLLOUT != 0 {
		r.drainWrites(c)
	}
	if pfd.Revents&unix.POLLIN != 0 {
		r.readFrom(c)
	}
}

func (r *Reactor) acceptOn(listenerFD int, ch channel) {
	for {
		fd, _, err := unix.Accept4(listenerFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			return // EAGAIN: no more pending connections this iteration
		}
		c := &conn{fd: fd, ch: ch}
		if ch == channelClient {
			c.cache = cache.New(r.cfg.CacheCapacity)
		}
		r.conns[fd] = c
		if r.metrics != nil {
			r.metrics.ConnectionsActive.WithLabelValues(channelName(ch)).Inc()
		}
	}
}

func (r *Reactor) drainWrites(c *conn) {
	for c.hasPendingWrites() {
		frame := c.writeQ[0]
		n, err := unix.Write(c.fd, frame[c.writeOff:])
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			r.dropConn(c)
			return
		}
		c.writeOff += n
		if c.writeOff >= len(frame) {
			c.writeQ = c.writeQ[1:]
			c.writeOff = 0
		}
	}
}

func (r *Reactor) readFrom(c *conn) {
	buf := make([]byte, readChunk)
	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			c.readBuf = append(c.readBuf, buf[:n]...)
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			r.dropConn(c)
			return
		}
		if n == 0 {
			r.dropConn(c)
			return
		}
		if n < len(buf) {
			break // short read: socket drained for this iteration
		}
	}

	for {
		payload, consumed, ok, err := protocol.ExtractFrame(c.readBuf)
		if err != nil {
			r.logger.Warn("frame decode error, closing connection", "err", err)
			r.dropConn(c)
			return
		}
		if !ok {
			break
		}
		r.dispatch(c, payload)
		c.readBuf = c.readBuf[consumed:]
	}
}

func (r *Reactor) send(id service.ConnID, frame []byte) error {
	c, ok := r.conns[int(id)]
	if !ok {
		return apperr.New(apperr.CodeServiceNotAvailable, "connection no longer open")
	}
	c.queue(frame)
	return nil
}

// Send implements service.Dispatcher.
func (r *Reactor) Send(id service.ConnID, frame []byte) error { return r.send(id, frame) }

// DropCheckers implements service.Dispatcher: every client-channel
// connection is closed, which is this reactor's cache-invalidation
// mechanism (§2, §4.10 — the cache lives on the connection being
// dropped).
func (r *Reactor) DropCheckers() {
	for _, c := range r.conns {
		if c.isChecker() {
			r.dropConn(c)
		}
	}
}

func (r *Reactor) dropConn(c *conn) {
	delete(r.conns, c.fd)
	unix.Close(c.fd)
	if r.metrics != nil {
		r.metrics.ConnectionsActive.WithLabelValues(channelName(c.ch)).Dec()
	}

	switch c.ch {
	case channelClient:
		r.router.DropClientConn(r, c.id())
	case channelAgent:
		r.router.DropAgentConn(r, c.id())
	case channelAdmin:
		r.router.DropMonitorSubscriber(c.id())
	}
}

// signalfdSiginfoLen is sizeof(struct signalfd_siginfo) on Linux; the
// fields this reactor cares about (ssi_signo, ssi_pid) sit at fixed
// offsets within it regardless of the trailing padding.
const signalfdSiginfoLen = 128

func (r *Reactor) handleSignal() {
	buf := make([]byte, signalfdSiginfoLen)
	n, err := unix.Read(r.sigFD, buf)
	if err != nil || n < 16 {
		return
	}
	signo := binary.LittleEndian.Uint32(buf[0:4])
	pid := binary.LittleEndian.Uint32(buf[12:16])
	info := protocol.SignalInfo{Signal: int32(signo), PID: int32(pid)}
	if r.router.HandleSignal(info) {
		r.Stop()
	}
}
