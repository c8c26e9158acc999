package reactor

import (
	"github.com/privd/privd/internal/adapter/outbound/cache"
	"github.com/privd/privd/internal/protocol"
	"github.com/privd/privd/internal/service"
)

// channel identifies which of the three listening sockets a connection
// was accepted on (§4.8; the monitor channel multiplexes over admin, so
// it has no channel of its own here).
type channel int

const (
	channelClient channel = iota
	channelAdmin
	channelAgent
)

// conn is everything the reactor owns per connection (§4.8): a read
// buffer, a FIFO write queue of already-encoded frames, which channel it
// speaks, and — for client connections only — the per-connection
// DecisionCache (§4.10) HandleCheck consults.
type conn struct {
	fd      int
	ch      channel
	readBuf []byte

	writeQ   [][]byte
	writeOff int

	cache *cache.Cache
}

// id is the ConnID the service layer uses to name this connection; the
// fd itself is a fine identifier since it is unique among live
// connections within one reactor process.
func (c *conn) id() service.ConnID { return service.ConnID(c.fd) }

// isChecker reports whether this connection is subject to mass-disconnect
// on policy change (§2): only client-channel connections consult the
// decision cache an admin mutation must invalidate.
func (c *conn) isChecker() bool { return c.ch == channelClient }

// queue appends payload, one channel message's encoded opcode+fields, to
// c's write queue with its u32 length prefix attached (§4.7): every
// Encode() method returns only the payload, matching protocol.Reader's
// expectations on the read side, so the frame header is added once here
// rather than duplicated in every call site.
func (c *conn) queue(payload []byte) {
	if payload == nil {
		return
	}
	frame := make([]byte, protocol.FrameHeaderLen+len(payload))
	protocol.PutFrameHeader(frame, payload)
	c.writeQ = append(c.writeQ, frame)
}

func (c *conn) hasPendingWrites() bool { return len(c.writeQ) > 0 }
