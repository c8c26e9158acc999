package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/privd/privd/internal/protocol"
)

// adminClient is a one-shot, synchronous admin-socket client: every
// privadm subcommand opens a connection, sends exactly one request frame,
// reads exactly one response frame, and closes. The daemon's reactor
// correlates by Seq, but a single-request connection never needs more
// than a fixed seq of 1.
type adminClient struct {
	conn net.Conn
}

const adminDialTimeout = 5 * time.Second
const adminReadTimeout = 10 * time.Second

func dialAdmin(path string) (*adminClient, error) {
	conn, err := net.DialTimeout("unix", path, adminDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to admin socket %s: %w", path, err)
	}
	return &adminClient{conn: conn}, nil
}

func (c *adminClient) Close() error { return c.conn.Close() }

// Call sends req's encoded frame and returns the single response frame's
// decoded message.
func (c *adminClient) Call(req interface{ Encode() []byte }) (any, error) {
	if err := protocol.WriteFrame(c.conn, req.Encode()); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(adminReadTimeout))
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		if payload, _, ok, err := protocol.ExtractFrame(buf); err != nil {
			return nil, fmt.Errorf("decode response frame: %w", err)
		} else if ok {
			return protocol.DecodeAdminResponse(payload)
		}
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
	}
}
