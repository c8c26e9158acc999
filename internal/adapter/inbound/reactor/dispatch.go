package reactor

import (
	"github.com/privd/privd/internal/protocol"
)

// dispatch decodes one frame per c's channel and feeds it to the router,
// queuing any immediate response back onto c (§4.8 "hand each to the
// router"). A decode error is a protocol violation and closes the
// connection (§4.7, §7).
func (r *Reactor) dispatch(c *conn, payload []byte) {
	if r.metrics != nil {
		r.metrics.FramesTotal.WithLabelValues(channelName(c.ch)).Inc()
	}

	switch c.ch {
	case channelClient:
		r.dispatchClient(c, payload)
	case channelAdmin:
		r.dispatchAdmin(c, payload)
	case channelAgent:
		r.dispatchAgent(c, payload)
	}
}

func (r *Reactor) dispatchClient(c *conn, payload []byte) {
	msg, err := protocol.DecodeClientRequest(payload)
	if err != nil {
		r.logger.Warn("client protocol violation, closing connection", "err", err)
		r.dropConn(c)
		return
	}
	switch m := msg.(type) {
	case protocol.CheckReq:
		if frame := r.router.HandleCheck(r, c.id(), c.cache, m.Seq, m.Key, false); frame != nil {
			c.queue(frame)
		}
	case protocol.SimpleCheckReq:
		if frame := r.router.HandleCheck(r, c.id(), c.cache, m.Seq, m.Key, true); frame != nil {
			c.queue(frame)
		}
	case protocol.CancelReq:
		c.queue(r.router.CancelRequest(r, c.id(), m.Seq))
	case protocol.MonitorEntriesPut:
		r.router.IngestMonitorEntries(m.Entries)
	default:
		r.logger.Warn("unhandled client message", "type", m)
		r.dropConn(c)
	}
}

func (r *Reactor) dispatchAdmin(c *conn, payload []byte) {
	msg, err := protocol.DecodeAdminOrMonitorRequest(payload)
	if err != nil {
		r.logger.Warn("admin protocol violation, closing connection", "err", err)
		r.dropConn(c)
		return
	}
	switch m := msg.(type) {
	case protocol.AdminCheckReq:
		c.queue(r.router.HandleAdminCheck(m))
	case protocol.DescriptionListReq:
		c.queue(r.router.HandleDescriptionList(m))
	case protocol.EraseReq:
		frame := r.router.HandleErase(r, m)
		c.queue(frame)
		r.recordAdminWrite(frame)
	case protocol.InsertOrUpdateBucketReq:
		frame := r.router.HandleInsertOrUpdateBucket(r, m)
		c.queue(frame)
		r.recordAdminWrite(frame)
	case protocol.ListReq:
		c.queue(r.router.HandleList(m))
	case protocol.RemoveBucketReq:
		frame := r.router.HandleRemoveBucket(r, m)
		c.queue(frame)
		r.recordAdminWrite(frame)
	case protocol.SetPoliciesReq:
		frame := r.router.HandleSetPolicies(r, m)
		c.queue(frame)
		r.recordAdminWrite(frame)
	case protocol.MonitorGetEntriesReq:
		c.queue(r.router.HandleMonitorGetEntries(c.id(), m))
	case protocol.MonitorGetFlushReq:
		c.queue(r.router.HandleMonitorGetFlush(c.id(), m))
	default:
		r.logger.Warn("unhandled admin message", "type", m)
		r.dropConn(c)
	}
}

// recordAdminWrite inspects the CodeResp just queued for c and tallies it,
// so the metric reflects the actual outcome rather than just "a request was
// made".
func (r *Reactor) recordAdminWrite(frame []byte) {
	if r.metrics == nil || frame == nil {
		return
	}
	result := "error"
	if resp, err := protocol.DecodeAdminResponse(frame); err == nil {
		if cr, ok := resp.(protocol.CodeResp); ok && cr.Code == protocol.CodeResponseOK {
			result = "ok"
		}
	}
	r.metrics.AdminWritesTotal.WithLabelValues(result).Inc()
}

func (r *Reactor) dispatchAgent(c *conn, payload []byte) {
	msg, err := protocol.DecodeAgentMessage(payload)
	if err != nil {
		r.logger.Warn("agent protocol violation, closing connection", "err", err)
		r.dropConn(c)
		return
	}
	switch m := msg.(type) {
	case protocol.AgentRegisterReq:
		c.queue(r.router.RegisterAgent(c.id(), m.Seq, m.AgentType))
	case protocol.AgentActionReq:
		if m.Tag == protocol.AgentActionTagAction {
			r.router.ResolveAgentReply(r, c.id(), m.Seq, m.Payload)
		} else {
			r.logger.Warn("unexpected CANCEL tag from agent, ignoring", "conn", c.id())
		}
	default:
		r.logger.Warn("unhandled agent message", "type", m)
		r.dropConn(c)
	}
}
