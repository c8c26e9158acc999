// Package service implements the daemon-side request dispatch (§4.9): the
// RequestRouter ties the pure evaluator to the stateful plugin registry,
// decision cache, monitor hub, persistence layer, and agent connections,
// and owns the PendingRequests state machine for in-flight agent
// round-trips.
package service

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/privd/privd/internal/adapter/outbound/cache"
	"github.com/privd/privd/internal/adapter/outbound/storage"
	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/evaluator"
	"github.com/privd/privd/internal/domain/monitor"
	"github.com/privd/privd/internal/domain/plugin"
	"github.com/privd/privd/internal/domain/policy"
	"github.com/privd/privd/internal/metrics"
	"github.com/privd/privd/internal/protocol"
)

// Dispatcher lets the router act on connections it does not itself own:
// deliver a frame to a connection other than the one that is currently
// being handled (an agent query, or a resumed client answer), and drop
// every checker connection after a successful admin mutation (§2: "causes
// ... all checker connections to be dropped"). The inbound reactor
// implements this.
type Dispatcher interface {
	Send(conn ConnID, frame []byte) error
	DropCheckers()
}

// Router dispatches decoded protocol messages against the domain layer.
// It is driven exclusively by the single-threaded reactor loop and is not
// safe for concurrent use, matching the Store it wraps (§5).
type Router struct {
	logger  *slog.Logger
	store   *policy.Store
	eval    *evaluator.Evaluator
	plugins *plugin.Registry
	storage *storage.Layer
	hub     *monitor.Hub
	agents  *AgentRegistry
	pending *PendingTable
	metrics *metrics.Metrics

	dbCorrupted       bool
	monitorSubscribed map[ConnID]bool
}

// NewRouter wires a Router over already-constructed domain components. m
// may be nil, in which case no metrics are recorded (matching the
// reactor's own nil-metrics convention).
func NewRouter(logger *slog.Logger, store *policy.Store, eval *evaluator.Evaluator, plugins *plugin.Registry, layer *storage.Layer, hub *monitor.Hub, agents *AgentRegistry, pending *PendingTable, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:  logger,
		store:   store,
		eval:    eval,
		plugins: plugins,
		storage: layer,
		hub:     hub,
		agents:  agents,
		pending: pending,
		metrics: m,

		monitorSubscribed: make(map[ConnID]bool),
	}
}

// MarkDatabaseCorrupted latches the daemon into the degraded mode §7
// describes: every admin write fails with DatabaseCorrupted and every
// check answers DENY, until the process is restarted against a sound
// database.
func (r *Router) MarkDatabaseCorrupted() {
	r.dbCorrupted = true
}

// DatabaseCorrupted reports the latch's current state.
func (r *Router) DatabaseCorrupted() bool {
	return r.dbCorrupted
}

func now() (sec, nsec int64) {
	t := time.Now()
	return t.Unix(), int64(t.Nanosecond())
}

func (r *Router) audit(key policy.Key, result policy.Result) {
	if result.Type != policy.Deny && result.Type != policy.Allow {
		return
	}
	sec, nsec := now()
	traceID := uuid.NewString()
	r.hub.Append(monitor.Entry{Key: key, Decision: result.Type, Sec: sec, Nsec: nsec, TraceID: traceID})
	r.logger.Debug("decision recorded", "trace_id", traceID, "client", key.Client, "user", key.User, "privilege", key.Privilege, "decision", result.Type)
	if r.metrics != nil {
		r.metrics.MonitorAppends.Inc()
	}
}

func (r *Router) recordCacheOutcome(status cache.Status) {
	if r.metrics == nil {
		return
	}
	var outcome string
	switch status {
	case cache.Hit:
		outcome = "hit"
	case cache.Stale:
		outcome = "stale"
	default:
		outcome = "miss"
	}
	r.metrics.CacheTotal.WithLabelValues(outcome).Inc()
}

func (r *Router) recordCheckOutcome(decision string) {
	if r.metrics != nil {
		r.metrics.ChecksTotal.WithLabelValues(strings.ToLower(decision)).Inc()
	}
}

// HandleCheck answers a CheckReq/SimpleCheckReq on a client connection.
// conn's decision cache is consulted first; a miss falls through to the
// evaluator, which may suspend the check on an agent round-trip. A
// non-simple suspend returns nil: the eventual answer is delivered later,
// out of band, via ResolveAgentReply. A simple suspend instead answers
// immediately with a negative ReturnVal (§4.3 SimpleCheckResp).
func (r *Router) HandleCheck(d Dispatcher, conn ConnID, connCache *cache.Cache, seq uint16, key policy.Key, simple bool) []byte {
	if err := key.ValidateQuery(); err != nil {
		return r.checkResp(seq, policy.ResultDeny, simple, 0)
	}
	if r.dbCorrupted {
		return r.checkResp(seq, policy.ResultDeny, simple, 0)
	}

	session := strconv.FormatUint(uint64(conn), 10)
	result, status := connCache.Get(session, key, r.plugins)
	r.recordCacheOutcome(status)
	if status == cache.Hit {
		r.audit(key, result)
		r.recordCheckOutcome(result.Type.String())
		return r.checkResp(seq, result, simple, 0)
	}

	outcome, err := r.eval.Check(policy.RootBucketID, true, key)
	if err != nil {
		r.logger.Warn("check evaluation failed, degrading to deny", "err", err)
		r.recordCheckOutcome("deny")
		return r.checkResp(seq, policy.ResultDeny, simple, 0)
	}
	if outcome.Decided {
		r.recordCheckOutcome(outcome.Result.Type.String())
		connCache.Put(session, key, outcome.Result, r.plugins)
		r.audit(key, outcome.Result)
		return r.checkResp(seq, outcome.Result, simple, 0)
	}

	// outcome.Suspend != nil: the check needs an agent round-trip.
	r.recordCheckOutcome("suspended")
	if simple {
		return r.checkResp(seq, policy.ResultDeny, true, -1)
	}
	return r.suspend(d, conn, seq, key, *outcome.Suspend)
}

func (r *Router) checkResp(seq uint16, result policy.Result, simple bool, returnVal int32) []byte {
	if simple {
		return protocol.SimpleCheckResp{Seq: seq, ReturnVal: returnVal, Result: result}.Encode()
	}
	return protocol.CheckResp{Seq: seq, Result: result}.Encode()
}

func (r *Router) suspend(d Dispatcher, conn ConnID, seq uint16, key policy.Key, s evaluator.Suspend) []byte {
	agentConn, ok := r.agents.ConnFor(s.AgentType)
	if !ok {
		r.logger.Warn("no agent registered, degrading to deny", "agent_type", s.AgentType)
		return r.checkResp(seq, policy.ResultDeny, false, 0)
	}
	agentSeq, err := r.agents.AcquireSeq(agentConn)
	if err != nil {
		r.logger.Warn("agent sequence pool exhausted, degrading to deny", "agent_type", s.AgentType)
		return r.checkResp(seq, policy.ResultDeny, false, 0)
	}
	pr := &PendingRequest{
		ClientConn: conn, ClientSeq: seq,
		Key: key, PluginType: s.PolicyType,
		AgentConn: agentConn, AgentSeq: agentSeq,
	}
	if err := r.pending.Add(pr); err != nil {
		r.agents.ReleaseSeq(agentConn, agentSeq)
		r.logger.Warn("pending table full, degrading to deny", "err", err)
		return r.checkResp(seq, policy.ResultDeny, false, 0)
	}
	frame := protocol.AgentActionReq{Seq: agentSeq, Tag: protocol.AgentActionTagAction, Payload: s.Payload}.Encode()
	if err := d.Send(agentConn, frame); err != nil {
		r.pending.Remove(pr)
		r.agents.ReleaseSeq(agentConn, agentSeq)
		r.logger.Warn("failed to reach agent, degrading to deny", "err", err)
		return r.checkResp(seq, policy.ResultDeny, false, 0)
	}
	return nil
}

// ResolveAgentReply finishes a suspended check once its agent answers
// with Tag ACTION (§4.9). It is a no-op, beyond bookkeeping, if the
// request was already cancelled client-side.
func (r *Router) ResolveAgentReply(d Dispatcher, agentConn ConnID, agentSeq uint16, payload string) {
	pr, ok := r.pending.LookupByAgent(agentConn, agentSeq)
	if !ok {
		r.logger.Warn("agent reply for unknown or already-resolved request", "agent_conn", agentConn, "seq", agentSeq)
		return
	}
	r.pending.Remove(pr)
	r.agents.ReleaseSeq(agentConn, agentSeq)
	if pr.Cancelled {
		return
	}

	result := policy.ResultDeny
	outcome, err := r.eval.Resume(pr.Key, pr.PluginType, payload)
	if err == nil && outcome.Decided {
		result = outcome.Result
	} else if err != nil {
		r.logger.Warn("agent resume failed, degrading to deny", "err", err)
	}
	r.audit(pr.Key, result)
	frame := protocol.CheckResp{Seq: pr.ClientSeq, Result: result}.Encode()
	if err := d.Send(pr.ClientConn, frame); err != nil {
		r.logger.Warn("failed to deliver resumed check", "conn", pr.ClientConn, "err", err)
	}
}

// CancelRequest answers a CancelReq (§4.9): the client's visible life of
// the request ends immediately with a CancelResp, while a CANCEL frame is
// forwarded to the agent side so it can abandon the outstanding query.
// Acking an already-unknown or already-settled seq is not an error: the
// answer may have crossed the cancel on the wire.
func (r *Router) CancelRequest(d Dispatcher, conn ConnID, seq uint16) []byte {
	if pr, ok := r.pending.LookupByClient(conn, seq); ok {
		pr.Cancelled = true
		r.pending.ForgetClient(pr)
		cancelFrame := protocol.AgentActionReq{Seq: pr.AgentSeq, Tag: protocol.AgentActionTagCancel}.Encode()
		if err := d.Send(pr.AgentConn, cancelFrame); err != nil {
			r.logger.Warn("failed to deliver cancel to agent", "err", err)
		}
	}
	return protocol.CancelResp{Seq: seq}.Encode()
}

// DropClientConn releases every request a disconnecting client connection
// was awaiting an answer on, telling each request's agent to abandon it.
func (r *Router) DropClientConn(d Dispatcher, conn ConnID) {
	for _, pr := range r.pending.DropClient(conn) {
		r.agents.ReleaseSeq(pr.AgentConn, pr.AgentSeq)
		cancelFrame := protocol.AgentActionReq{Seq: pr.AgentSeq, Tag: protocol.AgentActionTagCancel}.Encode()
		if err := d.Send(pr.AgentConn, cancelFrame); err != nil {
			r.logger.Warn("failed to deliver cancel to agent on client disconnect", "err", err)
		}
	}
}

// DropAgentConn resolves every request a disconnecting agent connection
// still owed an answer as DENY (§4.9: "if the agent disconnects while a
// request is awaiting-agent, the router resolves the request as DENY"),
// and frees the agent-type registration so another agent can claim it.
func (r *Router) DropAgentConn(d Dispatcher, conn ConnID) {
	for _, pr := range r.pending.DropAgent(conn) {
		if pr.Cancelled {
			continue
		}
		r.audit(pr.Key, policy.ResultDeny)
		frame := protocol.CheckResp{Seq: pr.ClientSeq, Result: policy.ResultDeny}.Encode()
		if err := d.Send(pr.ClientConn, frame); err != nil {
			r.logger.Warn("failed to deliver agent-disconnect deny", "conn", pr.ClientConn, "err", err)
		}
	}
	r.agents.Drop(conn)
}

// RegisterAgent claims an agent-type for conn and answers the register
// request.
func (r *Router) RegisterAgent(conn ConnID, seq uint16, agentType string) []byte {
	err := r.agents.Register(conn, agentType)
	return protocol.AgentRegisterResp{Seq: seq, Success: err == nil}.Encode()
}

// persist saves the store and, on success, invalidates every plugin
// generation and drops every checker connection, matching the mutation
// contract of §2: "every mutation ... is persisted ... and causes [the
// cache] to be invalidated and all checker connections to be dropped." On
// failure the database-corrupted latch engages (§7).
func (r *Router) persist(d Dispatcher) error {
	if err := r.storage.Save(r.store); err != nil {
		r.dbCorrupted = true
		return err
	}
	r.plugins.InvalidateAll()
	d.DropCheckers()
	return nil
}

func (r *Router) codeResp(seq uint16, err error) []byte {
	if err != nil {
		return protocol.CodeResp{Seq: seq, Code: protocol.CodeResponseError, Message: err.Error()}.Encode()
	}
	return protocol.CodeResp{Seq: seq, Code: protocol.CodeResponseOK}.Encode()
}

func (r *Router) corruptedOrNil() error {
	if r.dbCorrupted {
		return apperr.New(apperr.CodeDatabaseCorrupted, "database is corrupted; restart required")
	}
	return nil
}

// HandleAdminCheck answers an AdminCheckReq (§4.3 admin-check variant).
func (r *Router) HandleAdminCheck(req protocol.AdminCheckReq) []byte {
	out, err := r.eval.AdminCheck(req.StartBucket, req.Recursive, req.Key, r.dbCorrupted)
	if err != nil && apperr.CodeOf(err) != apperr.CodeBucketNotExists {
		r.logger.Warn("admin check failed", "err", err)
	}
	return protocol.AdminCheckResp{Seq: req.Seq, Result: out.Result, BucketValid: out.BucketValid, DBCorrupted: out.DBCorrupted}.Encode()
}

// HandleDescriptionList answers a DescriptionListReq (§4.5).
func (r *Router) HandleDescriptionList(req protocol.DescriptionListReq) []byte {
	descs := r.plugins.ListDescriptions()
	out := make([]protocol.DescriptionWire, 0, len(descs))
	for _, d := range descs {
		out = append(out, protocol.DescriptionWire{Type: d.Type, Name: d.Name})
	}
	return protocol.DescriptionListResp{Seq: req.Seq, Descriptions: out}.Encode()
}

// HandleList answers a ListReq (§4.1 list/filter).
func (r *Router) HandleList(req protocol.ListReq) []byte {
	b, ok := r.store.Bucket(req.StartBucket)
	if !ok {
		return r.codeResp(req.Seq, apperr.New(apperr.CodeBucketNotExists, req.StartBucket))
	}
	matched := b.List(req.Filter)
	out := make([]protocol.PolicyWire, 0, len(matched))
	for _, p := range matched {
		out = append(out, protocol.PolicyWire{Key: p.Key, Result: p.Result})
	}
	return protocol.ListResp{Seq: req.Seq, Policies: out}.Encode()
}

// HandleInsertOrUpdateBucket answers an InsertOrUpdateBucketReq (§4.2
// create_bucket/update_bucket_default, unified).
func (r *Router) HandleInsertOrUpdateBucket(d Dispatcher, req protocol.InsertOrUpdateBucketReq) []byte {
	if err := r.corruptedOrNil(); err != nil {
		return r.codeResp(req.Seq, err)
	}
	var err error
	if r.store.HasBucket(req.BucketID) {
		err = r.store.UpdateBucketDefault(req.BucketID, req.Default)
	} else {
		err = r.store.CreateBucket(req.BucketID, req.Default)
	}
	if err != nil {
		return r.codeResp(req.Seq, err)
	}
	return r.codeResp(req.Seq, r.persist(d))
}

// HandleRemoveBucket answers a RemoveBucketReq (§4.2 delete_bucket).
func (r *Router) HandleRemoveBucket(d Dispatcher, req protocol.RemoveBucketReq) []byte {
	if err := r.corruptedOrNil(); err != nil {
		return r.codeResp(req.Seq, err)
	}
	if err := r.store.DeleteBucket(req.BucketID); err != nil {
		return r.codeResp(req.Seq, err)
	}
	return r.codeResp(req.Seq, r.persist(d))
}

// HandleErase answers an EraseReq (§4.2 erase).
func (r *Router) HandleErase(d Dispatcher, req protocol.EraseReq) []byte {
	if err := r.corruptedOrNil(); err != nil {
		return r.codeResp(req.Seq, err)
	}
	if _, err := r.store.Erase(req.StartBucket, req.Recursive, req.Filter); err != nil {
		return r.codeResp(req.Seq, err)
	}
	return r.codeResp(req.Seq, r.persist(d))
}

// HandleSetPolicies answers a SetPoliciesReq, applying every insertion
// and deletion as one atomic batch (§4.2: "either every edit applies ...
// or none do").
func (r *Router) HandleSetPolicies(d Dispatcher, req protocol.SetPoliciesReq) []byte {
	if err := r.corruptedOrNil(); err != nil {
		return r.codeResp(req.Seq, err)
	}

	inserts := make([]policy.PolicyEdit, 0, len(req.Inserts))
	for _, e := range req.Inserts {
		policies := make([]policy.Policy, 0, len(e.Policies))
		for _, p := range e.Policies {
			policies = append(policies, policy.Policy{Key: p.Key, Result: p.Result})
		}
		inserts = append(inserts, policy.PolicyEdit{BucketID: e.BucketID, Policies: policies})
	}
	deletes := make([]policy.KeyEdit, 0, len(req.Deletes))
	for _, e := range req.Deletes {
		deletes = append(deletes, policy.KeyEdit{BucketID: e.BucketID, Keys: e.Keys})
	}

	for _, e := range deletes {
		if !r.store.HasBucket(e.BucketID) {
			return r.codeResp(req.Seq, apperr.New(apperr.CodeBucketNotExists, e.BucketID))
		}
	}
	if err := r.store.InsertPolicies(inserts); err != nil {
		return r.codeResp(req.Seq, err)
	}
	if err := r.store.DeletePolicies(deletes); err != nil {
		return r.codeResp(req.Seq, err)
	}
	return r.codeResp(req.Seq, r.persist(d))
}

// monitorSubscriberID turns a connection id into the MonitorHub's string
// subscriber key; one admin connection holds at most one monitor
// subscription for its lifetime.
func monitorSubscriberID(conn ConnID) string {
	return "conn-" + strconv.FormatUint(uint64(conn), 10)
}

// HandleMonitorGetEntries answers a MonitorGetEntriesReq (§4.11 fetch),
// subscribing conn lazily on its first call.
func (r *Router) HandleMonitorGetEntries(conn ConnID, req protocol.MonitorGetEntriesReq) []byte {
	id := monitorSubscriberID(conn)
	if !r.monitorSubscribed[conn] {
		r.hub.Subscribe(id, int(req.BufferSize))
		r.monitorSubscribed[conn] = true
	}
	entries, _ := r.hub.Fetch(id, req.Force)
	return protocol.MonitorGetEntriesResp{Seq: req.Seq, Entries: toWireEntries(entries)}.Encode()
}

// HandleMonitorGetFlush answers a MonitorGetFlushReq (§4.11 flush): fetch
// everything accumulated, then unsubscribe.
func (r *Router) HandleMonitorGetFlush(conn ConnID, req protocol.MonitorGetFlushReq) []byte {
	id := monitorSubscriberID(conn)
	entries, _ := r.hub.Flush(id)
	delete(r.monitorSubscribed, conn)
	return protocol.MonitorGetEntriesResp{Seq: req.Seq, Entries: toWireEntries(entries)}.Encode()
}

// DropMonitorSubscriber unsubscribes conn from the monitor hub on
// disconnect, if it ever subscribed.
func (r *Router) DropMonitorSubscriber(conn ConnID) {
	if r.monitorSubscribed[conn] {
		r.hub.Unsubscribe(monitorSubscriberID(conn))
		delete(r.monitorSubscribed, conn)
	}
}

// IngestMonitorEntries folds externally pre-decided entries into the
// monitor ring (§4.7 MonitorEntriesPut: "lets a checker push pre-recorded
// entries ... used by the async client library when it resolves requests
// from its own cache without round-tripping the daemon"). There is
// nothing to answer; the client channel defines no response opcode for
// this message.
func (r *Router) IngestMonitorEntries(entries []protocol.MonitorEntryWire) {
	for _, e := range entries {
		r.hub.Append(monitor.Entry{Key: e.Key, Decision: e.Type, Sec: e.Sec, Nsec: e.Nsec})
	}
}

// sigterm is the numeric SIGTERM signal, duplicated here rather than
// imported from golang.org/x/sys/unix so the service layer stays free of
// a raw-syscall dependency that belongs to the reactor (§4.8) alone.
const sigterm = 15

// HandleSignal processes the synthetic SignalReq the reactor derives
// from its signalfd (§4.7 signal channel, §4.8). SIGTERM asks the loop to
// stop after finishing in-flight writes; anything else is logged and
// otherwise ignored.
func (r *Router) HandleSignal(info protocol.SignalInfo) (stop bool) {
	r.logger.Info("received signal", "signal", info.Signal, "pid", info.PID)
	return info.Signal == sigterm
}

func toWireEntries(entries []monitor.Entry) []protocol.MonitorEntryWire {
	out := make([]protocol.MonitorEntryWire, 0, len(entries))
	for _, e := range entries {
		out = append(out, protocol.MonitorEntryWire{Key: e.Key, Type: e.Decision, Sec: e.Sec, Nsec: e.Nsec})
	}
	return out
}
