package protocol

import (
	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

// AdminCheckReq asks the daemon to evaluate key starting at startBucket,
// exposing the bucket-valid/db-corrupted flags §4.3 reserves for the
// admin-check variant.
type AdminCheckReq struct {
	Seq         uint16
	StartBucket string
	Recursive   bool
	Key         policy.Key
}

func (m AdminCheckReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpAdminCheckReq))
	w.PutString(m.StartBucket)
	w.PutBool(m.Recursive)
	w.PutKey(m.Key)
	return w.Bytes()
}

func decodeAdminCheckReq(seq uint16, r *Reader) (AdminCheckReq, error) {
	bucket, err := r.GetString()
	if err != nil {
		return AdminCheckReq{}, err
	}
	recursive, err := r.GetBool()
	if err != nil {
		return AdminCheckReq{}, err
	}
	key, err := r.GetKey()
	if err != nil {
		return AdminCheckReq{}, err
	}
	return AdminCheckReq{Seq: seq, StartBucket: bucket, Recursive: recursive, Key: key}, nil
}

// AdminCheckResp answers an AdminCheckReq.
type AdminCheckResp struct {
	Seq         uint16
	Result      policy.Result
	BucketValid bool
	DBCorrupted bool
}

func (m AdminCheckResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpAdminCheckResp))
	w.PutResult(m.Result)
	w.PutBool(m.BucketValid)
	w.PutBool(m.DBCorrupted)
	return w.Bytes()
}

func decodeAdminCheckResp(seq uint16, r *Reader) (AdminCheckResp, error) {
	result, err := r.GetResult()
	if err != nil {
		return AdminCheckResp{}, err
	}
	bucketValid, err := r.GetBool()
	if err != nil {
		return AdminCheckResp{}, err
	}
	dbCorrupted, err := r.GetBool()
	return AdminCheckResp{Seq: seq, Result: result, BucketValid: bucketValid, DBCorrupted: dbCorrupted}, err
}

// DescriptionListReq asks for the union of built-in and plugin-registered
// policy-type descriptions (§4.5 list_descriptions).
type DescriptionListReq struct {
	Seq uint16
}

func (m DescriptionListReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpDescriptionListReq))
	return w.Bytes()
}

func decodeDescriptionListReq(seq uint16, _ *Reader) (DescriptionListReq, error) {
	return DescriptionListReq{Seq: seq}, nil
}

// DescriptionWire is one (type, name) pair in a DescriptionListResp.
type DescriptionWire struct {
	Type policy.Type
	Name string
}

// DescriptionListResp carries the policy-type description list.
type DescriptionListResp struct {
	Seq          uint16
	Descriptions []DescriptionWire
}

func (m DescriptionListResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpDescriptionListResp))
	w.PutU32(uint32(len(m.Descriptions)))
	for _, d := range m.Descriptions {
		w.PutU16(uint16(d.Type))
		w.PutString(d.Name)
	}
	return w.Bytes()
}

func decodeDescriptionListResp(seq uint16, r *Reader) (DescriptionListResp, error) {
	count, err := r.GetU32()
	if err != nil {
		return DescriptionListResp{}, err
	}
	out := make([]DescriptionWire, 0, count)
	for i := uint32(0); i < count; i++ {
		t, err := r.GetU16()
		if err != nil {
			return DescriptionListResp{}, err
		}
		name, err := r.GetString()
		if err != nil {
			return DescriptionListResp{}, err
		}
		out = append(out, DescriptionWire{Type: policy.Type(t), Name: name})
	}
	return DescriptionListResp{Seq: seq, Descriptions: out}, nil
}

// EraseReq removes policies matching filter from startBucket, and, if
// recursive, every bucket reachable from it via BUCKET links (§4.2 erase).
type EraseReq struct {
	Seq         uint16
	StartBucket string
	Recursive   bool
	Filter      policy.Key
}

func (m EraseReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpEraseReq))
	w.PutString(m.StartBucket)
	w.PutBool(m.Recursive)
	w.PutKey(m.Filter)
	return w.Bytes()
}

func decodeEraseReq(seq uint16, r *Reader) (EraseReq, error) {
	bucket, err := r.GetString()
	if err != nil {
		return EraseReq{}, err
	}
	recursive, err := r.GetBool()
	if err != nil {
		return EraseReq{}, err
	}
	filter, err := r.GetKey()
	return EraseReq{Seq: seq, StartBucket: bucket, Recursive: recursive, Filter: filter}, err
}

// InsertOrUpdateBucketReq creates bucket-id with the given default if it
// does not exist, or updates its default if it does (§4.2
// create_bucket/update_bucket_default, unified for the "set-bucket" CLI
// command).
type InsertOrUpdateBucketReq struct {
	Seq      uint16
	BucketID string
	Default  policy.Result
}

func (m InsertOrUpdateBucketReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpInsertOrUpdateBucketReq))
	w.PutString(m.BucketID)
	w.PutResult(m.Default)
	return w.Bytes()
}

func decodeInsertOrUpdateBucketReq(seq uint16, r *Reader) (InsertOrUpdateBucketReq, error) {
	id, err := r.GetString()
	if err != nil {
		return InsertOrUpdateBucketReq{}, err
	}
	def, err := r.GetResult()
	return InsertOrUpdateBucketReq{Seq: seq, BucketID: id, Default: def}, err
}

// ListReq enumerates policies matching filter within startBucket (§4.1
// list/filter; filter slots may use the any-marker).
type ListReq struct {
	Seq         uint16
	StartBucket string
	Filter      policy.Key
}

func (m ListReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpListReq))
	w.PutString(m.StartBucket)
	w.PutKey(m.Filter)
	return w.Bytes()
}

func decodeListReq(seq uint16, r *Reader) (ListReq, error) {
	bucket, err := r.GetString()
	if err != nil {
		return ListReq{}, err
	}
	filter, err := r.GetKey()
	return ListReq{Seq: seq, StartBucket: bucket, Filter: filter}, err
}

// PolicyWire is one policy in wire form.
type PolicyWire struct {
	Key    policy.Key
	Result policy.Result
}

// ListResp carries the matching policies, ordered by key (§4.1 List).
type ListResp struct {
	Seq      uint16
	Policies []PolicyWire
}

func (m ListResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpListResp))
	w.PutU32(uint32(len(m.Policies)))
	for _, p := range m.Policies {
		w.PutKey(p.Key)
		w.PutResult(p.Result)
	}
	return w.Bytes()
}

func decodeListResp(seq uint16, r *Reader) (ListResp, error) {
	count, err := r.GetU32()
	if err != nil {
		return ListResp{}, err
	}
	out := make([]PolicyWire, 0, count)
	for i := uint32(0); i < count; i++ {
		key, err := r.GetKey()
		if err != nil {
			return ListResp{}, err
		}
		result, err := r.GetResult()
		if err != nil {
			return ListResp{}, err
		}
		out = append(out, PolicyWire{Key: key, Result: result})
	}
	return ListResp{Seq: seq, Policies: out}, nil
}

// RemoveBucketReq deletes a bucket (§4.2 delete_bucket). The root bucket
// cannot be removed; the router cascades BUCKET-link cleanup.
type RemoveBucketReq struct {
	Seq      uint16
	BucketID string
}

func (m RemoveBucketReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpRemoveBucketReq))
	w.PutString(m.BucketID)
	return w.Bytes()
}

func decodeRemoveBucketReq(seq uint16, r *Reader) (RemoveBucketReq, error) {
	id, err := r.GetString()
	return RemoveBucketReq{Seq: seq, BucketID: id}, err
}

// PolicyEditWire is one bucket's worth of policy insertions in a
// SetPoliciesReq batch.
type PolicyEditWire struct {
	BucketID string
	Policies []PolicyWire
}

// KeyEditWire is one bucket's worth of policy deletions in a
// SetPoliciesReq batch.
type KeyEditWire struct {
	BucketID string
	Keys     []policy.Key
}

// SetPoliciesReq batches policy insertions and deletions atomically
// across the whole request (§4.2 insert_policies/delete_policies: "either
// every edit applies and is persisted, or none do").
type SetPoliciesReq struct {
	Seq     uint16
	Inserts []PolicyEditWire
	Deletes []KeyEditWire
}

func (m SetPoliciesReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpSetPoliciesReq))
	w.PutU32(uint32(len(m.Inserts)))
	for _, e := range m.Inserts {
		w.PutString(e.BucketID)
		w.PutU32(uint32(len(e.Policies)))
		for _, p := range e.Policies {
			w.PutKey(p.Key)
			w.PutResult(p.Result)
		}
	}
	w.PutU32(uint32(len(m.Deletes)))
	for _, e := range m.Deletes {
		w.PutString(e.BucketID)
		w.PutU32(uint32(len(e.Keys)))
		for _, k := range e.Keys {
			w.PutKey(k)
		}
	}
	return w.Bytes()
}

func decodeSetPoliciesReq(seq uint16, r *Reader) (SetPoliciesReq, error) {
	insertCount, err := r.GetU32()
	if err != nil {
		return SetPoliciesReq{}, err
	}
	inserts := make([]PolicyEditWire, 0, insertCount)
	for i := uint32(0); i < insertCount; i++ {
		bucket, err := r.GetString()
		if err != nil {
			return SetPoliciesReq{}, err
		}
		count, err := r.GetU32()
		if err != nil {
			return SetPoliciesReq{}, err
		}
		policies := make([]PolicyWire, 0, count)
		for j := uint32(0); j < count; j++ {
			key, err := r.GetKey()
			if err != nil {
				return SetPoliciesReq{}, err
			}
			result, err := r.GetResult()
			if err != nil {
				return SetPoliciesReq{}, err
			}
			policies = append(policies, PolicyWire{Key: key, Result: result})
		}
		inserts = append(inserts, PolicyEditWire{BucketID: bucket, Policies: policies})
	}

	deleteCount, err := r.GetU32()
	if err != nil {
		return SetPoliciesReq{}, err
	}
	deletes := make([]KeyEditWire, 0, deleteCount)
	for i := uint32(0); i < deleteCount; i++ {
		bucket, err := r.GetString()
		if err != nil {
			return SetPoliciesReq{}, err
		}
		count, err := r.GetU32()
		if err != nil {
			return SetPoliciesReq{}, err
		}
		keys := make([]policy.Key, 0, count)
		for j := uint32(0); j < count; j++ {
			key, err := r.GetKey()
			if err != nil {
				return SetPoliciesReq{}, err
			}
			keys = append(keys, key)
		}
		deletes = append(deletes, KeyEditWire{BucketID: bucket, Keys: keys})
	}
	return SetPoliciesReq{Seq: seq, Inserts: inserts, Deletes: deletes}, nil
}

// CodeResp is the admin channel's generic success/failure result for
// writes with no richer payload (§4.7 CodeResp).
type CodeResp struct {
	Seq     uint16
	Code    CodeResponseCode
	Message string
}

func (m CodeResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpCodeResp))
	w.PutU16(uint16(m.Code))
	w.PutString(m.Message)
	return w.Bytes()
}

func decodeCodeResp(seq uint16, r *Reader) (CodeResp, error) {
	code, err := r.GetU16()
	if err != nil {
		return CodeResp{}, err
	}
	msg, err := r.GetString()
	return CodeResp{Seq: seq, Code: CodeResponseCode(code), Message: msg}, err
}

// DecodeAdminRequest dispatches payload to the matching admin-channel
// request type.
func DecodeAdminRequest(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	if !op.ValidOn(ChannelAdmin) {
		return nil, apperr.New(apperr.CodeWrongOpCode, "not an admin-channel opcode")
	}
	var (
		msg  any
		derr error
	)
	switch op {
	case OpAdminCheckReq:
		msg, derr = decodeAdminCheckReq(seq, r)
	case OpDescriptionListReq:
		msg, derr = decodeDescriptionListReq(seq, r)
	case OpEraseReq:
		msg, derr = decodeEraseReq(seq, r)
	case OpInsertOrUpdateBucketReq:
		msg, derr = decodeInsertOrUpdateBucketReq(seq, r)
	case OpListReq:
		msg, derr = decodeListReq(seq, r)
	case OpRemoveBucketReq:
		msg, derr = decodeRemoveBucketReq(seq, r)
	case OpSetPoliciesReq:
		msg, derr = decodeSetPoliciesReq(seq, r)
	default:
		return nil, apperr.New(apperr.CodeWrongOpCode, "unexpected admin response opcode in request position")
	}
	if derr != nil {
		return nil, derr
	}
	if !r.Done() {
		return nil, apperr.New(apperr.CodeInvalidProtocol, "trailing bytes after admin request")
	}
	return msg, nil
}

// The admin channel also multiplexes the monitor channel's opcode set
// (§4.7: "a monitor channel multiplexes over the admin socket using its
// own opcode set"). DecodeAdminOrMonitorRequest tries the monitor opcode
// set first, then falls back to the admin set, since OpCode ranges never
// overlap (§4.7 opcode.go).
func DecodeAdminOrMonitorRequest(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	if op.ValidOn(ChannelMonitor) {
		return decodeMonitorBody(op, seq, r)
	}
	return DecodeAdminRequest(payload)
}

// DecodeAdminResponse dispatches payload to the matching admin-channel
// response type; used by the admin CLI and the async client library to
// decode what the daemon sends back.
func DecodeAdminResponse(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	var (
		msg  any
		derr error
	)
	switch op {
	case OpAdminCheckResp:
		msg, derr = decodeAdminCheckResp(seq, r)
	case OpDescriptionListResp:
		msg, derr = decodeDescriptionListResp(seq, r)
	case OpListResp:
		msg, derr = decodeListResp(seq, r)
	case OpCodeResp:
		msg, derr = decodeCodeResp(seq, r)
	default:
		return nil, apperr.New(apperr.CodeWrongOpCode, "unexpected admin request opcode in response position")
	}
	if derr != nil {
		return nil, derr
	}
	if !r.Done() {
		return nil, apperr.New(apperr.CodeInvalidProtocol, "trailing bytes after admin response")
	}
	return msg, nil
}
