package privdclient

import "errors"

var (
	// ErrNotConnected is returned by CreateRequest and Process when the
	// client has no live connection and auto-connect is disabled, and by
	// CreateRequest when sending its CheckReq fails.
	ErrNotConnected = errors.New("privdclient: not connected")

	// ErrMaxPendingRequests is returned by CreateRequest when the number
	// of in-flight requests has reached the client's configured limit.
	ErrMaxPendingRequests = errors.New("privdclient: too many pending requests")

	// ErrOperationNotAllowed is returned by CreateRequest, Cancel, Close,
	// or a nested Process call made from within a ResponseCallback or
	// StatusCallback — the re-entrancy guard rejects it.
	ErrOperationNotAllowed = errors.New("privdclient: operation not allowed from within a callback")

	// ErrUnknownRequest is returned by Cancel when the given RequestID is
	// not (or is no longer) pending.
	ErrUnknownRequest = errors.New("privdclient: unknown or already-resolved request id")

	// ErrClosed is returned by CreateRequest and Process after Close has
	// been called.
	ErrClosed = errors.New("privdclient: client closed")
)
