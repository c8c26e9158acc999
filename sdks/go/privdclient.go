// Package privdclient is a Go SDK for the privd policy decision daemon.
//
// It speaks privd's binary client-channel protocol directly over a UNIX
// domain socket and implements the same asynchronous, single-threaded
// state machine the C async client library exposes: a caller drives one
// select-style loop, calls CheckCache for a synchronous answer where
// possible, falls back to CreateRequest to enqueue a round-trip, and
// calls Process to drain the socket and dispatch callbacks. It uses only
// the Go standard library, with zero external dependencies.
//
// Quick start:
//
//	client := privdclient.NewClient("/run/privd/client")
//	id, err := client.CreateRequest(privdclient.Key{
//	    Client:    "com.example.app",
//	    User:      "5000",
//	    Privilege: "http://tizen.org/privilege/internet",
//	}, func(res privdclient.CheckResult, cause privdclient.Cause) {
//	    fmt.Println(res, cause)
//	})
//	for {
//	    if err := client.Process(time.Second); err != nil {
//	        break
//	    }
//	}
package privdclient

// Key identifies a policy decision: the requesting client, the acting
// user, and the privilege being asked about.
type Key struct {
	Client    string
	User      string
	Privilege string
}

// CheckResult is the outcome of a policy lookup, local or round-tripped.
type CheckResult int

const (
	ResultNone CheckResult = iota
	ResultAllow
	ResultDeny
	ResultCacheMiss
	ResultServiceNotAvailable
)

func (r CheckResult) String() string {
	switch r {
	case ResultAllow:
		return "ALLOW"
	case ResultDeny:
		return "DENY"
	case ResultCacheMiss:
		return "CacheMiss"
	case ResultServiceNotAvailable:
		return "ServiceNotAvailable"
	default:
		return "None"
	}
}

// Cause explains why a pending request's callback fired the way it did.
type Cause int

const (
	// CauseAnswer is a normal, server-produced answer.
	CauseAnswer Cause = iota
	// CauseCancel means the request was cancelled by the caller.
	CauseCancel
	// CauseServiceNotAvailable means the connection to privd dropped
	// while the request was in flight.
	CauseServiceNotAvailable
	// CauseFinish means the client was torn down via Close while the
	// request was in flight.
	CauseFinish
)

func (c Cause) String() string {
	switch c {
	case CauseAnswer:
		return "Answer"
	case CauseCancel:
		return "Cancel"
	case CauseServiceNotAvailable:
		return "ServiceNotAvailable"
	case CauseFinish:
		return "Finish"
	default:
		return "Unknown"
	}
}

// RequestID is a locally allocated handle for an in-flight CreateRequest,
// returned to the caller for later Cancel calls.
type RequestID uint16

// ResponseCallback is invoked once per CreateRequest, exactly once, with
// the resolved result and the reason it resolved. It must not call back
// into the Client: doing so from within Process returns
// ErrOperationNotAllowed.
type ResponseCallback func(result CheckResult, cause Cause)

// StatusCallback is invoked whenever the underlying connection's
// lifecycle changes: with the live socket file descriptor on (re)connect,
// and with -1 on teardown (disconnect or Close). A caller embedding the
// client in its own reactor uses this to add/remove the fd from its own
// poll set.
type StatusCallback func(fd int)
