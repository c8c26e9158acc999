package privdclient

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithMaxPendingRequests bounds the number of in-flight CreateRequest
// calls. Defaults to 64. A full table makes CreateRequest return
// ErrMaxPendingRequests rather than growing unbounded.
func WithMaxPendingRequests(n int) Option {
	return func(c *Client) {
		c.maxPending = n
	}
}

// WithCacheSize bounds the client-side decision cache. Defaults to 256.
// Entries evict LRU once the cache is full.
func WithCacheSize(n int) Option {
	return func(c *Client) {
		c.cacheMax = n
	}
}

// WithStatusCallback registers the callback invoked on every connect,
// reconnect, and teardown, mirroring the daemon's own fd-oriented
// lifecycle hook.
func WithStatusCallback(cb StatusCallback) Option {
	return func(c *Client) {
		c.onStatus = cb
	}
}

// WithAutoConnect controls whether CreateRequest dials the socket
// automatically when the client is not yet connected. Defaults to true;
// pass false to require an explicit Connect call.
func WithAutoConnect(enabled bool) Option {
	return func(c *Client) {
		c.autoConnect = enabled
	}
}
