package audit

import (
	"context"
	"time"

	"github.com/privd/privd/internal/domain/monitor"
)

// subscriberID is the Hub subscriber name the sink registers under: an
// ordinary subscriber like any monitor client, just one the daemon itself
// drains instead of a connected peer.
const subscriberID = "audit-sink"

// TailHub drains hub into the sink on interval until ctx is cancelled,
// then unsubscribes and returns. Run it in its own goroutine; the Hub
// already serializes concurrent Subscribe/Fetch/Unsubscribe callers.
func (s *FileSink) TailHub(ctx context.Context, hub *monitor.Hub, interval time.Duration) {
	hub.Subscribe(subscriberID, 1)
	defer hub.Unsubscribe(subscriberID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if entries, ok := hub.Flush(subscriberID); ok && len(entries) > 0 {
				if err := s.Append(context.Background(), entries...); err != nil {
					s.logger.Error("audit tail: final flush failed", "error", err)
				}
			}
			return
		case <-ticker.C:
			entries, ok := hub.Fetch(subscriberID, true)
			if !ok || len(entries) == 0 {
				continue
			}
			if err := s.Append(ctx, entries...); err != nil {
				s.logger.Error("audit tail: append failed", "error", err)
			}
		}
	}
}
