// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run drives poll cycles on the configured interval and emits one record
// per meter per cycle. Cancellation is honored between cycles only; the
// half-duplex bus keeps every transaction strictly sequential.
func (p *Poller) Run(ctx context.Context, out chan<- OutputRecord) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rec := range p.PollOnce() {
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
