// Package queue wakes the dispatcher when a tenant has new queued jobs
// (spec §4.6). The actual reservation of work happens against jobstore's
// FOR UPDATE SKIP LOCKED query; the queue only carries a per-tenant
// "there may be work" signal so workers do not have to poll the database
// in a tight loop.
package queue

import "context"

// Notifier is the minimal interface the ingress handler and worker pool
// need: announce a tenant has new work, and wait for the next
// announcement. Both Memory and Redis satisfy it identically so tests
// and the sandbox run mode never need a live Redis instance.
type Notifier interface {
	// Notify announces that tenantID may have new queued work.
	Notify(ctx context.Context, tenantID string) error
	// Consume blocks until a tenant announcement is available or ctx is
	// done. Multiple announcements for the same tenant may collapse into
	// one wake-up; the worker always re-reserves from jobstore rather
	// than trusting the notification count.
	Consume(ctx context.Context) (tenantID string, err error)
	// Backlog reports the number of outstanding, unconsumed
	// notifications — used for the queue_backlog gauge (spec §4.11).
	Backlog(ctx context.Context) (int, error)
	Close() error
}
