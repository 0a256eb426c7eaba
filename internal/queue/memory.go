package queue

import "context"

// Memory is a channel-backed Notifier for the sandbox run mode and unit
// tests. It never touches Redis.
type Memory struct {
	ch chan string
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{ch: make(chan string, capacity)}
}

func (m *Memory) Notify(ctx context.Context, tenantID string) error {
	select {
	case m.ch <- tenantID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// The buffer is full and this notification is dropped. The
		// tenant's queued jobs stay queued until a later notification for
		// the same tenant is consumed (each wake-up drains all of that
		// tenant's queued jobs) or a poller pulls them; other tenants'
		// wake-ups do not scan for them.
		return nil
	}
}

func (m *Memory) Consume(ctx context.Context) (string, error) {
	select {
	case t := <-m.ch:
		return t, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Memory) Backlog(ctx context.Context) (int, error) {
	return len(m.ch), nil
}

func (m *Memory) Close() error {
	return nil
}
