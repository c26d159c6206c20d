package presence

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"webconferencing/internal/metrics"
)

// Dispatcher delivers events to the listeners of a list of users.
//
// Users are served in the given order and each user's listeners in
// registration order. A failing or panicking listener is logged and skipped.
//
// With workers == 0 delivery happens on the caller's goroutine. Otherwise
// each user id is pinned to one worker queue, which keeps per-user order;
// a full queue blocks the caller.
type Dispatcher struct {
	registry *Registry
	log      *slog.Logger

	mu     sync.RWMutex
	closed bool
	queues []chan job
	wg     sync.WaitGroup
}

type job struct {
	listeners []Listener
	event     Event
}

func NewDispatcher(registry *Registry, workers, queueSize int, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{registry: registry, log: log}
	if workers <= 0 {
		return d
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d.queues = make([]chan job, workers)
	for i := range d.queues {
		q := make(chan job, queueSize)
		d.queues[i] = q
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range q {
				d.deliverAll(j.listeners, j.event)
			}
		}()
	}
	return d
}

// Dispatch sends e to every listener of every recipient.
func (d *Dispatcher) Dispatch(recipients []string, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, userID := range recipients {
		listeners := d.registry.Lookup(userID)
		if len(listeners) == 0 {
			continue
		}
		if d.closed || len(d.queues) == 0 {
			d.deliverAll(listeners, e)
			continue
		}
		d.queues[queueIndex(userID, len(d.queues))] <- job{listeners: listeners, event: e}
	}
}

// Close drains queued events and stops the workers. Later dispatches run synchronously.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliverAll(listeners []Listener, e Event) {
	for _, l := range listeners {
		if err := d.deliver(l, e); err != nil {
			metrics.NotificationFailures.WithLabelValues(string(e.Kind)).Inc()
			d.log.Error("listener failed",
				"event", e.Kind,
				"call_id", e.CallID(),
				"user_id", l.UserID(),
				"client_id", l.ClientID(),
				"err", err,
			)
			continue
		}
		metrics.NotificationsDelivered.WithLabelValues(string(e.Kind)).Inc()
	}
}

func (d *Dispatcher) deliver(l Listener, e Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panic: %v", p)
		}
	}()
	return e.deliver(l)
}

func queueIndex(userID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(n))
}
