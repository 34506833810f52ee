package store

import (
	"sync"
)

// CommitEvent announces one successful Upsert. It is delivered only after
// the commit is visible to Snapshot.
type CommitEvent struct {
	Seq      int64
	CommitID string
	Inserted []string
	Updated  []string
}

// Affected returns inserted ∪ updated ids.
func (e CommitEvent) Affected() []string {
	ids := make([]string, 0, len(e.Inserted)+len(e.Updated))
	ids = append(ids, e.Inserted...)
	return append(ids, e.Updated...)
}

// Subscription is a lazy, infinite, non-restartable stream of CommitEvents.
// Events committed before Subscribe returned are not replayed. Once closed,
// Events is closed and the subscription cannot be resumed; subscribe again
// for a new stream.
type Subscription struct {
	queue *eventQueue
	out   chan CommitEvent
	done  chan struct{}
	once  sync.Once
	owner *notifier
}

// Subscribe attaches a new subscriber to the store's commit stream.
func (s *Store) Subscribe() *Subscription {
	return s.notifier.subscribe()
}

// Events returns the delivery channel. It is closed by Close or when the
// store closes.
func (sub *Subscription) Events() <-chan CommitEvent {
	return sub.out
}

// Close detaches the subscription. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.owner.remove(sub)
		close(sub.done)
		sub.queue.Close()
	})
}

// pump moves events from the unbounded queue to the out channel so a slow
// subscriber never blocks the writer.
func (sub *Subscription) pump() {
	defer close(sub.out)

	for {
		if ev, ok := sub.queue.TryDequeue(); ok {
			select {
			case sub.out <- ev:
			case <-sub.done:
				return
			}
			continue
		}

		select {
		case <-sub.done:
			return
		case <-sub.queue.Wait():
		}
	}
}

// notifier fans CommitEvents out to subscriptions.
type notifier struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[*Subscription]struct{})}
}

func (n *notifier) subscribe() *Subscription {
	sub := &Subscription{
		queue: newEventQueue(),
		out:   make(chan CommitEvent),
		done:  make(chan struct{}),
		owner: n,
	}

	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()

	go sub.pump()
	return sub
}

func (n *notifier) remove(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, sub)
}

// publish enqueues ev on every live subscription. Never blocks.
func (n *notifier) publish(ev CommitEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		sub.queue.Enqueue(ev)
	}
}

// closeAll closes every subscription.
func (n *notifier) closeAll() {
	n.mu.Lock()
	subs := make([]*Subscription, 0, len(n.subs))
	for sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// eventQueue is a thread-safe unbounded FIFO of CommitEvents.
//
// The queue uses a channel for signaling to enable select-based waiting
// in the pump (prevents goroutine hangs on close).
type eventQueue struct {
	mu     sync.Mutex
	events []CommitEvent
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]CommitEvent, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e CommitEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *eventQueue) TryDequeue() (CommitEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return CommitEvent{}, false
	}

	e := q.events[0]
	// Nil out the slot so the id slices can be collected.
	q.events[0] = CommitEvent{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close marks the queue closed and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
