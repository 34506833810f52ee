package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/larder/internal/remote"
)

// ErrNoResponse is returned by StubFetcher when its queue is empty.
var ErrNoResponse = errors.New("stub fetcher: no response queued")

type response struct {
	payload remote.Payload
	err     error
}

// StubFetcher is a remote.Fetcher that replays queued responses in order.
//
// When a gate is set, every FetchAll blocks on it after signalling Started,
// which lets tests hold a sync cycle mid-flight.
// Thread-safety: all methods are safe for concurrent use.
type StubFetcher struct {
	mu        sync.Mutex
	responses []response
	calls     int
	gate      chan struct{}
	started   chan struct{}
}

// Compile-time interface check.
var _ remote.Fetcher = (*StubFetcher)(nil)

// NewStubFetcher creates an empty stub.
func NewStubFetcher() *StubFetcher {
	return &StubFetcher{started: make(chan struct{}, 16)}
}

// Respond queues a payload.
func (f *StubFetcher) Respond(p []byte) *StubFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{payload: remote.Payload(p)})
	return f
}

// Fail queues an error.
func (f *StubFetcher) Fail(err error) *StubFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{err: err})
	return f
}

// Gate makes subsequent FetchAll calls block until the returned function
// is called.
func (f *StubFetcher) Gate() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Started receives one value per FetchAll call, before the gate is awaited.
func (f *StubFetcher) Started() <-chan struct{} {
	return f.started
}

// Calls returns how many times FetchAll was called.
func (f *StubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FetchAll returns the next queued response.
func (f *StubFetcher) FetchAll(ctx context.Context) (remote.Payload, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil, ErrNoResponse
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.payload, r.err
}
