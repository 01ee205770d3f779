package networkmap

import "sync"

// Feed is a multi-consumer, latest-value-on-subscribe broadcaster for
// ParametersUpdateInfo events. Each subscriber gets the current
// value (if any) immediately, then every subsequent publish on its own
// channel.
type Feed struct {
	mu      sync.Mutex
	current *ParametersUpdateInfo
	subs    map[int]chan ParametersUpdateInfo
	nextID  int
}

// NewFeed returns an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan ParametersUpdateInfo)}
}

// Publish sets the current snapshot and delivers it to every subscriber.
// Slow subscribers are never blocked on: delivery is best-effort via a
// buffered channel, matching the "stream" half of DataFeed's contract.
func (f *Feed) Publish(info ParametersUpdateInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = &info
	for _, ch := range f.subs {
		select {
		case ch <- info:
		default:
		}
	}
}

// Current returns the most recently published snapshot, or nil if none has
// been published yet.
func (f *Feed) Current() *ParametersUpdateInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Subscribe returns the current snapshot (nil if none) and a stream of
// subsequent events, plus a cancel func the caller must call to stop
// receiving and release the channel.
func (f *Feed) Subscribe() (current *ParametersUpdateInfo, stream <-chan ParametersUpdateInfo, cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan ParametersUpdateInfo, 4)
	f.subs[id] = ch

	return f.current, ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if existing, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(existing)
		}
	}
}
