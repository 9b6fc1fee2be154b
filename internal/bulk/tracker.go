package bulk

import (
	"sort"
	"sync"

	"github.com/foxseedlab/callinsight/internal/analysis"
)

const subscriberBuffer = 64

type batchState struct {
	latest map[int]analysis.Progress
	subs   map[int]chan analysis.Progress
	nextID int
}

// Tracker keeps the latest progress of every file in a running batch and
// fans events out to subscribers. Sends never block: a subscriber whose
// buffer is full misses the event and can resubscribe for a fresh snapshot.
type Tracker struct {
	mu      sync.Mutex
	batches map[string]*batchState
}

func NewTracker() *Tracker {
	return &Tracker{batches: make(map[string]*batchState)}
}

func (t *Tracker) Register(batchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.batches[batchID]; ok {
		return
	}
	t.batches[batchID] = &batchState{
		latest: make(map[int]analysis.Progress),
		subs:   make(map[int]chan analysis.Progress),
	}
}

// Publish records p and forwards it to subscribers. Events for batches that
// are not registered, or were cleaned up, are dropped.
func (t *Tracker) Publish(batchID string, p analysis.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.batches[batchID]
	if !ok {
		return
	}
	st.latest[p.FileIndex] = p
	for _, ch := range st.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Snapshot returns the latest event per file ordered by file index.
func (t *Tracker) Snapshot(batchID string) ([]analysis.Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.batches[batchID]
	if !ok {
		return nil, false
	}
	return st.snapshot(), true
}

func (st *batchState) snapshot() []analysis.Progress {
	out := make([]analysis.Progress, 0, len(st.latest))
	for _, p := range st.latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileIndex < out[j].FileIndex })
	return out
}

// Subscribe returns the current snapshot and a channel of later events. The
// channel is closed when the batch finishes or is cleaned up. unsubscribe is
// safe to call more than once.
func (t *Tracker) Subscribe(batchID string) (snapshot []analysis.Progress, events <-chan analysis.Progress, unsubscribe func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, found := t.batches[batchID]
	if !found {
		return nil, nil, func() {}, false
	}
	id := st.nextID
	st.nextID++
	ch := make(chan analysis.Progress, subscriberBuffer)
	st.subs[id] = ch

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if cur, ok := t.batches[batchID]; ok && cur == st {
				if c, ok := st.subs[id]; ok {
					delete(st.subs, id)
					close(c)
				}
			}
		})
	}
	return st.snapshot(), ch, unsubscribe, true
}

// Finish closes all subscribers and forgets the batch.
func (t *Tracker) Finish(batchID string) {
	t.Cleanup(batchID)
}

// Cleanup drops listeners and state for a batch. It does not stop the batch
// itself; later events are discarded.
func (t *Tracker) Cleanup(batchID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.batches[batchID]
	if !ok {
		return false
	}
	for id, ch := range st.subs {
		delete(st.subs, id)
		close(ch)
	}
	delete(t.batches, batchID)
	return true
}

// Active reports whether the batch is still being tracked.
func (t *Tracker) Active(batchID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.batches[batchID]
	return ok
}
