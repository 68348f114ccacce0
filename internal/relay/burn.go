package relay

import (
	"sync"
	"time"
)

// AccessState is the burn-relevant view of one file: how many times it
// was fetched and when it was fetched first.
type AccessState struct {
	DownloadCount int
	FirstAccessAt *time.Time
}

// burnEntry is the tracker-internal record. The timer is only set for
// time-based policies and fires exactly once, windowMinutes after the
// first access.
type burnEntry struct {
	state AccessState
	timer *time.Timer
}

// BurnTracker counts accesses and time-gates first access per file id.
// It lives independently of rooms: entries are created lazily on the
// first access report and must be purged whenever the owning file is
// removed through any path, or they accumulate for the lifetime of the
// process as rooms churn.
type BurnTracker struct {
	mu      sync.Mutex
	entries map[string]*burnEntry
	now     func() time.Time
}

func NewBurnTracker() *BurnTracker {
	return &BurnTracker{
		entries: make(map[string]*burnEntry),
		now:     time.Now,
	}
}

// RecordAccess registers one "file accessed" signal and returns the
// updated state. On the first access it stamps FirstAccessAt and, for
// time-based policies, arms the one-shot deferred check: onElapsed
// runs once the window has passed, no matter how many further accesses
// arrive in between. Re-access never re-arms.
func (t *BurnTracker) RecordAccess(fileID string, policy *BurnPolicy, onElapsed func()) AccessState {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[fileID]
	if !ok {
		e = &burnEntry{}
		t.entries[fileID] = e
	}

	e.state.DownloadCount++
	if e.state.FirstAccessAt == nil {
		first := t.now()
		e.state.FirstAccessAt = &first
		if policy != nil && policy.Kind == BurnKindTime && onElapsed != nil {
			e.timer = time.AfterFunc(policy.Window(), onElapsed)
		}
	}
	return e.state
}

// State returns the current access state for a file id. Files that were
// never accessed report a zero state.
func (t *BurnTracker) State(fileID string) AccessState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[fileID]; ok {
		return e.state
	}
	return AccessState{}
}

// Purge drops all tracker state for a file id and stops any armed
// timer. Every removal path (burn, expiry sweep, overflow eviction,
// room teardown) must end up here exactly once.
func (t *BurnTracker) Purge(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[fileID]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(t.entries, fileID)
	}
}

// Len reports how many file ids currently hold tracker state.
func (t *BurnTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// ShouldBurn is the pure burn predicate: true when a download-count
// policy has met its threshold, or when a time policy's window has
// elapsed since the first access. Files without a policy never burn;
// they are only subject to the provider-expiry sweep.
func ShouldBurn(policy *BurnPolicy, state AccessState, now time.Time) bool {
	if policy == nil {
		return false
	}
	switch policy.Kind {
	case BurnKindDownloads:
		return state.DownloadCount >= policy.Threshold
	case BurnKindTime:
		if state.FirstAccessAt == nil {
			return false
		}
		return now.Sub(*state.FirstAccessAt) >= policy.Window()
	default:
		return false
	}
}
