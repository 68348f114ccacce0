package relay

import (
	"testing"
	"time"
)

func TestShouldBurn(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := base.Add(-90 * time.Second)

	cases := []struct {
		name   string
		policy *BurnPolicy
		state  AccessState
		now    time.Time
		want   bool
	}{
		{"no policy", nil, AccessState{DownloadCount: 50}, base, false},
		{"downloads below threshold", &BurnPolicy{Kind: BurnKindDownloads, Threshold: 3}, AccessState{DownloadCount: 2}, base, false},
		{"downloads at threshold", &BurnPolicy{Kind: BurnKindDownloads, Threshold: 3}, AccessState{DownloadCount: 3}, base, true},
		{"downloads past threshold", &BurnPolicy{Kind: BurnKindDownloads, Threshold: 3}, AccessState{DownloadCount: 7}, base, true},
		{"time never accessed", &BurnPolicy{Kind: BurnKindTime, WindowMinutes: 1}, AccessState{}, base, false},
		{"time inside window", &BurnPolicy{Kind: BurnKindTime, WindowMinutes: 2}, AccessState{DownloadCount: 1, FirstAccessAt: &first}, base, false},
		{"time window elapsed", &BurnPolicy{Kind: BurnKindTime, WindowMinutes: 1}, AccessState{DownloadCount: 1, FirstAccessAt: &first}, base, true},
		{"time fractional window elapsed", &BurnPolicy{Kind: BurnKindTime, WindowMinutes: 1.5}, AccessState{DownloadCount: 1, FirstAccessAt: &first}, base, true},
		{"unknown kind", &BurnPolicy{Kind: "whenever"}, AccessState{DownloadCount: 9}, base, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldBurn(tc.policy, tc.state, tc.now); got != tc.want {
				t.Errorf("ShouldBurn = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBurnPolicyValid(t *testing.T) {
	cases := []struct {
		name   string
		policy *BurnPolicy
		want   bool
	}{
		{"nil", nil, true},
		{"downloads positive", &BurnPolicy{Kind: BurnKindDownloads, Threshold: 1}, true},
		{"downloads zero", &BurnPolicy{Kind: BurnKindDownloads}, false},
		{"downloads negative", &BurnPolicy{Kind: BurnKindDownloads, Threshold: -2}, false},
		{"time positive", &BurnPolicy{Kind: BurnKindTime, WindowMinutes: 0.5}, true},
		{"time zero", &BurnPolicy{Kind: BurnKindTime}, false},
		{"unknown kind", &BurnPolicy{Kind: "sometimes", Threshold: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.Valid(); got != tc.want {
				t.Errorf("Valid = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRecordAccessStampsFirstOnce(t *testing.T) {
	tr := NewBurnTracker()
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return stamp }

	st := tr.RecordAccess("f1", nil, nil)
	if st.DownloadCount != 1 {
		t.Fatalf("count = %d, want 1", st.DownloadCount)
	}
	if st.FirstAccessAt == nil || !st.FirstAccessAt.Equal(stamp) {
		t.Fatalf("FirstAccessAt = %v, want %v", st.FirstAccessAt, stamp)
	}

	tr.now = func() time.Time { return stamp.Add(time.Hour) }
	st = tr.RecordAccess("f1", nil, nil)
	if st.DownloadCount != 2 {
		t.Fatalf("count = %d, want 2", st.DownloadCount)
	}
	if !st.FirstAccessAt.Equal(stamp) {
		t.Errorf("FirstAccessAt moved to %v on re-access", st.FirstAccessAt)
	}
}

func TestRecordAccessArmsTimerOnce(t *testing.T) {
	tr := NewBurnTracker()
	policy := &BurnPolicy{Kind: BurnKindTime, WindowMinutes: 0.0005} // 30ms

	fired := make(chan struct{}, 4)
	onElapsed := func() { fired <- struct{}{} }

	tr.RecordAccess("f1", policy, onElapsed)
	tr.RecordAccess("f1", policy, onElapsed)
	tr.RecordAccess("f1", policy, onElapsed)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	select {
	case <-fired:
		t.Fatal("timer fired more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecordAccessNoTimerForDownloadPolicy(t *testing.T) {
	tr := NewBurnTracker()
	policy := &BurnPolicy{Kind: BurnKindDownloads, Threshold: 2}

	fired := make(chan struct{}, 1)
	tr.RecordAccess("f1", policy, func() { fired <- struct{}{} })

	select {
	case <-fired:
		t.Fatal("download-count policy armed a timer")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPurgeStopsTimerAndFreesEntry(t *testing.T) {
	tr := NewBurnTracker()
	policy := &BurnPolicy{Kind: BurnKindTime, WindowMinutes: 0.001} // 60ms

	fired := make(chan struct{}, 1)
	tr.RecordAccess("f1", policy, func() { fired <- struct{}{} })
	if tr.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tr.Len())
	}

	tr.Purge("f1")
	if tr.Len() != 0 {
		t.Fatalf("Len after purge = %d, want 0", tr.Len())
	}
	select {
	case <-fired:
		t.Fatal("timer fired after purge")
	case <-time.After(150 * time.Millisecond):
	}

	// Purging an unknown id is a no-op.
	tr.Purge("never-seen")
}

func TestStateUnknownFile(t *testing.T) {
	tr := NewBurnTracker()
	st := tr.State("ghost")
	if st.DownloadCount != 0 || st.FirstAccessAt != nil {
		t.Fatalf("zero state expected, got %+v", st)
	}
}
