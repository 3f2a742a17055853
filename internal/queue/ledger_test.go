package queue

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAssignsPositionsAndTokens(t *testing.T) {
	l := NewLedger(15)

	e1, v1, err := l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
	require.NoError(t, err)
	assert.Equal(t, 1, e1.TokenNumber)
	assert.Equal(t, StatusWaiting, e1.Status)
	assert.Equal(t, 1, v1.TotalWaiting)

	e2, v2, err := l.Join("radiology", "2025-06-01", "pat-2", "Vik Mehta")
	require.NoError(t, err)
	assert.Equal(t, 2, e2.TokenNumber)

	require.Len(t, v2.Queue, 2)
	assert.Equal(t, 1, v2.Queue[0].Position)
	assert.Equal(t, "pat-1", v2.Queue[0].PatientID)
	assert.Equal(t, 15, v2.Queue[0].EstimatedWaitMins)
	assert.Equal(t, 2, v2.Queue[1].Position)
	assert.Equal(t, 30, v2.Queue[1].EstimatedWaitMins)
	assert.Equal(t, 30, v2.EstimatedWaitMins)
}

func TestJoinRejectsDuplicateActiveEntry(t *testing.T) {
	l := NewLedger(15)

	e1, _, err := l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
	require.NoError(t, err)

	_, _, err = l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
	require.ErrorIs(t, err, ErrAlreadyQueued)

	// A different department or date is a separate queue.
	_, _, err = l.Join("pathology", "2025-06-01", "pat-1", "Asha Rao")
	require.NoError(t, err)
	_, _, err = l.Join("radiology", "2025-06-02", "pat-1", "Asha Rao")
	require.NoError(t, err)

	// In progress still counts as active.
	_, _, err = l.Advance(e1.VisitID, StatusInProgress)
	require.NoError(t, err)
	_, _, err = l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
	require.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestRejoinAfterTerminalEntry(t *testing.T) {
	l := NewLedger(15)

	e1, _, err := l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
	require.NoError(t, err)
	_, _, err = l.Advance(e1.VisitID, StatusInProgress)
	require.NoError(t, err)
	_, _, err = l.Advance(e1.VisitID, StatusCompleted)
	require.NoError(t, err)

	e2, view, err := l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
	require.NoError(t, err)
	assert.NotEqual(t, e1.VisitID, e2.VisitID)
	assert.Equal(t, 2, e2.TokenNumber, "token counter keeps advancing")
	assert.Equal(t, 1, view.TotalWaiting)
}

func TestAdvanceTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []EntryStatus
		wantErr error
	}{
		{name: "waiting to in_progress", path: []EntryStatus{StatusInProgress}},
		{name: "full lifecycle", path: []EntryStatus{StatusInProgress, StatusCompleted}},
		{name: "cancel while waiting", path: []EntryStatus{StatusCancelled}},
		{name: "cancel while in progress", path: []EntryStatus{StatusInProgress, StatusCancelled}},
		{name: "skip to completed", path: []EntryStatus{StatusCompleted}, wantErr: ErrInvalidTransition},
		{name: "revive completed", path: []EntryStatus{StatusInProgress, StatusCompleted, StatusInProgress}, wantErr: ErrInvalidTransition},
		{name: "revive cancelled", path: []EntryStatus{StatusCancelled, StatusWaiting}, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(15)
			e, _, err := l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
			require.NoError(t, err)

			var lastErr error
			for _, next := range tt.path {
				_, _, lastErr = l.Advance(e.VisitID, next)
				if lastErr != nil {
					break
				}
			}
			if tt.wantErr != nil {
				require.ErrorIs(t, lastErr, tt.wantErr)
			} else {
				require.NoError(t, lastErr)
			}
		})
	}
}

func TestAdvanceUnknownVisit(t *testing.T) {
	l := NewLedger(15)

	_, _, err := l.Advance(uuid.New(), StatusInProgress)
	require.ErrorIs(t, err, ErrVisitNotFound)
}

func TestPositionsRecomputeAfterDeparture(t *testing.T) {
	l := NewLedger(15)

	entries := make([]Entry, 0, 3)
	for i := 1; i <= 3; i++ {
		e, _, err := l.Join("radiology", "2025-06-01", fmt.Sprintf("pat-%d", i), fmt.Sprintf("Patient %d", i))
		require.NoError(t, err)
		entries = append(entries, e)
	}

	// Head enters the exam room; remaining entries close ranks.
	_, view, err := l.Advance(entries[0].VisitID, StatusInProgress)
	require.NoError(t, err)

	require.Len(t, view.Queue, 2)
	assert.Equal(t, 1, view.Queue[0].Position)
	assert.Equal(t, "pat-2", view.Queue[0].PatientID)
	assert.Equal(t, 15, view.Queue[0].EstimatedWaitMins)
	assert.Equal(t, 2, view.Queue[1].Position)
	assert.Equal(t, "pat-3", view.Queue[1].PatientID)
	assert.Equal(t, 30, view.Queue[1].EstimatedWaitMins)

	// Token numbers never change even as positions shift.
	assert.Equal(t, 2, view.Queue[0].TokenNumber)
	assert.Equal(t, 3, view.Queue[1].TokenNumber)

	// A mid-queue cancellation keeps positions contiguous.
	_, view, err = l.Advance(entries[1].VisitID, StatusCancelled)
	require.NoError(t, err)
	require.Len(t, view.Queue, 1)
	assert.Equal(t, 1, view.Queue[0].Position)
	assert.Equal(t, "pat-3", view.Queue[0].PatientID)
}

func TestSnapshotMissingQueueIsEmpty(t *testing.T) {
	l := NewLedger(15)

	view := l.Snapshot("radiology", "2025-06-01", false)
	assert.Equal(t, "radiology", view.DepartmentID)
	assert.Equal(t, "2025-06-01", view.Date)
	assert.Equal(t, 0, view.TotalWaiting)
	assert.NotNil(t, view.Queue)
	assert.Empty(t, view.Queue)
}

func TestSnapshotHistory(t *testing.T) {
	l := NewLedger(15)

	e1, _, err := l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
	require.NoError(t, err)
	_, _, err = l.Join("radiology", "2025-06-01", "pat-2", "Vik Mehta")
	require.NoError(t, err)
	_, _, err = l.Advance(e1.VisitID, StatusCancelled)
	require.NoError(t, err)

	withoutHistory := l.Snapshot("radiology", "2025-06-01", false)
	assert.Empty(t, withoutHistory.History)

	withHistory := l.Snapshot("radiology", "2025-06-01", true)
	require.Len(t, withHistory.History, 1)
	assert.Equal(t, e1.VisitID, withHistory.History[0].VisitID)
	assert.Equal(t, StatusCancelled, withHistory.History[0].Status)
	require.Len(t, withHistory.Queue, 1)
}

func TestSweepStale(t *testing.T) {
	l := NewLedger(15)

	stale, _, err := l.Join("radiology", "2025-05-30", "pat-1", "Asha Rao")
	require.NoError(t, err)
	done, _, err := l.Join("radiology", "2025-05-30", "pat-2", "Vik Mehta")
	require.NoError(t, err)
	_, _, err = l.Advance(done.VisitID, StatusInProgress)
	require.NoError(t, err)
	_, _, err = l.Advance(done.VisitID, StatusCompleted)
	require.NoError(t, err)

	fresh, _, err := l.Join("radiology", "2025-06-01", "pat-3", "Neha Iyer")
	require.NoError(t, err)

	views := l.SweepStale("2025-06-01")
	require.Len(t, views, 1)
	assert.Equal(t, "2025-05-30", views[0].Date)
	assert.Equal(t, 0, views[0].TotalWaiting)

	swept, err := l.Entry(stale.VisitID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, swept.Status)

	// Completed entries and current-day queues are untouched.
	kept, err := l.Entry(done.VisitID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, kept.Status)
	current, err := l.Entry(fresh.VisitID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, current.Status)

	// Nothing left to sweep on a second pass.
	assert.Empty(t, l.SweepStale("2025-06-01"))
}

func TestConcurrentJoinsKeepTokensUnique(t *testing.T) {
	l := NewLedger(15)

	const joiners = 40

	var wg sync.WaitGroup
	results := make([]Entry, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, err := l.Join("radiology", "2025-06-01", fmt.Sprintf("pat-%d", i), "Patient")
			if err != nil {
				t.Errorf("join %d: %v", i, err)
				return
			}
			results[i] = e
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, joiners)
	for _, e := range results {
		require.False(t, seen[e.TokenNumber], "duplicate token %d", e.TokenNumber)
		seen[e.TokenNumber] = true
	}

	view := l.Snapshot("radiology", "2025-06-01", false)
	assert.Equal(t, joiners, view.TotalWaiting)
	for i, p := range view.Queue {
		assert.Equal(t, i+1, p.Position)
	}
}

func TestDuplicateJoinRaceAdmitsOne(t *testing.T) {
	l := NewLedger(15)

	const racers = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.Join("radiology", "2025-06-01", "pat-1", "Asha Rao")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, ErrAlreadyQueued):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, racers-1, rejected)
}
