package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/slotqueue/internal/keylock"
)

var (
	ErrAlreadyQueued     = errors.New("patient already queued for department")
	ErrVisitNotFound     = errors.New("queue entry not found")
	ErrInvalidTransition = errors.New("invalid queue status transition")
)

// DefaultBaseWaitMinutes is the per-position wait estimate used when no
// override is configured.
const DefaultBaseWaitMinutes = 15

var allowedTransitions = map[EntryStatus][]EntryStatus{
	StatusWaiting:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func transitionAllowed(from, to EntryStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Ledger is the authoritative in-memory store of department queues.
// Mutations on the same (departmentID, date) queue are serialized through a
// keyed guard; unrelated departments proceed in parallel.
type Ledger struct {
	baseWaitMins int
	guard        *keylock.Guard

	mu     sync.RWMutex
	queues map[string]*deptQueue
	visits map[uuid.UUID]*Entry
	now    func() time.Time
}

type deptQueue struct {
	departmentID string
	date         string
	entries      []*Entry
	nextToken    int
}

func NewLedger(baseWaitMins int) *Ledger {
	if baseWaitMins <= 0 {
		baseWaitMins = DefaultBaseWaitMinutes
	}
	return &Ledger{
		baseWaitMins: baseWaitMins,
		guard:        keylock.New(),
		queues:       make(map[string]*deptQueue),
		visits:       make(map[uuid.UUID]*Entry),
		now:          time.Now,
	}
}

func queueKey(departmentID, date string) string {
	return departmentID + "|" + date
}

// Join appends the patient at the tail unless they already hold a
// non-terminal entry for the same department and date.
func (l *Ledger) Join(departmentID, date, patientID, patientName string) (Entry, View, error) {
	var (
		entry Entry
		view  View
	)
	err := l.guard.Do(queueKey(departmentID, date), func() error {
		l.mu.Lock()
		defer l.mu.Unlock()

		q := l.ensureQueueLocked(departmentID, date)

		for _, e := range q.entries {
			if e.PatientID == patientID && !e.Status.Terminal() {
				return ErrAlreadyQueued
			}
		}

		q.nextToken++
		now := l.now()
		e := &Entry{
			VisitID:      uuid.New(),
			DepartmentID: departmentID,
			Date:         date,
			PatientID:    patientID,
			PatientName:  patientName,
			TokenNumber:  q.nextToken,
			Status:       StatusWaiting,
			JoinedAt:     now,
			UpdatedAt:    now,
		}
		q.entries = append(q.entries, e)
		l.visits[e.VisitID] = e

		entry = *e
		view = l.buildViewLocked(q, false)
		return nil
	})
	return entry, view, err
}

// Advance moves an entry through the waiting -> in_progress -> completed
// lifecycle, or to cancelled from any non-terminal state.
func (l *Ledger) Advance(visitID uuid.UUID, newStatus EntryStatus) (Entry, View, error) {
	l.mu.RLock()
	e, ok := l.visits[visitID]
	l.mu.RUnlock()
	if !ok {
		return Entry{}, View{}, ErrVisitNotFound
	}

	var (
		entry Entry
		view  View
	)
	err := l.guard.Do(queueKey(e.DepartmentID, e.Date), func() error {
		l.mu.Lock()
		defer l.mu.Unlock()

		if !transitionAllowed(e.Status, newStatus) {
			return ErrInvalidTransition
		}

		e.Status = newStatus
		e.UpdatedAt = l.now()

		entry = *e
		view = l.buildViewLocked(l.queues[queueKey(e.DepartmentID, e.Date)], false)
		return nil
	})
	return entry, view, err
}

// Entry returns a copy of the queue entry.
func (l *Ledger) Entry(visitID uuid.UUID) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.visits[visitID]
	if !ok {
		return Entry{}, ErrVisitNotFound
	}
	return *e, nil
}

// Snapshot returns the live queue view. Positions are contiguous 1..N over
// waiting entries in join order; terminal and in-progress entries appear in
// the history section when requested.
func (l *Ledger) Snapshot(departmentID, date string, includeHistory bool) View {
	l.mu.RLock()
	defer l.mu.RUnlock()

	q, ok := l.queues[queueKey(departmentID, date)]
	if !ok {
		return View{
			DepartmentID: departmentID,
			Date:         date,
			Queue:        []Position{},
		}
	}
	return l.buildViewLocked(q, includeHistory)
}

// SweepStale cancels waiting entries on queues dated before today and
// returns the updated view of every queue it touched.
func (l *Ledger) SweepStale(today string) []View {
	l.mu.RLock()
	var stale []string
	for key, q := range l.queues {
		if q.date < today {
			stale = append(stale, key)
		}
	}
	l.mu.RUnlock()

	var views []View
	for _, key := range stale {
		_ = l.guard.Do(key, func() error {
			l.mu.Lock()
			defer l.mu.Unlock()

			q := l.queues[key]
			touched := false
			for _, e := range q.entries {
				if e.Status == StatusWaiting {
					e.Status = StatusCancelled
					e.UpdatedAt = l.now()
					touched = true
				}
			}
			if touched {
				views = append(views, l.buildViewLocked(q, false))
			}
			return nil
		})
	}
	return views
}

// ensureQueueLocked must be called with l.mu held for writing.
func (l *Ledger) ensureQueueLocked(departmentID, date string) *deptQueue {
	key := queueKey(departmentID, date)
	if q, ok := l.queues[key]; ok {
		return q
	}
	q := &deptQueue{departmentID: departmentID, date: date}
	l.queues[key] = q
	return q
}

func (l *Ledger) buildViewLocked(q *deptQueue, includeHistory bool) View {
	view := View{
		DepartmentID: q.departmentID,
		Date:         q.date,
		Queue:        []Position{},
	}

	pos := 0
	for _, e := range q.entries {
		if e.Status != StatusWaiting {
			if includeHistory {
				view.History = append(view.History, *e)
			}
			continue
		}
		pos++
		view.Queue = append(view.Queue, Position{
			Position:          pos,
			TokenNumber:       e.TokenNumber,
			VisitID:           e.VisitID,
			PatientID:         e.PatientID,
			PatientName:       e.PatientName,
			EstimatedWaitMins: l.baseWaitMins * pos,
			JoinedAt:          e.JoinedAt,
		})
	}
	view.TotalWaiting = pos
	view.EstimatedWaitMins = l.baseWaitMins * pos
	return view
}
