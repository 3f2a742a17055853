package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/slotqueue/internal/directory"
	"github.com/clinicore/slotqueue/internal/memo"
	"github.com/clinicore/slotqueue/internal/notify"
	"github.com/clinicore/slotqueue/internal/observability/metrics"
	"github.com/clinicore/slotqueue/internal/queue"
	"github.com/clinicore/slotqueue/internal/slot"
	"github.com/clinicore/slotqueue/pkg/logging"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidDate       = errors.New("date must be today or later in YYYY-MM-DD form")
	ErrMissingIdentity   = errors.New("patient identity is required")
	ErrUnknownDepartment = errors.New("unknown department")
	ErrNoDepartments     = errors.New("memo must list at least one department")
)

// Journal receives committed state for durable archival. Implementations
// must never block; the engine calls it outside every critical section.
type Journal interface {
	RecordBooking(b slot.Booking)
	RecordQueueEntry(e queue.Entry)
	RecordMemo(m memo.Memo)
	RecordEvent(kind, topic string, payload any)
}

// Engine is the single writer over the slot and queue ledgers. Every
// operation either fully commits (ledger mutation plus notification) or has
// no visible effect.
type Engine struct {
	dir     *directory.Directory
	slots   *slot.Ledger
	queues  *queue.Ledger
	memos   *memo.Store
	pub     notify.Publisher
	journal Journal
	metrics *metrics.CoordinationMetrics
	logger  *logging.Logger
	now     func() time.Time
}

type Options struct {
	Publisher       notify.Publisher
	Journal         Journal
	Metrics         *metrics.CoordinationMetrics
	Logger          *logging.Logger
	BaseSlotMinutes int
	Now             func() time.Time
}

type noopPublisher struct{}

func (noopPublisher) Publish(notify.Event) {}

func New(dir *directory.Directory, opts Options) *Engine {
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		dir:     dir,
		slots:   slot.NewLedger(dir),
		queues:  queue.NewLedger(opts.BaseSlotMinutes),
		memos:   memo.NewStore(),
		pub:     opts.Publisher,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

type BookingRequest struct {
	ProviderID  string
	Date        string
	SlotLabel   string
	PatientID   string
	PatientName string
}

type JoinQueueRequest struct {
	DepartmentID string
	Date         string
	PatientID    string
	PatientName  string
	MemoID       *uuid.UUID
}

// BookAppointment reserves a slot triple for a patient. Concurrent calls
// for the same triple yield exactly one winner.
func (e *Engine) BookAppointment(ctx context.Context, req BookingRequest) (slot.Booking, error) {
	if req.PatientID == "" || req.PatientName == "" {
		e.metrics.ObserveBooking("rejected")
		return slot.Booking{}, ErrMissingIdentity
	}
	if err := e.validateBookableDate(req.Date); err != nil {
		e.metrics.ObserveBooking("rejected")
		return slot.Booking{}, err
	}

	booking, view, err := e.slots.Book(req.ProviderID, req.Date, req.SlotLabel, req.PatientName, req.PatientID)
	if err != nil {
		if errors.Is(err, slot.ErrSlotConflict) {
			e.metrics.ObserveBooking("conflict")
		} else {
			e.metrics.ObserveBooking("rejected")
		}
		return slot.Booking{}, err
	}

	e.metrics.ObserveBooking("ok")
	e.publish(notify.KindSlotUpdate, notify.ProviderTopic(req.ProviderID), view)
	if e.journal != nil {
		e.journal.RecordBooking(booking)
	}
	e.logger.Info("booking confirmed",
		"booking_id", booking.ID, "provider_id", req.ProviderID,
		"date", req.Date, "slot", req.SlotLabel)
	return booking, nil
}

// CancelAppointment flips the booking to cancelled and reopens the slot.
func (e *Engine) CancelAppointment(ctx context.Context, bookingID uuid.UUID) (slot.Booking, error) {
	booking, view, err := e.slots.Cancel(bookingID)
	if err != nil {
		return slot.Booking{}, err
	}

	e.publish(notify.KindSlotUpdate, notify.ProviderTopic(booking.ProviderID), view)
	if e.journal != nil {
		e.journal.RecordBooking(booking)
	}
	e.logger.Info("booking cancelled", "booking_id", booking.ID)
	return booking, nil
}

// GetSlotDay returns the slot state for a provider and date, creating the
// day lazily. Past dates stay readable for audit.
func (e *Engine) GetSlotDay(ctx context.Context, providerID, date string) (slot.DayView, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return slot.DayView{}, ErrInvalidDate
	}
	return e.slots.GetDay(providerID, date)
}

// JoinDepartmentQueue appends the patient to the department queue and, when
// a memo is supplied, links the new entry onto it.
func (e *Engine) JoinDepartmentQueue(ctx context.Context, req JoinQueueRequest) (queue.Entry, queue.View, error) {
	if req.PatientID == "" || req.PatientName == "" {
		e.metrics.ObserveQueueJoin("rejected")
		return queue.Entry{}, queue.View{}, ErrMissingIdentity
	}
	if err := e.validateBookableDate(req.Date); err != nil {
		e.metrics.ObserveQueueJoin("rejected")
		return queue.Entry{}, queue.View{}, err
	}
	if _, ok := e.dir.Department(req.DepartmentID); !ok {
		e.metrics.ObserveQueueJoin("rejected")
		return queue.Entry{}, queue.View{}, ErrUnknownDepartment
	}
	// Validate the memo link up front so the join cannot commit and then
	// leave the memo update dangling.
	if req.MemoID != nil {
		m, err := e.memos.Get(*req.MemoID)
		if err != nil {
			e.metrics.ObserveQueueJoin("rejected")
			return queue.Entry{}, queue.View{}, err
		}
		if !memoListsDepartment(m, req.DepartmentID) {
			e.metrics.ObserveQueueJoin("rejected")
			return queue.Entry{}, queue.View{}, memo.ErrDepartmentNotOnMemo
		}
	}

	entry, view, err := e.queues.Join(req.DepartmentID, req.Date, req.PatientID, req.PatientName)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyQueued) {
			e.metrics.ObserveQueueJoin("duplicate")
		} else {
			e.metrics.ObserveQueueJoin("rejected")
		}
		return queue.Entry{}, queue.View{}, err
	}

	e.metrics.ObserveQueueJoin("ok")
	e.publish(notify.KindQueueUpdate, notify.DepartmentTopic(req.DepartmentID, req.Date), view)
	if e.journal != nil {
		e.journal.RecordQueueEntry(entry)
	}

	if req.MemoID != nil {
		if _, err := e.AttachQueueEntryToMemo(ctx, *req.MemoID, entry.VisitID); err != nil {
			e.logger.Error("memo attach after join failed", "error", err, "memo_id", *req.MemoID)
		}
	}

	e.logger.Info("queue joined",
		"visit_id", entry.VisitID, "department_id", req.DepartmentID,
		"date", req.Date, "token", entry.TokenNumber)
	return entry, view, nil
}

// AdvanceQueueEntry moves a queue entry through its lifecycle. Completion
// also flips the linked memo department to visited.
func (e *Engine) AdvanceQueueEntry(ctx context.Context, visitID uuid.UUID, newStatus queue.EntryStatus) (queue.Entry, error) {
	entry, view, err := e.queues.Advance(visitID, newStatus)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			e.metrics.ObserveQueueAdvance("invalid")
		} else {
			e.metrics.ObserveQueueAdvance("rejected")
		}
		return queue.Entry{}, err
	}

	e.metrics.ObserveQueueAdvance("ok")
	e.publish(notify.KindQueueUpdate, notify.DepartmentTopic(entry.DepartmentID, entry.Date), view)
	if e.journal != nil {
		e.journal.RecordQueueEntry(entry)
	}

	if newStatus == queue.StatusCompleted {
		if m, ok := e.memos.MarkVisitedByVisit(visitID); ok {
			e.publish(notify.KindMemoUpdated, notify.PatientTopic(m.PatientID), m)
			if e.journal != nil {
				e.journal.RecordMemo(m)
			}
		}
	}
	return entry, nil
}

// GetQueueSnapshot returns the live queue view for a department and date.
func (e *Engine) GetQueueSnapshot(ctx context.Context, departmentID, date string, includeHistory bool) (queue.View, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return queue.View{}, ErrInvalidDate
	}
	if _, ok := e.dir.Department(departmentID); !ok {
		return queue.View{}, ErrUnknownDepartment
	}
	return e.queues.Snapshot(departmentID, date, includeHistory), nil
}

// CreateVisitMemo registers the departments a patient intends to visit.
func (e *Engine) CreateVisitMemo(ctx context.Context, patientID, patientName string, departmentIDs []string) (memo.Memo, error) {
	if patientID == "" || patientName == "" {
		return memo.Memo{}, ErrMissingIdentity
	}
	if len(departmentIDs) == 0 {
		return memo.Memo{}, ErrNoDepartments
	}
	for _, id := range departmentIDs {
		if _, ok := e.dir.Department(id); !ok {
			return memo.Memo{}, ErrUnknownDepartment
		}
	}

	m := e.memos.Create(patientID, patientName, departmentIDs)
	e.publish(notify.KindMemoCreated, notify.PatientTopic(patientID), m)
	if e.journal != nil {
		e.journal.RecordMemo(m)
	}
	e.logger.Info("visit memo created", "memo_id", m.ID, "patient_id", patientID)
	return m, nil
}

// AttachQueueEntryToMemo links an existing queue entry onto the memo's
// department line. Metadata only; no ledger conflict guard applies.
func (e *Engine) AttachQueueEntryToMemo(ctx context.Context, memoID, visitID uuid.UUID) (memo.Memo, error) {
	entry, err := e.queues.Entry(visitID)
	if err != nil {
		return memo.Memo{}, err
	}

	m, err := e.memos.AttachQueueEntry(memoID, entry.DepartmentID, visitID)
	if err != nil {
		return memo.Memo{}, err
	}

	e.publish(notify.KindMemoUpdated, notify.PatientTopic(m.PatientID), m)
	if e.journal != nil {
		e.journal.RecordMemo(m)
	}
	return m, nil
}

// MarkMemoRead marks the memo notification as seen by the patient.
func (e *Engine) MarkMemoRead(ctx context.Context, memoID uuid.UUID) (memo.Memo, error) {
	m, err := e.memos.MarkRead(memoID)
	if err != nil {
		return memo.Memo{}, err
	}
	if e.journal != nil {
		e.journal.RecordMemo(m)
	}
	return m, nil
}

func (e *Engine) ListProviders() []directory.Provider {
	return e.dir.Providers()
}

func (e *Engine) ListDepartments() []directory.Department {
	return e.dir.Departments()
}

func (e *Engine) ListBookingsByPatient(patientID string) []slot.Booking {
	return e.slots.ListByPatient(patientID)
}

func (e *Engine) ListMemosByPatient(patientID string) []memo.Memo {
	return e.memos.ListByPatient(patientID)
}

// ExpireStaleQueueEntries cancels waiting entries on queues from past dates
// and pushes the updated views.
func (e *Engine) ExpireStaleQueueEntries(ctx context.Context) int {
	today := e.now().Format(DateLayout)
	views := e.queues.SweepStale(today)
	for _, view := range views {
		e.publish(notify.KindQueueUpdate, notify.DepartmentTopic(view.DepartmentID, view.Date), view)
	}
	if len(views) > 0 {
		e.logger.Info("stale queue entries cancelled", "queues", len(views))
	}
	return len(views)
}

// RunSweeper periodically expires stale queue entries until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ExpireStaleQueueEntries(ctx)
		}
	}
}

func (e *Engine) publish(kind, topic string, payload any) {
	e.metrics.ObserveEvent(kind)
	e.pub.Publish(notify.Event{
		Topic:       topic,
		Kind:        kind,
		Payload:     payload,
		PublishedAt: e.now(),
	})
	if e.journal != nil {
		e.journal.RecordEvent(kind, topic, payload)
	}
}

func (e *Engine) validateBookableDate(date string) error {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return ErrInvalidDate
	}
	today, _ := time.Parse(DateLayout, e.now().Format(DateLayout))
	if d.Before(today) {
		return ErrInvalidDate
	}
	return nil
}

func memoListsDepartment(m memo.Memo, departmentID string) bool {
	for _, d := range m.Departments {
		if d.DepartmentID == departmentID {
			return true
		}
	}
	return false
}
