package slot

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/slotqueue/internal/keylock"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownSlot     = errors.New("slot label not defined for provider")
	ErrSlotConflict    = errors.New("slot already booked")
	ErrBookingNotFound = errors.New("booking not found")
)

// LabelSource resolves the slot labels defined for a provider. The second
// return value reports whether the provider exists at all.
type LabelSource interface {
	SlotLabels(providerID string) ([]string, bool)
}

// Ledger is the authoritative in-memory store of slot availability and
// bookings. Mutations on the same (providerID, date) are serialized through
// a keyed guard so that concurrent bookings racing for one triple yield
// exactly one winner; unrelated days proceed in parallel.
type Ledger struct {
	labels LabelSource
	guard  *keylock.Guard

	mu        sync.RWMutex
	days      map[string]*day
	bookings  map[uuid.UUID]*Booking
	byPatient map[string][]uuid.UUID
	now       func() time.Time
}

func NewLedger(labels LabelSource) *Ledger {
	return &Ledger{
		labels:    labels,
		guard:     keylock.New(),
		days:      make(map[string]*day),
		bookings:  make(map[uuid.UUID]*Booking),
		byPatient: make(map[string][]uuid.UUID),
		now:       time.Now,
	}
}

func dayKey(providerID, date string) string {
	return providerID + "|" + date
}

// GetDay returns the current day view, lazily creating the SlotDay with
// every label open. SlotDays are never deleted afterwards.
func (l *Ledger) GetDay(providerID, date string) (DayView, error) {
	var view DayView
	err := l.guard.Do(dayKey(providerID, date), func() error {
		d, err := l.ensureDay(providerID, date)
		if err != nil {
			return err
		}
		view = l.buildView(d)
		return nil
	})
	return view, err
}

// Book atomically transitions an open slot to booked. Exactly one of any
// set of concurrent calls for the same triple succeeds; the rest observe
// ErrSlotConflict.
func (l *Ledger) Book(providerID, date, slotLabel, patientName, patientID string) (Booking, DayView, error) {
	var (
		booking Booking
		view    DayView
	)
	err := l.guard.Do(dayKey(providerID, date), func() error {
		d, err := l.ensureDay(providerID, date)
		if err != nil {
			return err
		}

		l.mu.Lock()
		defer l.mu.Unlock()

		cur, ok := d.booked[slotLabel]
		if !ok {
			return ErrUnknownSlot
		}
		if cur != uuid.Nil {
			return ErrSlotConflict
		}

		now := l.now()
		b := &Booking{
			ID:          uuid.New(),
			ProviderID:  providerID,
			Date:        date,
			SlotLabel:   slotLabel,
			PatientID:   patientID,
			PatientName: patientName,
			Status:      BookingConfirmed,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		d.booked[slotLabel] = b.ID
		l.bookings[b.ID] = b
		l.byPatient[patientID] = append(l.byPatient[patientID], b.ID)

		booking = *b
		view = l.buildViewLocked(d)
		return nil
	})
	return booking, view, err
}

// Cancel flips a confirmed booking to cancelled and reopens its slot,
// under the same per-day guard as Book.
func (l *Ledger) Cancel(bookingID uuid.UUID) (Booking, DayView, error) {
	l.mu.RLock()
	b, ok := l.bookings[bookingID]
	l.mu.RUnlock()
	if !ok {
		return Booking{}, DayView{}, ErrBookingNotFound
	}

	var (
		booking Booking
		view    DayView
	)
	err := l.guard.Do(dayKey(b.ProviderID, b.Date), func() error {
		l.mu.Lock()
		defer l.mu.Unlock()

		if b.Status != BookingConfirmed {
			return ErrBookingNotFound
		}

		b.Status = BookingCancelled
		b.UpdatedAt = l.now()

		d := l.days[dayKey(b.ProviderID, b.Date)]
		if d != nil && d.booked[b.SlotLabel] == b.ID {
			d.booked[b.SlotLabel] = uuid.Nil
		}

		booking = *b
		view = l.buildViewLocked(d)
		return nil
	})
	return booking, view, err
}

// Booking returns a copy of the booking record.
func (l *Ledger) Booking(bookingID uuid.UUID) (Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.bookings[bookingID]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	return *b, nil
}

// ListByPatient returns every booking the patient ever made, newest first,
// including cancelled ones.
func (l *Ledger) ListByPatient(patientID string) []Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byPatient[patientID]
	out := make([]Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.bookings[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ensureDay must be called while holding the day's guard.
func (l *Ledger) ensureDay(providerID, date string) (*day, error) {
	key := dayKey(providerID, date)

	l.mu.Lock()
	defer l.mu.Unlock()

	if d, ok := l.days[key]; ok {
		return d, nil
	}

	labels, ok := l.labels.SlotLabels(providerID)
	if !ok {
		return nil, ErrUnknownProvider
	}

	d := &day{
		providerID: providerID,
		date:       date,
		labels:     labels,
		booked:     make(map[string]uuid.UUID, len(labels)),
	}
	for _, label := range labels {
		d.booked[label] = uuid.Nil
	}
	l.days[key] = d
	return d, nil
}

func (l *Ledger) buildView(d *day) DayView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buildViewLocked(d)
}

func (l *Ledger) buildViewLocked(d *day) DayView {
	view := DayView{
		ProviderID: d.providerID,
		Date:       d.date,
		Slots:      make([]SlotView, 0, len(d.labels)),
	}
	for _, label := range d.labels {
		sv := SlotView{Label: label, Status: SlotOpen}
		if id := d.booked[label]; id != uuid.Nil {
			bid := id
			sv.Status = SlotBooked
			sv.BookingID = &bid
			if b, ok := l.bookings[id]; ok {
				sv.PatientName = b.PatientName
			}
		}
		view.Slots = append(view.Slots, sv)
	}
	return view
}
