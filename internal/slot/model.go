package slot

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotOpen   SlotStatus = "open"
	SlotBooked SlotStatus = "booked"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a confirmed assignment of a patient to a slot triple.
// Bookings are never deleted; cancellation flips the status and reopens
// the slot.
type Booking struct {
	ID          uuid.UUID     `json:"id"`
	ProviderID  string        `json:"provider_id"`
	Date        string        `json:"date"`
	SlotLabel   string        `json:"slot_label"`
	PatientID   string        `json:"patient_id"`
	PatientName string        `json:"patient_name"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SlotView is the status of one slot label within a day view.
type SlotView struct {
	Label       string     `json:"label"`
	Status      SlotStatus `json:"status"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	PatientName string     `json:"patient_name,omitempty"`
}

// DayView is the full slot state of one provider on one date, in the
// provider's label order. This is the payload pushed to subscribers.
type DayView struct {
	ProviderID string     `json:"provider_id"`
	Date       string     `json:"date"`
	Slots      []SlotView `json:"slots"`
}

// day is the internal SlotDay record: label -> booking ID, uuid.Nil when open.
type day struct {
	providerID string
	date       string
	labels     []string
	booked     map[string]uuid.UUID
}
